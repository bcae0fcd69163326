package tui

import "charm.land/bubbles/v2/key"

// keyMap represents key map data used by this package.
type keyMap struct {
	quit       key.Binding
	reload     key.Binding
	toggleHelp key.Binding
	nextBoard  key.Binding
	prevBoard  key.Binding
	moveLeft   key.Binding
	moveRight  key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	grab       key.Binding
	drop       key.Binding
	cancel     key.Binding
	itemInfo   key.Binding
	copyID     key.Binding
	deleteItem key.Binding
	confirm    key.Binding
	deny       key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		nextBoard:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next board")),
		prevBoard:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous board")),
		moveLeft:   key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:  key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "item up")),
		moveDown:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "item down")),
		grab:       key.NewBinding(key.WithKeys("space"), key.WithHelp("space", "pick up item")),
		drop:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop item")),
		cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel / dismiss")),
		itemInfo:   key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "item info")),
		copyID:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy item id")),
		deleteItem: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete item")),
		confirm:    key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "confirm")),
		deny:       key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n/esc", "cancel")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.grab, k.itemInfo, k.copyID, k.nextBoard, k.reload, k.toggleHelp, k.quit}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown, k.nextBoard, k.prevBoard},
		{k.grab, k.drop, k.cancel, k.deleteItem},
		{k.itemInfo, k.copyID, k.reload, k.toggleHelp, k.quit},
	}
}
