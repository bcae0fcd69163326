package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	"github.com/hylla/lanes/internal/app"
	"github.com/hylla/lanes/internal/domain"
	"github.com/hylla/lanes/internal/kanban"
)

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeConfirmMove
	modeConfirmDelete
	modeItemInfo
)

// boardTitles are the tab labels per board.
var boardTitles = map[domain.BoardKind]string{
	domain.BoardTasks:        "Tasks",
	domain.BoardImprovements: "Improvements",
	domain.BoardRoadmap:      "Roadmap",
}

// Model is the terminal board: one engine per CRM board, one visible at a time.
type Model struct {
	engines    []*kanban.Engine
	active     int
	filter     domain.ItemFilter
	engineOpts []kanban.Option
	startBoard domain.BoardKind

	now           func() time.Time
	actorID       string
	toastDuration time.Duration
	copyText      func(string) error

	ready  bool
	width  int
	height int
	err    error
	status string

	help help.Model
	keys keyMap
	md   *markdownRenderer

	selectedColumn int
	selectedItem   int
	tops           map[string]int

	drag         *kanban.DragSession
	keyboardDrag bool
	grabColumn   int
	grabSlot     int

	mode          inputMode
	pendingMove   kanban.Move
	pendingDelete string
	infoItemID    string

	toast    *kanban.Notice
	toastSeq int
}

// loadedMsg reports a board refresh.
type loadedMsg struct {
	boards []int
	err    error
}

// persistedMsg carries a store reply for a committing move.
type persistedMsg struct {
	board int
	move  kanban.Move
	item  domain.Item
	err   error
}

// moveCancelledMsg reports a declined confirmation after the board was refetched.
type moveCancelledMsg struct {
	board int
	move  kanban.Move
	err   error
}

// deletedMsg reports a finished delete.
type deletedMsg struct {
	board  int
	itemID string
	err    error
}

// copiedMsg reports a clipboard write.
type copiedMsg struct {
	itemID string
	err    error
}

// toastExpiredMsg clears the toast it was scheduled for.
type toastExpiredMsg struct {
	seq int
}

// NewModel builds a board model over store with one engine per board.
func NewModel(store kanban.Store, opts ...Option) (Model, error) {
	h := help.New()
	h.ShowAll = false
	m := Model{
		startBoard:    domain.BoardTasks,
		now:           time.Now,
		actorID:       defaultActorID,
		toastDuration: defaultToastDuration,
		copyText:      clipboard.WriteAll,
		status:        "loading...",
		help:          h,
		keys:          newKeyMap(),
		md:            &markdownRenderer{},
		tops:          map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	for i, board := range kanban.Boards() {
		engine, err := kanban.NewEngine(board, store, m.filter, m.engineOpts...)
		if err != nil {
			return Model{}, fmt.Errorf("build %s board: %w", board.Kind, err)
		}
		m.engines = append(m.engines, engine)
		if board.Kind == m.startBoard {
			m.active = i
		}
	}
	return m, nil
}

// Init loads every board.
func (m Model) Init() tea.Cmd {
	boards := make([]int, len(m.engines))
	for i := range boards {
		boards[i] = i
	}
	return m.loadCmd(boards...)
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		m.help.SetWidth(max(0, msg.Width-2))
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.clampSelection()
		if m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case persistedMsg:
		return m.resolveMove(msg)

	case moveCancelledMsg:
		if msg.err != nil {
			m.status = "reload failed: " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("kept %q in place", msg.move.Title)
		if msg.board == m.active {
			m.focusItem(msg.move.ItemID)
		}
		return m, nil

	case deletedMsg:
		if msg.err != nil {
			return m, m.showToast(kanban.Notice{Level: kanban.NoticeError, Message: "Failed to delete item"})
		}
		m.status = "item deleted"
		m.clampSelection()
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "copied " + msg.itemID
		return m, nil

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case tea.KeyPressMsg:
		switch {
		case m.mode != modeNone:
			return m.handleModalKey(msg)
		case m.drag != nil && m.keyboardDrag:
			return m.handleGrabKey(msg)
		default:
			return m.handleNormalModeKey(msg)
		}

	case tea.MouseClickMsg:
		return m.handleMousePress(msg)

	case tea.MouseMotionMsg:
		if m.drag != nil && !m.keyboardDrag {
			m.drag.Update(kanban.Point{X: msg.X, Y: msg.Y}, m.layout().geometries())
		}
		return m, nil

	case tea.MouseReleaseMsg:
		if m.drag == nil || m.keyboardDrag {
			return m, nil
		}
		m.drag.Update(kanban.Point{X: msg.X, Y: msg.Y}, m.layout().geometries())
		return m.dropDrag()

	case tea.MouseWheelMsg:
		if m.mode != modeNone || m.drag != nil {
			return m, nil
		}
		switch msg.Button {
		case tea.MouseWheelUp:
			m.moveSelection(0, -1)
		case tea.MouseWheelDown:
			m.moveSelection(0, 1)
		}
		return m, nil

	default:
		return m, nil
	}
}

// handleNormalModeKey handles board navigation and item actions.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.cancel):
		switch {
		case m.drag != nil:
			m.drag.Cancel()
			return m.dropDrag()
		case m.toast != nil:
			m.toast = nil
		case m.help.ShowAll:
			m.help.ShowAll = false
		}
		return m, nil
	case m.help.ShowAll:
		return m, nil
	case m.drag != nil:
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadCmd(m.active)
	case key.Matches(msg, m.keys.nextBoard):
		m.switchBoard(1)
		return m, nil
	case key.Matches(msg, m.keys.prevBoard):
		m.switchBoard(-1)
		return m, nil
	case key.Matches(msg, m.keys.moveLeft):
		m.moveSelection(-1, 0)
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		m.moveSelection(1, 0)
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.moveSelection(0, -1)
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.moveSelection(0, 1)
		return m, nil
	case key.Matches(msg, m.keys.grab):
		return m.startKeyboardDrag()
	case key.Matches(msg, m.keys.itemInfo):
		if item, ok := m.selectedItemValue(); ok {
			m.mode = modeItemInfo
			m.infoItemID = item.ID
		}
		return m, nil
	case key.Matches(msg, m.keys.copyID):
		if item, ok := m.selectedItemValue(); ok {
			return m, m.copyCmd(item.ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.deleteItem):
		item, ok := m.selectedItemValue()
		if !ok {
			return m, nil
		}
		if m.engine().Busy(item.ID) {
			m.status = "item is still saving"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.pendingDelete = item.ID
		return m, nil
	default:
		return m, nil
	}
}

// handleModalKey handles keys while a confirmation or detail modal is open.
func (m Model) handleModalKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeConfirmMove:
		switch {
		case key.Matches(msg, m.keys.confirm):
			m.mode = modeNone
			move, err := m.engine().Confirm(m.pendingMove.ID)
			m.pendingMove = kanban.Move{}
			if err != nil {
				m.status = "confirm failed: " + err.Error()
				return m, nil
			}
			m.focusItem(move.ItemID)
			m.status = fmt.Sprintf("moving %q to %s...", move.Title, m.columnName(move.To))
			return m, m.persistCmd(m.active, move)
		case key.Matches(msg, m.keys.deny):
			m.mode = modeNone
			move := m.pendingMove
			m.pendingMove = kanban.Move{}
			return m, m.cancelMoveCmd(m.active, move)
		}
		return m, nil

	case modeConfirmDelete:
		switch {
		case key.Matches(msg, m.keys.confirm):
			m.mode = modeNone
			itemID := m.pendingDelete
			m.pendingDelete = ""
			return m, m.deleteCmd(m.active, itemID)
		case key.Matches(msg, m.keys.deny):
			m.mode = modeNone
			m.pendingDelete = ""
			m.status = "delete cancelled"
		}
		return m, nil

	case modeItemInfo:
		switch {
		case key.Matches(msg, m.keys.copyID):
			return m, m.copyCmd(m.infoItemID)
		case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.itemInfo), key.Matches(msg, m.keys.quit):
			m.mode = modeNone
			m.infoItemID = ""
		}
		return m, nil
	}
	return m, nil
}

// handleGrabKey steers a keyboard drag: columns with h/l, slots with j/k.
func (m Model) handleGrabKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	board := m.engine().Board()
	switch {
	case key.Matches(msg, m.keys.cancel):
		m.drag.Cancel()
		return m.dropDrag()
	case key.Matches(msg, m.keys.drop):
		if _, stay := m.grabTarget(); stay {
			m.drag.Cancel()
		}
		return m.dropDrag()
	case key.Matches(msg, m.keys.moveLeft):
		m.grabColumn = clamp(m.grabColumn-1, 0, len(board.Columns)-1)
		m.grabSlot = m.defaultSlot()
	case key.Matches(msg, m.keys.moveRight):
		m.grabColumn = clamp(m.grabColumn+1, 0, len(board.Columns)-1)
		m.grabSlot = m.defaultSlot()
	case key.Matches(msg, m.keys.moveUp):
		m.grabSlot--
	case key.Matches(msg, m.keys.moveDown):
		m.grabSlot++
	case key.Matches(msg, m.keys.quit):
		m.drag.Cancel()
		return m.dropDrag()
	default:
		return m, nil
	}
	m.retarget()
	return m, nil
}

// handleMousePress selects the card under the pointer and starts a drag session on it.
func (m Model) handleMousePress(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || m.help.ShowAll || m.drag != nil || msg.Button != tea.MouseLeft {
		return m, nil
	}
	p := kanban.Point{X: msg.X, Y: msg.Y}
	lay := m.layout()
	card, col, ok := lay.cardAt(p)
	if !ok {
		if col, ok := lay.columnAt(p); ok {
			m.selectedColumn = col
			m.clampSelection()
		}
		return m, nil
	}
	m.focusItem(card.itemID)
	session, err := m.engine().BeginDrag(card.itemID, p, card.rect)
	if err != nil {
		m.status = dragError(err)
		return m, nil
	}
	m.selectedColumn = col
	m.drag = session
	m.keyboardDrag = false
	return m, nil
}

// startKeyboardDrag picks up the selected card in place.
func (m Model) startKeyboardDrag() (tea.Model, tea.Cmd) {
	item, ok := m.selectedItemValue()
	if !ok {
		return m, nil
	}
	rect := kanban.Rect{}
	if card, ok := m.layout().card(item.ID); ok {
		rect = card.rect
	}
	session, err := m.engine().BeginDrag(item.ID, center(rect), rect)
	if err != nil {
		m.status = dragError(err)
		return m, nil
	}
	session.Activate()
	m.drag = session
	m.keyboardDrag = true
	m.grabColumn = m.selectedColumn
	m.grabSlot = m.selectedItem
	m.retarget()
	m.status = fmt.Sprintf("moving %q: h/l column, j/k slot, enter drop, esc cancel", item.Title)
	return m, nil
}

// grabTarget maps the keyboard cursor to a drop target. stay is set when the cursor rests on the
// card's own slot.
func (m Model) grabTarget() (kanban.Target, bool) {
	board := m.engine().Board()
	column := board.Columns[clamp(m.grabColumn, 0, len(board.Columns)-1)].ID
	ids := m.engine().Index().IDs(column)
	if column == m.drag.Source {
		slot := clamp(m.grabSlot, 0, len(ids)-1)
		if slot < 0 || slot >= len(ids) || ids[slot] == m.drag.ItemID {
			return kanban.Target{Column: column}, true
		}
		return kanban.Target{Column: column, ItemID: ids[slot]}, false
	}
	slot := clamp(m.grabSlot, 0, len(ids))
	if slot < len(ids) {
		return kanban.Target{Column: column, ItemID: ids[slot]}, false
	}
	return kanban.Target{Column: column}, false
}

// retarget clamps the keyboard cursor and hovers its target.
func (m *Model) retarget() {
	board := m.engine().Board()
	column := board.Columns[clamp(m.grabColumn, 0, len(board.Columns)-1)].ID
	n := m.engine().Index().Len(column)
	if column == m.drag.Source {
		m.grabSlot = clamp(m.grabSlot, 0, n-1)
	} else {
		m.grabSlot = clamp(m.grabSlot, 0, n)
	}
	target, _ := m.grabTarget()
	m.drag.Hover(target)
}

// defaultSlot is where the cursor lands when the keyboard drag enters a column.
func (m Model) defaultSlot() int {
	board := m.engine().Board()
	column := board.Columns[clamp(m.grabColumn, 0, len(board.Columns)-1)].ID
	if column == m.drag.Source {
		_, pos, _ := m.engine().Index().Locate(m.drag.ItemID)
		return pos
	}
	return m.engine().Index().Len(column)
}

// dropDrag ends the active session and acts on its outcome.
func (m Model) dropDrag() (tea.Model, tea.Cmd) {
	session := m.drag
	m.drag = nil
	m.keyboardDrag = false
	outcome, err := m.engine().Drop(session)
	if err != nil {
		m.status = "drop failed: " + err.Error()
		return m, nil
	}
	switch outcome.Kind {
	case kanban.OutcomeCancelled:
		m.status = "move cancelled"
	case kanban.OutcomeReordered:
		m.focusItem(outcome.Move.ItemID)
		m.status = fmt.Sprintf("reordered %q", outcome.Move.Title)
	case kanban.OutcomeCommitting:
		m.focusItem(outcome.Move.ItemID)
		m.status = fmt.Sprintf("moving %q to %s...", outcome.Move.Title, m.columnName(outcome.Move.To))
		return m, m.persistCmd(m.active, outcome.Move)
	case kanban.OutcomeNeedsConfirmation:
		m.focusItem(outcome.Move.ItemID)
		m.mode = modeConfirmMove
		m.pendingMove = outcome.Move
	}
	return m, nil
}

// resolveMove reconciles a store reply with the engine that issued the move.
func (m Model) resolveMove(msg persistedMsg) (tea.Model, tea.Cmd) {
	if msg.board < 0 || msg.board >= len(m.engines) {
		return m, nil
	}
	result, err := m.engines[msg.board].Resolve(msg.move.ID, msg.item, msg.err)
	if err != nil {
		m.status = "stale move ignored"
		return m, nil
	}
	if msg.board == m.active {
		m.focusItem(result.Move.ItemID)
	}
	if result.Notice != nil {
		m.status = ""
		return m, m.showToast(*result.Notice)
	}
	m.status = fmt.Sprintf("moved %q to %s", result.Item.Title, m.columnNameOn(msg.board, result.Move.To))
	return m, nil
}

// showToast raises a notice and schedules its expiry.
func (m *Model) showToast(notice kanban.Notice) tea.Cmd {
	m.toastSeq++
	m.toast = &notice
	seq := m.toastSeq
	return tea.Tick(m.toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

// mutationContext attributes store writes to the terminal user.
func (m Model) mutationContext() context.Context {
	return app.WithMutationActor(context.Background(), app.MutationActor{
		ActorID:   m.actorID,
		ActorType: domain.ActorTypeUser,
	})
}

// loadCmd refreshes the given boards from the store.
func (m Model) loadCmd(boards ...int) tea.Cmd {
	engines := m.engines
	return func() tea.Msg {
		for _, idx := range boards {
			if err := engines[idx].Load(context.Background()); err != nil {
				return loadedMsg{boards: boards, err: err}
			}
		}
		return loadedMsg{boards: boards}
	}
}

// persistCmd sends a committing move to the store off the update loop.
func (m Model) persistCmd(board int, move kanban.Move) tea.Cmd {
	engine := m.engines[board]
	ctx := m.mutationContext()
	return func() tea.Msg {
		item, err := engine.Persist(ctx, move)
		return persistedMsg{board: board, move: move, item: item, err: err}
	}
}

// cancelMoveCmd reverts a declined move and refetches the board.
func (m Model) cancelMoveCmd(board int, move kanban.Move) tea.Cmd {
	engine := m.engines[board]
	return func() tea.Msg {
		err := engine.Cancel(context.Background(), move.ID)
		return moveCancelledMsg{board: board, move: move, err: err}
	}
}

// deleteCmd removes one item through the engine.
func (m Model) deleteCmd(board int, itemID string) tea.Cmd {
	engine := m.engines[board]
	ctx := m.mutationContext()
	return func() tea.Msg {
		err := engine.DeleteItem(ctx, itemID)
		return deletedMsg{board: board, itemID: itemID, err: err}
	}
}

// copyCmd writes an item id to the clipboard.
func (m Model) copyCmd(itemID string) tea.Cmd {
	write := m.copyText
	return func() tea.Msg {
		return copiedMsg{itemID: itemID, err: write(itemID)}
	}
}

// engine returns the active board's engine.
func (m Model) engine() *kanban.Engine {
	return m.engines[m.active]
}

// layout computes the active board's drop surface for the current terminal size.
func (m Model) layout() boardLayout {
	return buildLayout(m.engine().Board(), m.engine().Index(), m.width, m.height, m.tops)
}

// switchBoard cycles the visible board.
func (m *Model) switchBoard(delta int) {
	if len(m.engines) == 0 {
		return
	}
	m.active = (m.active + delta + len(m.engines)) % len(m.engines)
	m.selectedColumn = 0
	m.selectedItem = 0
	m.tops = map[string]int{}
	m.status = boardTitles[m.engine().Board().Kind]
	m.clampSelection()
}

// moveSelection moves the cursor by columns and rows.
func (m *Model) moveSelection(dCol, dRow int) {
	columns := m.engine().Board().Columns
	if len(columns) == 0 {
		return
	}
	if dCol != 0 {
		m.selectedColumn = clamp(m.selectedColumn+dCol, 0, len(columns)-1)
		m.selectedItem = clamp(m.selectedItem, 0, m.engine().Index().Len(columns[m.selectedColumn].ID)-1)
	}
	if dRow != 0 {
		m.selectedItem = clamp(m.selectedItem+dRow, 0, m.engine().Index().Len(columns[m.selectedColumn].ID)-1)
	}
	m.scrollToSelection()
}

// clampSelection keeps the cursor on a valid column and card.
func (m *Model) clampSelection() {
	columns := m.engine().Board().Columns
	if len(columns) == 0 {
		m.selectedColumn, m.selectedItem = 0, 0
		return
	}
	m.selectedColumn = clamp(m.selectedColumn, 0, len(columns)-1)
	m.selectedItem = clamp(m.selectedItem, 0, m.engine().Index().Len(columns[m.selectedColumn].ID)-1)
	m.scrollToSelection()
}

// scrollToSelection keeps the selected card inside its column's visible window.
func (m *Model) scrollToSelection() {
	columns := m.engine().Board().Columns
	if len(columns) == 0 {
		return
	}
	column := columns[m.selectedColumn].ID
	capacity := max(1, cardCapacity(boardHeightFor(m.height)))
	top := m.tops[column]
	if m.selectedItem < top {
		top = m.selectedItem
	}
	if m.selectedItem >= top+capacity {
		top = m.selectedItem - capacity + 1
	}
	if m.tops == nil {
		m.tops = map[string]int{}
	}
	m.tops[column] = max(0, top)
}

// focusItem moves the cursor to an item wherever it currently sits.
func (m *Model) focusItem(itemID string) {
	column, pos, ok := m.engine().Index().Locate(itemID)
	if !ok {
		m.clampSelection()
		return
	}
	for i, c := range m.engine().Board().Columns {
		if c.ID == column {
			m.selectedColumn = i
			break
		}
	}
	m.selectedItem = pos
	m.scrollToSelection()
}

// selectedItemValue returns the item under the cursor.
func (m Model) selectedItemValue() (domain.Item, bool) {
	columns := m.engine().Board().Columns
	if len(columns) == 0 {
		return domain.Item{}, false
	}
	ids := m.engine().Index().IDs(columns[clamp(m.selectedColumn, 0, len(columns)-1)].ID)
	if len(ids) == 0 {
		return domain.Item{}, false
	}
	return m.engine().Item(ids[clamp(m.selectedItem, 0, len(ids)-1)])
}

// columnName returns the display name of a column on the active board.
func (m Model) columnName(id string) string {
	return m.columnNameOn(m.active, id)
}

func (m Model) columnNameOn(board int, id string) string {
	if board < 0 || board >= len(m.engines) {
		return id
	}
	if column, ok := m.engines[board].Board().Column(id); ok {
		return column.Name
	}
	return id
}

// dragError maps engine rejections to status text.
func dragError(err error) string {
	switch {
	case errors.Is(err, kanban.ErrItemBusy):
		return "item is still saving"
	case errors.Is(err, kanban.ErrDragInProgress):
		return "finish the current move first"
	default:
		return "cannot move item: " + err.Error()
	}
}

// View handles view.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// render draws the full screen as text.
func (m Model) render() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	}
	if !m.ready {
		return "loading..."
	}

	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	header := titleStyle.Render("lanes") + "  " + m.renderTabs()
	if assignee := m.filter.Assignee; assignee != "" {
		header += statusStyle.Render("  assignee: " + assignee)
	}
	if pending := len(m.engine().PendingMoves()); pending > 0 {
		header += statusStyle.Render(fmt.Sprintf("  saving: %d", pending))
	}

	lay := m.layout()
	body := m.renderBoard(lay)

	statusLine := statusStyle.Render(m.status)
	if m.toast != nil {
		toastStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("62")).Padding(0, 1)
		if m.toast.Level == kanban.NoticeError {
			toastStyle = toastStyle.Background(lipgloss.Color("160"))
		}
		statusLine = toastStyle.Render(m.toast.Message) + statusStyle.Render("  esc to dismiss")
	}

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Render(helpBubble.View(m.keys))

	content := header + "\n\n" + fitLines(body, boardHeightFor(m.height)) + "\n" + statusLine + "\n" + helpLine
	width, height := max(1, m.width), max(1, lipgloss.Height(content))
	if m.height > 0 {
		height = m.height
	}

	if m.drag != nil && !m.keyboardDrag && m.drag.Active() {
		content = m.overlayGhost(content, width, height)
	}
	if overlay := m.renderModal(); overlay != "" {
		content = overlayOnContent(content, overlay, width, height)
	}
	return content
}

// renderTabs draws one label per board, highlighting the active one.
func (m Model) renderTabs() string {
	activeStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Underline(true)
	idleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	tabs := make([]string, 0, len(m.engines))
	for i, engine := range m.engines {
		label := boardTitles[engine.Board().Kind]
		if i == m.active {
			tabs = append(tabs, activeStyle.Render(label))
			continue
		}
		tabs = append(tabs, idleStyle.Render(label))
	}
	return strings.Join(tabs, "  ")
}

// renderBoard draws every column box side by side.
func (m Model) renderBoard(lay boardLayout) string {
	items := map[string]domain.Item{}
	for _, item := range m.engine().Items() {
		items[item.ID] = item
	}
	var target kanban.Target
	hasTarget := false
	if m.drag != nil && m.drag.Active() {
		target, hasTarget = m.drag.Target()
	}

	views := make([]string, 0, len(lay.columns))
	for colIdx, column := range lay.columns {
		inner := max(1, column.rect.W-4)
		lines := []string{padRight(m.styles().columnTitle.Render(truncate(fmt.Sprintf("%s (%d)", column.name, len(column.cards)+column.hidden), inner)), inner)}
		if len(column.cards) == 0 {
			lines = append(lines, padRight(m.styles().muted.Render("(empty)"), inner))
		}
		for j, card := range column.cards {
			item := items[card.itemID]
			selected := colIdx == m.selectedColumn && m.isSelected(card.itemID)
			marked := hasTarget && target.ItemID == card.itemID
			title, sub := m.cardLines(item, inner, selected, marked)
			lines = append(lines, title, sub)
			if j < len(column.cards)-1 {
				lines = append(lines, "")
			}
		}
		if column.hidden > 0 {
			lines = append(lines, m.styles().muted.Render(fmt.Sprintf("+%d more", column.hidden)))
		}
		content := fitLines(strings.Join(lines, "\n"), max(1, column.rect.H-2))

		border := lipgloss.Color("239")
		switch {
		case hasTarget && target.Column == column.id:
			border = lipgloss.Color("212")
		case colIdx == m.selectedColumn:
			border = lipgloss.Color("62")
		}
		style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 1)
		if colIdx < len(lay.columns)-1 {
			style = style.MarginRight(columnGap)
		}
		views = append(views, style.Render(content))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// isSelected reports whether itemID is under the cursor.
func (m Model) isSelected(itemID string) bool {
	item, ok := m.selectedItemValue()
	return ok && item.ID == itemID
}

// cardLines renders a card's title row and detail row, both padded to width.
func (m Model) cardLines(item domain.Item, width int, selected, marked bool) (string, string) {
	st := m.styles()
	prefix := "  "
	switch {
	case marked:
		prefix = "▸ "
	case selected:
		prefix = "│ "
	}
	title := prefix + truncate(item.Title, max(1, width-2))
	sub := "  " + truncate(m.cardSummary(item), max(1, width-2))

	dragging := m.drag != nil && m.drag.Active() && m.drag.ItemID == item.ID
	switch {
	case dragging:
		title = st.muted.Render(title)
	case marked:
		title = st.target.Render(title)
	case selected:
		title = st.selected.Render(title)
	}
	return padRight(title, width), padRight(st.muted.Render(sub), width)
}

// cardSummary lists due date, priority and owner for a card's second row.
func (m Model) cardSummary(item domain.Item) string {
	parts := make([]string, 0, 4)
	if m.engine().Busy(item.ID) {
		parts = append(parts, "saving…")
	}
	if item.DueAt != nil {
		parts = append(parts, dueLabel(*item.DueAt, m.now()))
	}
	if item.Priority != "" {
		parts = append(parts, string(item.Priority))
	}
	if item.Assignee != "" {
		parts = append(parts, "@"+item.Assignee)
	}
	if len(parts) == 0 && item.RecordType != domain.RecordNone {
		parts = append(parts, string(item.RecordType)+":"+item.RecordID)
	}
	return strings.Join(parts, " · ")
}

// dueLabel formats a due date relative to now.
func dueLabel(due, now time.Time) string {
	if due.Before(now) {
		return "overdue " + due.Local().Format("Jan 02")
	}
	return "due " + due.Local().Format("Jan 02")
}

// overlayGhost draws the dragged card at the pointer.
func (m Model) overlayGhost(base string, width, height int) string {
	item, ok := m.engine().Item(m.drag.ItemID)
	if !ok {
		return base
	}
	rect := m.drag.DraggedRect()
	ghost := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("212")).
		Padding(0, 1).
		Render(truncate(item.Title, max(4, rect.W-4)))
	canvas := lipgloss.NewCanvas(width, height)
	canvas.Compose(lipgloss.NewLayer(fitLines(base, height)).X(0).Y(0).Z(0))
	canvas.Compose(lipgloss.NewLayer(ghost).X(clamp(rect.X-1, 0, width-1)).Y(clamp(rect.Y-1, 0, height-1)).Z(5))
	return canvas.Render()
}

// renderModal draws the open modal, if any.
func (m Model) renderModal() string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)
	heading := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	hint := m.styles().muted
	width := clamp(m.width-8, 24, 72)

	switch {
	case m.mode == modeConfirmMove:
		prompt := m.pendingMove.Prompt
		if prompt == "" {
			prompt = fmt.Sprintf("Move %q to %s?", m.pendingMove.Title, m.columnName(m.pendingMove.To))
		}
		return box.Render(strings.Join([]string{
			heading.Render("Confirm move"),
			"",
			wrapText(prompt, width),
			"",
			hint.Render("y confirm • n/esc cancel"),
		}, "\n"))
	case m.mode == modeConfirmDelete:
		item, _ := m.engine().Item(m.pendingDelete)
		return box.Render(strings.Join([]string{
			heading.Render("Delete item"),
			"",
			wrapText(fmt.Sprintf("Delete %q?", item.Title), width),
			"",
			hint.Render("y confirm • n/esc cancel"),
		}, "\n"))
	case m.mode == modeItemInfo:
		return box.Render(m.renderItemInfo(width))
	case m.help.ShowAll:
		helpBubble := m.help
		helpBubble.SetWidth(max(width, m.width-8))
		return box.Render(heading.Render("Keys") + "\n\n" + helpBubble.View(m.keys))
	}
	return ""
}

// renderItemInfo draws the detail pane for the item under inspection.
func (m Model) renderItemInfo(width int) string {
	item, ok := m.engine().Item(m.infoItemID)
	if !ok {
		return "item not found"
	}
	st := m.styles()
	column, _, _ := m.engine().Index().Locate(item.ID)
	rows := []string{
		lipgloss.NewStyle().Bold(true).Render(truncate(item.Title, width)),
		"",
		st.muted.Render("column:   ") + m.columnName(column),
		st.muted.Render("status:   ") + string(item.Status),
		st.muted.Render("priority: ") + string(item.Priority),
	}
	if item.DueAt != nil {
		rows = append(rows, st.muted.Render("due:      ")+item.DueAt.Local().Format("2006-01-02 15:04"))
	}
	if item.Assignee != "" {
		rows = append(rows, st.muted.Render("assignee: ")+item.Assignee)
	}
	if item.RecordType != domain.RecordNone {
		rows = append(rows, st.muted.Render("record:   ")+string(item.RecordType)+" "+item.RecordID)
	}
	rows = append(rows, st.muted.Render("id:       ")+item.ID)
	if desc := m.md.render(item.Description, width); desc != "" {
		rows = append(rows, "", desc)
	}
	rows = append(rows, "", st.muted.Render("y copy id • esc close"))
	return strings.Join(rows, "\n")
}

// boardStyles are the shared text styles of the board.
type boardStyles struct {
	columnTitle lipgloss.Style
	selected    lipgloss.Style
	target      lipgloss.Style
	muted       lipgloss.Style
}

func (m Model) styles() boardStyles {
	return boardStyles{
		columnTitle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")),
		selected:    lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		target:      lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Underline(true),
		muted:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// padRight pads styled text with spaces to width cells.
func padRight(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// wrapText breaks s into lines of at most width cells on word boundaries.
func wrapText(s string, width int) string {
	words := strings.Fields(s)
	if len(words) == 0 || width <= 0 {
		return s
	}
	lines := []string{}
	line := words[0]
	for _, word := range words[1:] {
		if lipgloss.Width(line)+1+lipgloss.Width(word) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	return strings.Join(append(lines, line), "\n")
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent overlays on content.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}
	canvas := lipgloss.NewCanvas(width, height)
	canvas.Compose(lipgloss.NewLayer(fitLines(base, height)).X(0).Y(0).Z(0))
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	canvas.Compose(lipgloss.NewLayer(centered).X(0).Y(0).Z(10))
	return canvas.Render()
}

// truncate truncates the requested operation.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit == 1 {
		return string(rs[:1])
	}
	return string(rs[:limit-1]) + "…"
}

// clamp clamps the requested operation.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	return min(max(v, minV), maxV)
}
