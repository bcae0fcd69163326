package tui

import "github.com/hylla/lanes/internal/kanban"

// Screen geometry shared by rendering and mouse hit testing.
const (
	boardTop       = 2
	footerRows     = 3
	minColumnWidth = 16
	minBoardHeight = 8
	cardRows       = 2
	cardStride     = cardRows + 1
	columnGap      = 1
)

// cardLayout is one visible card and its screen rect.
type cardLayout struct {
	itemID string
	rect   kanban.Rect
}

// columnLayout is one column box and the cards that fit inside it.
type columnLayout struct {
	id     string
	name   string
	rect   kanban.Rect
	cards  []cardLayout
	hidden int
}

// boardLayout is the full drop surface of the active board.
type boardLayout struct {
	columns []columnLayout
}

// columnWidthFor splits the terminal width across n columns.
func columnWidthFor(width, n int) int {
	if n <= 0 {
		return minColumnWidth
	}
	return max(minColumnWidth, (width-columnGap*(n-1))/n)
}

// boardHeightFor returns the column box height for a terminal height.
func boardHeightFor(height int) int {
	return max(minBoardHeight, height-boardTop-footerRows)
}

// cardCapacity returns how many cards fit in a column box of height h.
func cardCapacity(h int) int {
	inner := h - 3
	if inner < cardRows {
		return 0
	}
	return (inner + 1) / cardStride
}

// buildLayout positions columns left to right and stacks each column's cards from scroll offset
// top.
func buildLayout(board kanban.Board, index kanban.ColumnIndex, width, height int, tops map[string]int) boardLayout {
	colWidth := columnWidthFor(width, len(board.Columns))
	colHeight := boardHeightFor(height)
	capacity := cardCapacity(colHeight)
	out := boardLayout{columns: make([]columnLayout, 0, len(board.Columns))}
	for i, column := range board.Columns {
		rect := kanban.Rect{X: i * (colWidth + columnGap), Y: boardTop, W: colWidth, H: colHeight}
		ids := index.IDs(column.ID)
		top := clamp(tops[column.ID], 0, max(0, len(ids)-capacity))
		visible := ids[top:]
		if len(visible) > capacity {
			visible = visible[:capacity]
		}
		cards := make([]cardLayout, 0, len(visible))
		for j, id := range visible {
			cards = append(cards, cardLayout{
				itemID: id,
				rect: kanban.Rect{
					X: rect.X + 2,
					Y: rect.Y + 2 + j*cardStride,
					W: max(1, colWidth-4),
					H: cardRows,
				},
			})
		}
		out.columns = append(out.columns, columnLayout{
			id:     column.ID,
			name:   column.Name,
			rect:   rect,
			cards:  cards,
			hidden: len(ids) - len(visible),
		})
	}
	return out
}

// geometries returns every droppable region, columns first.
func (l boardLayout) geometries() []kanban.Geometry {
	out := make([]kanban.Geometry, 0, len(l.columns)*4)
	for _, column := range l.columns {
		out = append(out, kanban.Geometry{ID: column.id, Column: column.id, Kind: kanban.GeometryColumn, Rect: column.rect})
	}
	for _, column := range l.columns {
		for _, card := range column.cards {
			out = append(out, kanban.Geometry{ID: card.itemID, Column: column.id, Kind: kanban.GeometryItem, Rect: card.rect})
		}
	}
	return out
}

// cardAt returns the card under p.
func (l boardLayout) cardAt(p kanban.Point) (cardLayout, int, bool) {
	for i, column := range l.columns {
		for _, card := range column.cards {
			if card.rect.Contains(p) {
				return card, i, true
			}
		}
	}
	return cardLayout{}, -1, false
}

// columnAt returns the index of the column box under p.
func (l boardLayout) columnAt(p kanban.Point) (int, bool) {
	for i, column := range l.columns {
		if column.rect.Contains(p) {
			return i, true
		}
	}
	return -1, false
}

// card returns the layout of one visible card.
func (l boardLayout) card(itemID string) (cardLayout, bool) {
	for _, column := range l.columns {
		for _, card := range column.cards {
			if card.itemID == itemID {
				return card, true
			}
		}
	}
	return cardLayout{}, false
}

// center returns the middle cell of r.
func center(r kanban.Rect) kanban.Point {
	return kanban.Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}
