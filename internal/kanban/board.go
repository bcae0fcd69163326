package kanban

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/hylla/lanes/internal/domain"
)

// Task board column ids. Status-driven boards use their status values as column ids.
const (
	ColumnPlanned    = "planned"
	ColumnOverdue    = "overdue"
	ColumnInProgress = "in_progress"
	ColumnComplete   = "complete"
)

// Classifier maps an item to a column id. It must be pure: same item and instant, same column.
type Classifier func(item domain.Item, now time.Time) string

// Board parameterizes one engine instance: catalog, classifier, transition policy and natural order.
type Board struct {
	Kind             domain.BoardKind
	Columns          []domain.Column
	DefaultColumn    string
	CompletionColumn string
	Classify         Classifier
	Policy           TransitionPolicy
	Compare          func(a, b domain.Item) int
}

// TaskBoard returns the due-date driven task board.
func TaskBoard() Board {
	b := Board{
		Kind: domain.BoardTasks,
		Columns: []domain.Column{
			{ID: ColumnPlanned, Name: "Planned", Rank: 0},
			{ID: ColumnOverdue, Name: "Overdue", Rank: 1},
			{ID: ColumnInProgress, Name: "In Progress", Rank: 2},
			{ID: ColumnComplete, Name: "Complete", Rank: 3},
		},
		DefaultColumn:    ColumnPlanned,
		CompletionColumn: ColumnComplete,
		Classify:         classifyTask,
		Compare:          compareTasks,
	}
	b.Policy = taskPolicy{columns: b.columnSet()}
	return b
}

// ImprovementBoard returns the status-driven improvement request board.
func ImprovementBoard() Board {
	return statusBoard(domain.BoardImprovements, map[domain.Status]string{
		domain.StatusSubmitted:   "Submitted",
		domain.StatusUnderReview: "Under Review",
		domain.StatusInProgress:  "In Progress",
		domain.StatusTesting:     "Testing",
		domain.StatusCompleted:   "Completed",
		domain.StatusRejected:    "Rejected",
	})
}

// RoadmapBoard returns the status-driven roadmap suggestion board.
func RoadmapBoard() Board {
	return statusBoard(domain.BoardRoadmap, map[domain.Status]string{
		domain.StatusSuggested:  "Suggested",
		domain.StatusPlanned:    "Planned",
		domain.StatusInProgress: "In Progress",
		domain.StatusTesting:    "Testing",
		domain.StatusDeployed:   "Deployed",
	})
}

// Boards returns every board catalog in display order.
func Boards() []Board {
	return []Board{TaskBoard(), ImprovementBoard(), RoadmapBoard()}
}

// BoardFor resolves the catalog for a board kind.
func BoardFor(kind domain.BoardKind) (Board, error) {
	switch kind {
	case domain.BoardTasks:
		return TaskBoard(), nil
	case domain.BoardImprovements:
		return ImprovementBoard(), nil
	case domain.BoardRoadmap:
		return RoadmapBoard(), nil
	default:
		return Board{}, fmt.Errorf("%w: %q", ErrUnknownBoard, kind)
	}
}

// statusBoard builds a board whose columns mirror the board's status enum.
func statusBoard(kind domain.BoardKind, names map[domain.Status]string) Board {
	statuses := kind.Statuses()
	columns := make([]domain.Column, 0, len(statuses))
	for rank, status := range statuses {
		columns = append(columns, domain.Column{ID: string(status), Name: names[status], Rank: rank})
	}
	b := Board{
		Kind:             kind,
		Columns:          columns,
		DefaultColumn:    string(statuses[0]),
		CompletionColumn: string(kind.TerminalStatus()),
		Compare:          compareByCreation,
	}
	set := b.columnSet()
	b.Classify = classifyByStatus(set, b.CompletionColumn, b.DefaultColumn)
	b.Policy = statusPolicy{columns: set, completion: b.CompletionColumn}
	return b
}

// ColumnIDs returns catalog ids in rank order.
func (b Board) ColumnIDs() []string {
	out := make([]string, 0, len(b.Columns))
	for _, column := range b.Columns {
		out = append(out, column.ID)
	}
	return out
}

// Column returns the catalog entry for an id.
func (b Board) Column(id string) (domain.Column, bool) {
	for _, column := range b.Columns {
		if column.ID == id {
			return column, true
		}
	}
	return domain.Column{}, false
}

// HasColumn reports whether id is in the catalog.
func (b Board) HasColumn(id string) bool {
	_, ok := b.Column(id)
	return ok
}

// ColumnFor classifies an item, always landing on a catalog column.
func (b Board) ColumnFor(item domain.Item, now time.Time) string {
	if b.Classify != nil {
		if id := b.Classify(item, now); b.HasColumn(id) {
			return id
		}
	}
	if b.HasColumn(b.DefaultColumn) {
		return b.DefaultColumn
	}
	if len(b.Columns) > 0 {
		return b.Columns[0].ID
	}
	return ""
}

// columnSet indexes catalog ids for policy lookups.
func (b Board) columnSet() map[string]struct{} {
	out := make(map[string]struct{}, len(b.Columns))
	for _, column := range b.Columns {
		out[column.ID] = struct{}{}
	}
	return out
}

// compare orders two items by the board's natural order, falling back to id.
func (b Board) compare(a, c domain.Item) int {
	if b.Compare != nil {
		if out := b.Compare(a, c); out != 0 {
			return out
		}
	}
	return cmp.Compare(a.ID, c.ID)
}

// classifyTask derives a task's column from completion, status and due date, highest rule first.
func classifyTask(item domain.Item, now time.Time) string {
	switch {
	case item.Completed || item.Status == domain.StatusCompleted:
		return ColumnComplete
	case item.Status == domain.StatusInProgress:
		return ColumnInProgress
	case item.DueAt != nil && item.DueAt.Before(now):
		return ColumnOverdue
	default:
		return ColumnPlanned
	}
}

func classifyByStatus(columns map[string]struct{}, completion, fallback string) Classifier {
	return func(item domain.Item, _ time.Time) string {
		if item.Completed {
			return completion
		}
		if _, ok := columns[string(item.Status)]; ok {
			return string(item.Status)
		}
		return fallback
	}
}

// compareTasks orders by due date (undated last), then priority, then creation.
func compareTasks(a, b domain.Item) int {
	switch {
	case a.DueAt == nil && b.DueAt != nil:
		return 1
	case a.DueAt != nil && b.DueAt == nil:
		return -1
	case a.DueAt != nil && b.DueAt != nil:
		if out := a.DueAt.Compare(*b.DueAt); out != 0 {
			return out
		}
	}
	if out := cmp.Compare(b.Priority.Rank(), a.Priority.Rank()); out != 0 {
		return out
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}

func compareByCreation(a, b domain.Item) int {
	if out := a.CreatedAt.Compare(b.CreatedAt); out != 0 {
		return out
	}
	return cmp.Compare(b.Priority.Rank(), a.Priority.Rank())
}

// sortItems orders items in place by the board's natural order.
func (b Board) sortItems(items []domain.Item) {
	slices.SortStableFunc(items, b.compare)
}
