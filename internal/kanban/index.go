package kanban

import (
	"slices"
	"time"

	"github.com/hylla/lanes/internal/domain"
)

// ColumnIndex is the derived column id -> ordered item ids view of a board.
type ColumnIndex struct {
	order   []string
	members map[string][]string
}

// BuildIndex derives the index for items. pins force an item into a column regardless of its
// classification; overrides fix the relative order of listed items within a column.
func BuildIndex(board Board, items []domain.Item, now time.Time, pins map[string]string, overrides map[string][]string) ColumnIndex {
	idx := ColumnIndex{
		order:   board.ColumnIDs(),
		members: make(map[string][]string, len(board.Columns)),
	}
	buckets := make(map[string][]domain.Item, len(board.Columns))
	for _, item := range items {
		column := board.ColumnFor(item, now)
		if pinned, ok := pins[item.ID]; ok && board.HasColumn(pinned) {
			column = pinned
		}
		buckets[column] = append(buckets[column], item)
	}
	for _, column := range idx.order {
		bucket := buckets[column]
		board.sortItems(bucket)
		idx.members[column] = applyOverride(bucket, overrides[column])
	}
	return idx
}

// applyOverride places override-listed members first, in override order, then the rest naturally.
func applyOverride(bucket []domain.Item, override []string) []string {
	out := make([]string, 0, len(bucket))
	present := make(map[string]bool, len(bucket))
	for _, item := range bucket {
		present[item.ID] = true
	}
	seen := make(map[string]bool, len(override))
	for _, id := range override {
		if !present[id] || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, item := range bucket {
		if !seen[item.ID] {
			out = append(out, item.ID)
		}
	}
	return out
}

// Columns returns column ids in catalog order.
func (idx ColumnIndex) Columns() []string {
	return slices.Clone(idx.order)
}

// IDs returns the ordered item ids of a column.
func (idx ColumnIndex) IDs(column string) []string {
	return slices.Clone(idx.members[column])
}

// Len returns the number of items in a column.
func (idx ColumnIndex) Len(column string) int {
	return len(idx.members[column])
}

// Locate finds the column and position of an item.
func (idx ColumnIndex) Locate(id string) (string, int, bool) {
	for _, column := range idx.order {
		if pos := slices.Index(idx.members[column], id); pos >= 0 {
			return column, pos, true
		}
	}
	return "", -1, false
}

// Clone returns a deep copy.
func (idx ColumnIndex) Clone() ColumnIndex {
	out := ColumnIndex{
		order:   slices.Clone(idx.order),
		members: make(map[string][]string, len(idx.members)),
	}
	for column, ids := range idx.members {
		out.members[column] = slices.Clone(ids)
	}
	return out
}

// Equal reports whether both indexes hold the same columns and orders.
func (idx ColumnIndex) Equal(other ColumnIndex) bool {
	if !slices.Equal(idx.order, other.order) {
		return false
	}
	for _, column := range idx.order {
		if !slices.Equal(idx.members[column], other.members[column]) {
			return false
		}
	}
	return true
}

// Snapshot returns the index as a plain map, every catalog column present.
func (idx ColumnIndex) Snapshot() map[string][]string {
	out := make(map[string][]string, len(idx.order))
	for _, column := range idx.order {
		ids := slices.Clone(idx.members[column])
		if ids == nil {
			ids = []string{}
		}
		out[column] = ids
	}
	return out
}

// cloneOverrides deep-copies an override map.
func cloneOverrides(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for column, ids := range in {
		out[column] = slices.Clone(ids)
	}
	return out
}

// splice moves id to position pos within ids, clamping pos to the list bounds.
func splice(ids []string, id string, pos int) []string {
	out := slices.DeleteFunc(slices.Clone(ids), func(v string) bool { return v == id })
	pos = max(0, min(pos, len(out)))
	return slices.Insert(out, pos, id)
}
