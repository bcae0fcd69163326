package domain

import (
	"slices"
	"strings"
	"time"
)

// Priority is an ordinal urgency carried through for sorting ties.
type Priority string

// Priority values in ascending rank.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Rank returns the ordinal of the priority; unknown values rank below low.
func (p Priority) Rank() int {
	return slices.Index(validPriorities, p)
}

// RecordType names the CRM record an item hangs off.
type RecordType string

// RecordType values.
const (
	RecordNone    RecordType = ""
	RecordContact RecordType = "contact"
	RecordCompany RecordType = "company"
	RecordDeal    RecordType = "deal"
)

var validRecordTypes = []RecordType{RecordNone, RecordContact, RecordCompany, RecordDeal}

// Item is an entity placed on a board: a task, an improvement request or a roadmap suggestion.
type Item struct {
	ID          string     `json:"id"`
	Board       BoardKind  `json:"board"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Priority    Priority   `json:"priority"`
	Assignee    string     `json:"assignee,omitempty"`
	RecordType  RecordType `json:"record_type,omitempty"`
	RecordID    string     `json:"record_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
}

// ItemInput holds the fields accepted when creating an item.
type ItemInput struct {
	ID          string
	Board       BoardKind
	Title       string
	Description string
	Status      Status
	Completed   bool
	CompletedAt *time.Time
	DueAt       *time.Time
	Priority    Priority
	Assignee    string
	RecordType  RecordType
	RecordID    string
}

// NewItem constructs a validated item.
func NewItem(in ItemInput, now time.Time) (Item, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Assignee = strings.TrimSpace(in.Assignee)
	in.RecordID = strings.TrimSpace(in.RecordID)

	if in.ID == "" {
		return Item{}, ErrInvalidID
	}
	if !in.Board.Valid() {
		return Item{}, ErrInvalidBoard
	}
	if in.Title == "" {
		return Item{}, ErrInvalidTitle
	}
	if in.Status == "" {
		in.Status = in.Board.InitialStatus()
	}
	if !in.Board.HasStatus(in.Status) {
		return Item{}, ErrInvalidStatus
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(validPriorities, in.Priority) {
		return Item{}, ErrInvalidPriority
	}
	if !slices.Contains(validRecordTypes, in.RecordType) {
		return Item{}, ErrInvalidRecordType
	}
	if in.RecordType == RecordNone {
		in.RecordID = ""
	}

	item := Item{
		ID:          in.ID,
		Board:       in.Board,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Completed:   in.Completed,
		CompletedAt: normalizeTS(in.CompletedAt),
		DueAt:       normalizeTS(in.DueAt),
		Priority:    in.Priority,
		Assignee:    in.Assignee,
		RecordType:  in.RecordType,
		RecordID:    in.RecordID,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if item.Completed {
		item.Status = item.Board.TerminalStatus()
		if item.CompletedAt == nil {
			item.CompletedAt = normalizeTS(&now)
		}
	}
	return item, nil
}

// IsTerminal reports whether the item counts as done; the completed flag dominates the status.
func (i Item) IsTerminal() bool {
	return i.Completed || i.Status == i.Board.TerminalStatus()
}

// Apply merges a partial update into the item.
func (i *Item) Apply(p Patch, now time.Time) error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	next := *i
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return ErrInvalidTitle
		}
		next.Title = title
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
	}
	if p.Status != nil {
		if !next.Board.HasStatus(*p.Status) {
			return ErrInvalidStatus
		}
		next.Status = *p.Status
	}
	if p.Priority != nil {
		if !slices.Contains(validPriorities, *p.Priority) {
			return ErrInvalidPriority
		}
		next.Priority = *p.Priority
	}
	if p.Assignee != nil {
		next.Assignee = strings.TrimSpace(*p.Assignee)
	}
	if p.Completed != nil {
		next.Completed = *p.Completed
	}
	switch {
	case p.ClearCompletedAt:
		next.CompletedAt = nil
	case p.CompletedAt != nil:
		next.CompletedAt = normalizeTS(p.CompletedAt)
	}
	switch {
	case p.ClearDueAt:
		next.DueAt = nil
	case p.DueAt != nil:
		next.DueAt = normalizeTS(p.DueAt)
	}
	next.UpdatedAt = now.UTC()
	*i = next
	return nil
}

// Archive archives the item.
func (i *Item) Archive(now time.Time) {
	ts := now.UTC()
	i.ArchivedAt = &ts
	i.UpdatedAt = ts
}

// Restore clears the archive marker.
func (i *Item) Restore(now time.Time) {
	i.ArchivedAt = nil
	i.UpdatedAt = now.UTC()
}

// ItemFilter scopes a board listing.
type ItemFilter struct {
	Board           BoardKind
	Assignee        string
	RecordType      RecordType
	RecordID        string
	IncludeArchived bool
}

// Matches reports whether the item falls inside the filter.
func (f ItemFilter) Matches(item Item) bool {
	if f.Board != "" && item.Board != f.Board {
		return false
	}
	if f.Assignee != "" && !strings.EqualFold(item.Assignee, f.Assignee) {
		return false
	}
	if f.RecordType != RecordNone && item.RecordType != f.RecordType {
		return false
	}
	if f.RecordID != "" && item.RecordID != f.RecordID {
		return false
	}
	if !f.IncludeArchived && item.ArchivedAt != nil {
		return false
	}
	return true
}

// normalizeTS stores timestamps in UTC at second precision.
func normalizeTS(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	out := ts.UTC().Truncate(time.Second)
	return &out
}
