package domain

import "time"

// Patch is a partial update of an item's mutable fields. Nil fields are left untouched; the Clear
// flags null out optional timestamps.
type Patch struct {
	Title            *string    `json:"title,omitempty"`
	Description      *string    `json:"description,omitempty"`
	Status           *Status    `json:"status,omitempty"`
	Completed        *bool      `json:"completed,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ClearCompletedAt bool       `json:"clear_completed_at,omitempty"`
	DueAt            *time.Time `json:"due_at,omitempty"`
	ClearDueAt       bool       `json:"clear_due_at,omitempty"`
	Priority         *Priority  `json:"priority,omitempty"`
	Assignee         *string    `json:"assignee,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil &&
		p.Description == nil &&
		p.Status == nil &&
		p.Completed == nil &&
		p.CompletedAt == nil &&
		!p.ClearCompletedAt &&
		p.DueAt == nil &&
		!p.ClearDueAt &&
		p.Priority == nil &&
		p.Assignee == nil
}

// Ptr returns a pointer to v; handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
