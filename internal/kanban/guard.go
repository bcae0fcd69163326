package kanban

import (
	"fmt"
	"time"

	"github.com/hylla/lanes/internal/domain"
)

// TransitionPolicy decides what a cross-column move means for an item's stored attributes.
type TransitionPolicy interface {
	Decide(item domain.Item, from, to string, now time.Time) (Decision, error)
}

// Decision is the outcome of a transition check. When RequiresConfirmation is set the patch must
// not be applied until the user confirms Prompt.
type Decision struct {
	RequiresConfirmation bool
	Patch                domain.Patch
	Prompt               string
}

type taskPolicy struct {
	columns map[string]struct{}
}

// Decide maps a task board destination to its canonical attribute tuple. Moving into overdue
// backdates the due date and is guarded unless the item is already overdue by date.
func (p taskPolicy) Decide(item domain.Item, _, to string, now time.Time) (Decision, error) {
	if _, ok := p.columns[to]; !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownColumn, to)
	}
	now = now.UTC()
	switch to {
	case ColumnComplete:
		return Decision{Patch: domain.Patch{
			Status:      domain.Ptr(domain.StatusCompleted),
			Completed:   domain.Ptr(true),
			CompletedAt: &now,
		}}, nil
	case ColumnInProgress:
		return Decision{Patch: reopenPatch(domain.StatusInProgress)}, nil
	case ColumnOverdue:
		if item.DueAt != nil && item.DueAt.Before(now) {
			return Decision{Patch: reopenPatch(domain.StatusPending)}, nil
		}
		patch := domain.Patch{
			DueAt:  &now,
			Status: domain.Ptr(domain.StatusPending),
		}
		if item.IsTerminal() {
			patch.Completed = domain.Ptr(false)
			patch.ClearCompletedAt = true
		}
		return Decision{
			RequiresConfirmation: true,
			Patch:                patch,
			Prompt:               fmt.Sprintf("Mark %q as overdue? Its due date will be set to now.", item.Title),
		}, nil
	default:
		return Decision{Patch: reopenPatch(domain.StatusPending)}, nil
	}
}

type statusPolicy struct {
	columns    map[string]struct{}
	completion string
}

// Decide moves an item to the status named by the destination column, toggling completion when
// entering or leaving the completion column.
func (p statusPolicy) Decide(item domain.Item, from, to string, now time.Time) (Decision, error) {
	if _, ok := p.columns[to]; !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownColumn, to)
	}
	now = now.UTC()
	patch := domain.Patch{Status: domain.Ptr(domain.Status(to))}
	switch {
	case to == p.completion:
		patch.Completed = domain.Ptr(true)
		patch.CompletedAt = &now
	case from == p.completion || item.Completed:
		patch.Completed = domain.Ptr(false)
		patch.ClearCompletedAt = true
	}
	return Decision{Patch: patch}, nil
}

func reopenPatch(status domain.Status) domain.Patch {
	return domain.Patch{
		Status:           domain.Ptr(status),
		Completed:        domain.Ptr(false),
		ClearCompletedAt: true,
	}
}
