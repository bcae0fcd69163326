package tui

import (
	"strings"
	"time"

	"github.com/hylla/lanes/internal/domain"
	"github.com/hylla/lanes/internal/kanban"
)

// defaultActorID attributes board mutations made from the terminal.
const defaultActorID = "lanes-tui"

// defaultToastDuration is how long notices stay up when no duration is configured.
const defaultToastDuration = 4 * time.Second

// Option configures a Model.
type Option func(*Model)

// WithBoard selects the board shown first.
func WithBoard(kind domain.BoardKind) Option {
	return func(m *Model) {
		if kind.Valid() {
			m.startBoard = kind
		}
	}
}

// WithAssignee limits every board to items owned by one assignee.
func WithAssignee(assignee string) Option {
	return func(m *Model) {
		m.filter.Assignee = strings.TrimSpace(assignee)
	}
}

// WithResolver sets the collision strategy used by mouse drags.
func WithResolver(resolver kanban.DropResolver) Option {
	return func(m *Model) {
		if resolver != nil {
			m.engineOpts = append(m.engineOpts, kanban.WithResolver(resolver))
		}
	}
}

// WithActivationDistance sets how many cells the pointer travels before a press becomes a drag.
func WithActivationDistance(cells int) Option {
	return func(m *Model) {
		m.engineOpts = append(m.engineOpts, kanban.WithActivationDistance(cells))
	}
}

// WithLogger routes engine lifecycle logs.
func WithLogger(logger kanban.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.engineOpts = append(m.engineOpts, kanban.WithLogger(logger))
		}
	}
}

// WithClock sets the time source for classification and due labels.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
			m.engineOpts = append(m.engineOpts, kanban.WithClock(now))
		}
	}
}

// WithToastDuration sets how long notices stay visible.
func WithToastDuration(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.toastDuration = d
		}
	}
}

// WithActorID names the user attributed with board mutations.
func WithActorID(actorID string) Option {
	return func(m *Model) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			m.actorID = actorID
		}
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}
