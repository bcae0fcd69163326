package domain

import (
	"slices"
	"strings"
)

// BoardKind identifies one of the CRM boards.
type BoardKind string

// BoardKind values.
const (
	BoardTasks        BoardKind = "tasks"
	BoardImprovements BoardKind = "improvements"
	BoardRoadmap      BoardKind = "roadmap"
)

var boardKinds = []BoardKind{BoardTasks, BoardImprovements, BoardRoadmap}

// Status is a board-specific lifecycle value.
type Status string

// Task board statuses.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Improvement-request board statuses (in_progress and completed are shared with tasks).
const (
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusTesting     Status = "testing"
	StatusRejected    Status = "rejected"
)

// Roadmap board statuses (in_progress and testing are shared).
const (
	StatusSuggested Status = "suggested"
	StatusPlanned   Status = "planned"
	StatusDeployed  Status = "deployed"
)

var boardStatuses = map[BoardKind][]Status{
	BoardTasks:        {StatusPending, StatusInProgress, StatusCompleted, StatusCancelled},
	BoardImprovements: {StatusSubmitted, StatusUnderReview, StatusInProgress, StatusTesting, StatusCompleted, StatusRejected},
	BoardRoadmap:      {StatusSuggested, StatusPlanned, StatusInProgress, StatusTesting, StatusDeployed},
}

// terminalStatus is the status a completed item settles into per board.
var terminalStatus = map[BoardKind]Status{
	BoardTasks:        StatusCompleted,
	BoardImprovements: StatusCompleted,
	BoardRoadmap:      StatusDeployed,
}

// BoardKinds returns every known board in display order.
func BoardKinds() []BoardKind {
	return append([]BoardKind(nil), boardKinds...)
}

// ParseBoardKind normalizes raw input into a known board.
func ParseBoardKind(raw string) (BoardKind, error) {
	kind := BoardKind(strings.TrimSpace(strings.ToLower(raw)))
	if !slices.Contains(boardKinds, kind) {
		return "", ErrInvalidBoard
	}
	return kind, nil
}

// Statuses returns the ordered status enum for a board.
func (b BoardKind) Statuses() []Status {
	return append([]Status(nil), boardStatuses[b]...)
}

// Valid reports whether the board is known.
func (b BoardKind) Valid() bool {
	return slices.Contains(boardKinds, b)
}

// HasStatus reports whether status belongs to the board's enum.
func (b BoardKind) HasStatus(status Status) bool {
	return slices.Contains(boardStatuses[b], status)
}

// TerminalStatus returns the status a completed item carries on this board.
func (b BoardKind) TerminalStatus() Status {
	return terminalStatus[b]
}

// InitialStatus returns the first status of the board's enum.
func (b BoardKind) InitialStatus() Status {
	statuses := boardStatuses[b]
	if len(statuses) == 0 {
		return ""
	}
	return statuses[0]
}
