// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/hylla/lanes/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConfirmationRequired reports a guarded move that needs an explicit confirm flag.
var ErrConfirmationRequired = errors.New("confirmation required")

// ErrConflict reports a request that cannot apply to the current item state.
var ErrConflict = errors.New("conflict")

// ColumnView describes one board column for transport payloads.
type ColumnView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// BoardView describes one board catalog.
type BoardView struct {
	Kind             string       `json:"kind"`
	Columns          []ColumnView `json:"columns"`
	DefaultColumn    string       `json:"default_column"`
	CompletionColumn string       `json:"completion_column"`
	Statuses         []string     `json:"statuses"`
}

// ItemView is one item plus the column it currently classifies into.
type ItemView struct {
	domain.Item
	Column string `json:"column"`
}

// ListItemsRequest captures list filters for one board.
type ListItemsRequest struct {
	Board           string
	Assignee        string
	RecordType      string
	RecordID        string
	IncludeArchived bool
}

// CreateItemRequest captures one item creation payload.
type CreateItemRequest struct {
	Board       string `json:"-"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Completed   bool   `json:"completed,omitempty"`
	DueAt       string `json:"due_at,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Assignee    string `json:"assignee,omitempty"`
	RecordType  string `json:"record_type,omitempty"`
	RecordID    string `json:"record_id,omitempty"`
}

// UpdateItemRequest captures one partial item update. Nil fields are left unchanged.
type UpdateItemRequest struct {
	ItemID      string  `json:"-"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	DueAt       *string `json:"due_at,omitempty"`
	ClearDueAt  bool    `json:"clear_due_at,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Assignee    *string `json:"assignee,omitempty"`
}

// MoveItemRequest captures one column move.
type MoveItemRequest struct {
	ItemID   string `json:"-"`
	ToColumn string `json:"to_column"`
	Confirm  bool   `json:"confirm,omitempty"`
}

// MoveItemResponse reports a completed move.
type MoveItemResponse struct {
	Item ItemView `json:"item"`
	From string   `json:"from"`
	To   string   `json:"to"`
}

// DeleteItemRequest captures one delete call.
type DeleteItemRequest struct {
	ItemID string
	Mode   string
}

// ListEventsRequest captures one activity-ledger query.
type ListEventsRequest struct {
	Board string
	Limit int
}

// ConfirmationError carries the prompt for a guarded move.
type ConfirmationError struct {
	ItemID string
	Column string
	Prompt string
}

// Error implements error.
func (e *ConfirmationError) Error() string {
	return "confirmation required: " + e.Prompt
}

// Unwrap lets errors.Is match ErrConfirmationRequired.
func (e *ConfirmationError) Unwrap() error {
	return ErrConfirmationRequired
}

// BoardService is the transport-facing surface shared by REST and MCP.
type BoardService interface {
	ListBoards(context.Context) ([]BoardView, error)
	ListItems(context.Context, ListItemsRequest) ([]ItemView, error)
	CreateItem(context.Context, CreateItemRequest) (ItemView, error)
	UpdateItem(context.Context, UpdateItemRequest) (ItemView, error)
	MoveItem(context.Context, MoveItemRequest) (MoveItemResponse, error)
	DeleteItem(context.Context, DeleteItemRequest) error
	BoardIndex(context.Context, ListItemsRequest) (map[string][]string, error)
	ListChangeEvents(context.Context, ListEventsRequest) ([]domain.ChangeEvent, error)
}
