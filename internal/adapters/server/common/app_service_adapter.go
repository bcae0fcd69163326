package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/lanes/internal/app"
	"github.com/hylla/lanes/internal/domain"
	"github.com/hylla/lanes/internal/kanban"
)

// AppServiceAdapter maps transport contracts onto app.Service board APIs.
type AppServiceAdapter struct {
	service *app.Service
}

var _ BoardService = (*AppServiceAdapter)(nil)

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// WithActor attributes mutations on ctx to one caller unless an actor is already attached.
func WithActor(ctx context.Context, actorID string, actorType domain.ActorType) context.Context {
	if _, ok := app.MutationActorFromContext(ctx); ok {
		return ctx
	}
	return app.WithMutationActor(ctx, app.MutationActor{ActorID: actorID, ActorType: actorType})
}

// ListBoards returns every board catalog in display order.
func (a *AppServiceAdapter) ListBoards(context.Context) ([]BoardView, error) {
	if a == nil || a.service == nil {
		return nil, errAdapterUnconfigured
	}
	boards := a.service.Boards()
	out := make([]BoardView, 0, len(boards))
	for _, board := range boards {
		out = append(out, mapBoard(board))
	}
	return out, nil
}

// ListItems lists one board's items with their current column.
func (a *AppServiceAdapter) ListItems(ctx context.Context, in ListItemsRequest) ([]ItemView, error) {
	if a == nil || a.service == nil {
		return nil, errAdapterUnconfigured
	}
	board, filter, err := a.resolveFilter(in)
	if err != nil {
		return nil, err
	}
	items, err := a.service.ListItems(ctx, filter)
	if err != nil {
		return nil, mapAppError("list items", err)
	}
	now := a.service.Now()
	out := make([]ItemView, 0, len(items))
	for _, item := range items {
		out = append(out, ItemView{Item: item, Column: board.ColumnFor(item, now)})
	}
	return out, nil
}

// CreateItem creates one item on a board.
func (a *AppServiceAdapter) CreateItem(ctx context.Context, in CreateItemRequest) (ItemView, error) {
	if a == nil || a.service == nil {
		return ItemView{}, errAdapterUnconfigured
	}
	kind, err := parseBoard(in.Board)
	if err != nil {
		return ItemView{}, err
	}
	dueAt, err := parseOptionalTime("due_at", in.DueAt)
	if err != nil {
		return ItemView{}, err
	}
	item, err := a.service.CreateItem(ctx, app.CreateItemInput{
		Board:       kind,
		Title:       in.Title,
		Description: in.Description,
		Status:      domain.Status(strings.TrimSpace(in.Status)),
		Completed:   in.Completed,
		DueAt:       dueAt,
		Priority:    domain.Priority(strings.TrimSpace(in.Priority)),
		Assignee:    in.Assignee,
		RecordType:  domain.RecordType(strings.TrimSpace(in.RecordType)),
		RecordID:    in.RecordID,
	})
	if err != nil {
		return ItemView{}, mapAppError("create item", err)
	}
	return a.itemView(item)
}

// UpdateItem applies one partial update.
func (a *AppServiceAdapter) UpdateItem(ctx context.Context, in UpdateItemRequest) (ItemView, error) {
	if a == nil || a.service == nil {
		return ItemView{}, errAdapterUnconfigured
	}
	itemID := strings.TrimSpace(in.ItemID)
	if itemID == "" {
		return ItemView{}, fmt.Errorf("item_id is required: %w", ErrInvalidRequest)
	}
	patch := domain.Patch{
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
		Assignee:    in.Assignee,
		ClearDueAt:  in.ClearDueAt,
	}
	if in.Status != nil {
		patch.Status = domain.Ptr(domain.Status(strings.TrimSpace(*in.Status)))
	}
	if in.Priority != nil {
		patch.Priority = domain.Ptr(domain.Priority(strings.TrimSpace(*in.Priority)))
	}
	if in.DueAt != nil {
		dueAt, err := parseOptionalTime("due_at", *in.DueAt)
		if err != nil {
			return ItemView{}, err
		}
		if dueAt == nil {
			patch.ClearDueAt = true
		} else {
			patch.DueAt = dueAt
		}
	}
	if in.Completed != nil {
		if *in.Completed {
			patch.CompletedAt = domain.Ptr(a.service.Now())
		} else {
			patch.ClearCompletedAt = true
		}
	}
	item, err := a.service.UpdateItem(ctx, itemID, patch)
	if err != nil {
		return ItemView{}, mapAppError("update item", err)
	}
	return a.itemView(item)
}

// MoveItem moves one item through its board's transition policy.
func (a *AppServiceAdapter) MoveItem(ctx context.Context, in MoveItemRequest) (MoveItemResponse, error) {
	if a == nil || a.service == nil {
		return MoveItemResponse{}, errAdapterUnconfigured
	}
	itemID := strings.TrimSpace(in.ItemID)
	toColumn := strings.TrimSpace(in.ToColumn)
	if itemID == "" || toColumn == "" {
		return MoveItemResponse{}, fmt.Errorf("item_id and to_column are required: %w", ErrInvalidRequest)
	}
	result, err := a.service.MoveItem(ctx, app.MoveItemInput{
		ItemID:   itemID,
		ToColumn: toColumn,
		Confirm:  in.Confirm,
	})
	if err != nil {
		var confirmErr *app.ConfirmationError
		if errors.As(err, &confirmErr) {
			return MoveItemResponse{}, &ConfirmationError{
				ItemID: confirmErr.ItemID,
				Column: confirmErr.Column,
				Prompt: confirmErr.Prompt,
			}
		}
		return MoveItemResponse{}, mapAppError("move item", err)
	}
	return MoveItemResponse{
		Item: ItemView{Item: result.Item, Column: result.Column},
		From: result.From,
		To:   result.To,
	}, nil
}

// DeleteItem archives or removes one item.
func (a *AppServiceAdapter) DeleteItem(ctx context.Context, in DeleteItemRequest) error {
	if a == nil || a.service == nil {
		return errAdapterUnconfigured
	}
	itemID := strings.TrimSpace(in.ItemID)
	if itemID == "" {
		return fmt.Errorf("item_id is required: %w", ErrInvalidRequest)
	}
	mode := app.DeleteMode(strings.TrimSpace(strings.ToLower(in.Mode)))
	if err := a.service.DeleteItemWithMode(ctx, itemID, mode); err != nil {
		return mapAppError("delete item", err)
	}
	return nil
}

// BoardIndex returns the derived column snapshot for one board.
func (a *AppServiceAdapter) BoardIndex(ctx context.Context, in ListItemsRequest) (map[string][]string, error) {
	if a == nil || a.service == nil {
		return nil, errAdapterUnconfigured
	}
	_, filter, err := a.resolveFilter(in)
	if err != nil {
		return nil, err
	}
	index, err := a.service.BoardIndex(ctx, filter)
	if err != nil {
		return nil, mapAppError("board index", err)
	}
	return index.Snapshot(), nil
}

// ListChangeEvents lists recent activity for one board.
func (a *AppServiceAdapter) ListChangeEvents(ctx context.Context, in ListEventsRequest) ([]domain.ChangeEvent, error) {
	if a == nil || a.service == nil {
		return nil, errAdapterUnconfigured
	}
	kind, err := parseBoard(in.Board)
	if err != nil {
		return nil, err
	}
	if in.Limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0: %w", ErrInvalidRequest)
	}
	events, err := a.service.ListChangeEvents(ctx, kind, in.Limit)
	if err != nil {
		return nil, mapAppError("list change events", err)
	}
	return events, nil
}

// errAdapterUnconfigured reports a nil adapter or service.
var errAdapterUnconfigured = fmt.Errorf("app service adapter is not configured: %w", ErrInvalidRequest)

// resolveFilter validates list input against the board catalog.
func (a *AppServiceAdapter) resolveFilter(in ListItemsRequest) (kanban.Board, domain.ItemFilter, error) {
	kind, err := parseBoard(in.Board)
	if err != nil {
		return kanban.Board{}, domain.ItemFilter{}, err
	}
	board, err := kanban.BoardFor(kind)
	if err != nil {
		return kanban.Board{}, domain.ItemFilter{}, mapAppError("resolve board", err)
	}
	return board, domain.ItemFilter{
		Board:           kind,
		Assignee:        strings.TrimSpace(in.Assignee),
		RecordType:      domain.RecordType(strings.TrimSpace(in.RecordType)),
		RecordID:        strings.TrimSpace(in.RecordID),
		IncludeArchived: in.IncludeArchived,
	}, nil
}

// itemView attaches the current column to one item.
func (a *AppServiceAdapter) itemView(item domain.Item) (ItemView, error) {
	board, err := kanban.BoardFor(item.Board)
	if err != nil {
		return ItemView{}, mapAppError("resolve board", err)
	}
	return ItemView{Item: item, Column: board.ColumnFor(item, a.service.Now())}, nil
}

// mapBoard converts one board catalog into its transport shape.
func mapBoard(board kanban.Board) BoardView {
	columns := make([]ColumnView, 0, len(board.Columns))
	for _, column := range board.Columns {
		columns = append(columns, ColumnView{ID: column.ID, Name: column.Name, Rank: column.Rank})
	}
	statuses := make([]string, 0)
	for _, status := range board.Kind.Statuses() {
		statuses = append(statuses, string(status))
	}
	return BoardView{
		Kind:             string(board.Kind),
		Columns:          columns,
		DefaultColumn:    board.DefaultColumn,
		CompletionColumn: board.CompletionColumn,
		Statuses:         statuses,
	}
}

// parseBoard normalizes one board path or argument value.
func parseBoard(raw string) (domain.BoardKind, error) {
	kind, err := domain.ParseBoardKind(raw)
	if err != nil {
		return "", fmt.Errorf("board %q: %w", raw, errors.Join(ErrNotFound, err))
	}
	return kind, nil
}

// parseOptionalTime parses an RFC3339 timestamp, treating blank input as absent.
func parseOptionalTime(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC3339: %w", field, errors.Join(ErrInvalidRequest, err))
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

// mapAppError translates app/domain errors into transport categories.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound), errors.Is(err, kanban.ErrUnknownBoard):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrSameColumn):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrConfirmationRequired):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConfirmationRequired, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidBoard),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidRecordType),
		errors.Is(err, domain.ErrEmptyPatch),
		errors.Is(err, kanban.ErrUnknownColumn),
		errors.Is(err, app.ErrInvalidDeleteMode):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
