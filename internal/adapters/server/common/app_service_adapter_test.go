package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hylla/lanes/internal/adapters/storage/sqlite"
	"github.com/hylla/lanes/internal/app"
	"github.com/hylla/lanes/internal/domain"
	"github.com/hylla/lanes/internal/kanban"
)

var adapterNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// newTestAdapter builds an adapter over an in-memory sqlite service.
func newTestAdapter(t *testing.T) (*AppServiceAdapter, *sqlite.Repository) {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	seq := 0
	svc := app.NewService(repo, func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}, func() time.Time { return adapterNow }, app.ServiceConfig{})
	return NewAppServiceAdapter(svc), repo
}

// TestAppServiceAdapterListBoards verifies every catalog is exposed with its columns.
func TestAppServiceAdapterListBoards(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	boards, err := adapter.ListBoards(context.Background())
	if err != nil {
		t.Fatalf("ListBoards() error = %v", err)
	}
	if len(boards) != 3 {
		t.Fatalf("expected 3 boards, got %d", len(boards))
	}
	var ids []string
	for _, column := range boards[0].Columns {
		ids = append(ids, column.ID)
	}
	want := []string{kanban.ColumnPlanned, kanban.ColumnOverdue, kanban.ColumnInProgress, kanban.ColumnComplete}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("task columns mismatch (-want +got):\n%s", diff)
	}
	if boards[2].CompletionColumn != string(domain.StatusDeployed) {
		t.Fatalf("expected roadmap completion column deployed, got %q", boards[2].CompletionColumn)
	}
}

// TestAppServiceAdapterCreateListAndIndex verifies column derivation on transport views.
func TestAppServiceAdapterCreateListAndIndex(t *testing.T) {
	ctx := context.Background()
	adapter, _ := newTestAdapter(t)

	overdue, err := adapter.CreateItem(ctx, CreateItemRequest{
		Board: "tasks",
		Title: "Send quote",
		DueAt: "2026-03-09T09:00:00Z",
	})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if overdue.Column != kanban.ColumnOverdue {
		t.Fatalf("expected overdue column, got %q", overdue.Column)
	}
	done, err := adapter.CreateItem(ctx, CreateItemRequest{Board: "tasks", Title: "Kickoff", Completed: true})
	if err != nil {
		t.Fatalf("CreateItem(completed) error = %v", err)
	}
	if done.Column != kanban.ColumnComplete {
		t.Fatalf("expected complete column, got %q", done.Column)
	}

	items, err := adapter.ListItems(ctx, ListItemsRequest{Board: "tasks"})
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	index, err := adapter.BoardIndex(ctx, ListItemsRequest{Board: "tasks"})
	if err != nil {
		t.Fatalf("BoardIndex() error = %v", err)
	}
	want := map[string][]string{
		kanban.ColumnPlanned:    {},
		kanban.ColumnOverdue:    {overdue.ID},
		kanban.ColumnInProgress: {},
		kanban.ColumnComplete:   {done.ID},
	}
	if diff := cmp.Diff(want, index); diff != "" {
		t.Fatalf("index mismatch (-want +got):\n%s", diff)
	}
}

// TestAppServiceAdapterMoveConfirmation verifies guarded moves surface their prompt.
func TestAppServiceAdapterMoveConfirmation(t *testing.T) {
	ctx := context.Background()
	adapter, _ := newTestAdapter(t)
	item, err := adapter.CreateItem(ctx, CreateItemRequest{Board: "tasks", Title: "Renewal call", DueAt: "2026-03-20T09:00:00Z"})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	_, err = adapter.MoveItem(ctx, MoveItemRequest{ItemID: item.ID, ToColumn: kanban.ColumnOverdue})
	var confirmErr *ConfirmationError
	if !errors.As(err, &confirmErr) {
		t.Fatalf("expected ConfirmationError, got %v", err)
	}
	if !errors.Is(err, ErrConfirmationRequired) || confirmErr.Prompt == "" {
		t.Fatalf("unexpected confirmation error %#v", confirmErr)
	}

	moved, err := adapter.MoveItem(ctx, MoveItemRequest{ItemID: item.ID, ToColumn: kanban.ColumnOverdue, Confirm: true})
	if err != nil {
		t.Fatalf("MoveItem(confirm) error = %v", err)
	}
	if moved.Item.DueAt == nil || !moved.Item.DueAt.Equal(adapterNow) {
		t.Fatalf("expected due date reset to now, got %v", moved.Item.DueAt)
	}

	if _, err := adapter.MoveItem(ctx, MoveItemRequest{ItemID: item.ID, ToColumn: "backlog"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid column error, got %v", err)
	}
}

// TestAppServiceAdapterErrorMapping verifies app failures translate into transport categories.
func TestAppServiceAdapterErrorMapping(t *testing.T) {
	ctx := context.Background()
	adapter, _ := newTestAdapter(t)
	item, err := adapter.CreateItem(ctx, CreateItemRequest{Board: "roadmap", Title: "SSO"})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{
			name: "unknown board",
			run: func() error {
				_, err := adapter.ListItems(ctx, ListItemsRequest{Board: "leads"})
				return err
			},
			want: ErrNotFound,
		},
		{
			name: "missing item",
			run: func() error {
				return adapter.DeleteItem(ctx, DeleteItemRequest{ItemID: "missing"})
			},
			want: ErrNotFound,
		},
		{
			name: "bad delete mode",
			run: func() error {
				return adapter.DeleteItem(ctx, DeleteItemRequest{ItemID: item.ID, Mode: "shred"})
			},
			want: ErrInvalidRequest,
		},
		{
			name: "same column",
			run: func() error {
				_, err := adapter.MoveItem(ctx, MoveItemRequest{ItemID: item.ID, ToColumn: string(domain.StatusSuggested)})
				return err
			},
			want: ErrConflict,
		},
		{
			name: "bad due date",
			run: func() error {
				_, err := adapter.CreateItem(ctx, CreateItemRequest{Board: "tasks", Title: "x", DueAt: "tomorrow"})
				return err
			},
			want: ErrInvalidRequest,
		},
		{
			name: "empty patch",
			run: func() error {
				_, err := adapter.UpdateItem(ctx, UpdateItemRequest{ItemID: item.ID})
				return err
			},
			want: ErrInvalidRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

// TestAppServiceAdapterUpdateAndActor verifies patches persist and carry caller attribution.
func TestAppServiceAdapterUpdateAndActor(t *testing.T) {
	adapter, repo := newTestAdapter(t)
	ctx := WithActor(context.Background(), "mcp-agent", domain.ActorTypeAgent)
	item, err := adapter.CreateItem(ctx, CreateItemRequest{Board: "tasks", Title: "Draft proposal", DueAt: "2026-03-12T09:00:00Z"})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	updated, err := adapter.UpdateItem(ctx, UpdateItemRequest{
		ItemID:    item.ID,
		Completed: domain.Ptr(true),
		Status:    domain.Ptr(string(domain.StatusCompleted)),
		DueAt:     domain.Ptr(""),
	})
	if err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	if updated.Column != kanban.ColumnComplete || updated.DueAt != nil || updated.CompletedAt == nil {
		t.Fatalf("unexpected updated item %#v", updated)
	}

	events, err := repo.ListChangeEvents(context.Background(), domain.BoardTasks, 5)
	if err != nil {
		t.Fatalf("ListChangeEvents() error = %v", err)
	}
	if len(events) != 2 || events[0].Operation != domain.ChangeOperationComplete {
		t.Fatalf("unexpected events %#v", events)
	}
	if events[0].ActorID != "mcp-agent" || events[0].ActorType != domain.ActorTypeAgent {
		t.Fatalf("expected agent attribution, got %q/%q", events[0].ActorID, events[0].ActorType)
	}

	outer := WithActor(ctx, "someone-else", domain.ActorTypeUser)
	if actor, _ := app.MutationActorFromContext(outer); actor.ActorID != "mcp-agent" {
		t.Fatalf("expected existing actor to win, got %q", actor.ActorID)
	}
}
