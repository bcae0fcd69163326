package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/hylla/lanes/internal/app"
	"github.com/hylla/lanes/internal/domain"
	_ "modernc.org/sqlite"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "lanes.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func TestRepository_ItemLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(24 * time.Hour)
	item, err := domain.NewItem(domain.ItemInput{
		ID:          "t1",
		Board:       domain.BoardTasks,
		Title:       "Call Acme",
		Description: "Discuss renewal",
		DueAt:       &due,
		Priority:    domain.PriorityHigh,
		Assignee:    "Ana",
		RecordType:  domain.RecordCompany,
		RecordID:    "acme",
	}, now)
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	if err := repo.CreateItem(ctx, item); err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	loaded, err := repo.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if loaded.Title != "Call Acme" || loaded.RecordType != domain.RecordCompany || loaded.RecordID != "acme" {
		t.Fatalf("unexpected loaded item %#v", loaded)
	}
	if loaded.DueAt == nil || !loaded.DueAt.Equal(due) {
		t.Fatalf("unexpected due_at %v", loaded.DueAt)
	}

	later := now.Add(time.Hour)
	if err := loaded.Apply(domain.Patch{
		Status:      domain.Ptr(domain.StatusCompleted),
		Completed:   domain.Ptr(true),
		CompletedAt: &later,
	}, later); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := repo.UpdateItem(ctx, loaded); err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	updated, err := repo.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if !updated.Completed || updated.CompletedAt == nil || !updated.CompletedAt.Equal(later) {
		t.Fatalf("expected completion to persist, got %#v", updated)
	}

	filtered, err := repo.ListItems(ctx, domain.ItemFilter{Board: domain.BoardTasks, Assignee: "ana", RecordType: domain.RecordCompany})
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("expected 1 filtered item, got %d", len(filtered))
	}
	none, err := repo.ListItems(ctx, domain.ItemFilter{Board: domain.BoardRoadmap})
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no roadmap items, got %d", len(none))
	}

	updated.Archive(later.Add(time.Minute))
	if err := repo.UpdateItem(ctx, updated); err != nil {
		t.Fatalf("UpdateItem(archive) error = %v", err)
	}
	active, err := repo.ListItems(ctx, domain.ItemFilter{Board: domain.BoardTasks})
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected archived item hidden, got %d", len(active))
	}
	all, err := repo.ListItems(ctx, domain.ItemFilter{Board: domain.BoardTasks, IncludeArchived: true})
	if err != nil {
		t.Fatalf("ListItems(include archived) error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected archived item listed, got %d", len(all))
	}

	if err := repo.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if _, err := repo.GetItem(ctx, item.ID); err != app.ErrNotFound {
		t.Fatalf("expected app.ErrNotFound, got %v", err)
	}
}

func TestRepository_ChangeEventLedger(t *testing.T) {
	repo := openTestRepo(t)
	ctx := app.WithMutationActor(context.Background(), app.MutationActor{ActorID: "agent-7", ActorType: domain.ActorTypeAgent})

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	item, err := domain.NewItem(domain.ItemInput{ID: "t1", Board: domain.BoardTasks, Title: "Follow up"}, now)
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	if err := repo.CreateItem(ctx, item); err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	steps := []struct {
		patch domain.Patch
		want  domain.ChangeOperation
	}{
		{patch: domain.Patch{Status: domain.Ptr(domain.StatusInProgress)}, want: domain.ChangeOperationMove},
		{patch: domain.Patch{Status: domain.Ptr(domain.StatusCompleted), Completed: domain.Ptr(true)}, want: domain.ChangeOperationComplete},
		{patch: domain.Patch{Status: domain.Ptr(domain.StatusPending), Completed: domain.Ptr(false)}, want: domain.ChangeOperationReopen},
		{patch: domain.Patch{DueAt: &now}, want: domain.ChangeOperationMove},
		{patch: domain.Patch{Title: domain.Ptr("Follow up again")}, want: domain.ChangeOperationUpdate},
	}
	for i, step := range steps {
		current, err := repo.GetItem(ctx, item.ID)
		if err != nil {
			t.Fatalf("GetItem() error = %v", err)
		}
		at := now.Add(time.Duration(i+1) * time.Minute)
		if err := current.Apply(step.patch, at); err != nil {
			t.Fatalf("Apply(%d) error = %v", i, err)
		}
		if err := repo.UpdateItem(ctx, current); err != nil {
			t.Fatalf("UpdateItem(%d) error = %v", i, err)
		}
	}

	events, err := repo.ListChangeEvents(ctx, domain.BoardTasks, 10)
	if err != nil {
		t.Fatalf("ListChangeEvents() error = %v", err)
	}
	if len(events) != len(steps)+1 {
		t.Fatalf("expected %d events, got %d", len(steps)+1, len(events))
	}
	if events[len(events)-1].Operation != domain.ChangeOperationCreate {
		t.Fatalf("expected oldest event to be create, got %q", events[len(events)-1].Operation)
	}
	for i, step := range steps {
		got := events[len(steps)-1-i]
		if got.Operation != step.want {
			t.Fatalf("event %d operation = %q, want %q", i, got.Operation, step.want)
		}
		if got.ActorID != "agent-7" || got.ActorType != domain.ActorTypeAgent {
			t.Fatalf("event %d actor = %q/%q", i, got.ActorID, got.ActorType)
		}
	}
	if events[0].Metadata["changed_fields"] != "title" {
		t.Fatalf("unexpected update metadata %#v", events[0].Metadata)
	}
	if events[4].Metadata["to_status"] != string(domain.StatusInProgress) {
		t.Fatalf("unexpected move metadata %#v", events[4].Metadata)
	}

	limited, err := repo.ListChangeEvents(ctx, domain.BoardTasks, 2)
	if err != nil {
		t.Fatalf("ListChangeEvents(limit) error = %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
	other, err := repo.ListChangeEvents(ctx, domain.BoardRoadmap, 10)
	if err != nil {
		t.Fatalf("ListChangeEvents(roadmap) error = %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no roadmap events, got %d", len(other))
	}
}

func TestRepository_NotFoundCases(t *testing.T) {
	ctx := context.Background()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	if _, err := repo.GetItem(ctx, "missing"); err != app.ErrNotFound {
		t.Fatalf("expected app.ErrNotFound for get, got %v", err)
	}
	if err := repo.DeleteItem(ctx, "missing"); err != app.ErrNotFound {
		t.Fatalf("expected app.ErrNotFound for delete, got %v", err)
	}
	ghost, _ := domain.NewItem(domain.ItemInput{ID: "ghost", Board: domain.BoardTasks, Title: "Ghost"}, time.Now())
	if err := repo.UpdateItem(ctx, ghost); err != app.ErrNotFound {
		t.Fatalf("expected app.ErrNotFound for update, got %v", err)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestRepository_InMemoryDatabasesAreIsolated(t *testing.T) {
	ctx := context.Background()
	first, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })
	second, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	item, _ := domain.NewItem(domain.ItemInput{ID: "r1", Board: domain.BoardRoadmap, Title: "SSO"}, time.Now())
	if err := first.CreateItem(ctx, item); err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if _, err := second.GetItem(ctx, "r1"); err != app.ErrNotFound {
		t.Fatalf("expected second database to be empty, got %v", err)
	}
}

func TestRepository_MigratesLegacyItemsTable(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	_, err = db.ExecContext(ctx, `
		CREATE TABLE items (
			id TEXT PRIMARY KEY,
			board TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			completed_at TEXT,
			due_at TEXT,
			priority TEXT NOT NULL DEFAULT 'medium',
			assignee TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			archived_at TEXT
		)
	`)
	if err != nil {
		t.Fatalf("create legacy table error = %v", err)
	}

	repo, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() on legacy db error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	item, _ := domain.NewItem(domain.ItemInput{
		ID:         "t1",
		Board:      domain.BoardTasks,
		Title:      "Legacy",
		RecordType: domain.RecordDeal,
		RecordID:   "d-9",
	}, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	if err := repo.CreateItem(ctx, item); err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	loaded, err := repo.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if loaded.RecordID != "d-9" {
		t.Fatalf("expected record_id to persist after migration, got %#v", loaded)
	}
}

func TestRepositoryOpenValidation(t *testing.T) {
	if _, err := Open("   "); err == nil {
		t.Fatal("expected error for empty sqlite path")
	}
}
