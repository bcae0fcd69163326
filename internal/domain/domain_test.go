package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewColumnValidation(t *testing.T) {
	if _, err := NewColumn("  ", "Planned", 0); err != ErrInvalidColumnID {
		t.Fatalf("expected ErrInvalidColumnID, got %v", err)
	}
	if _, err := NewColumn("planned", " ", 0); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := NewColumn("planned", "Planned", -1); err != ErrInvalidRank {
		t.Fatalf("expected ErrInvalidRank, got %v", err)
	}
	c, err := NewColumn(" planned ", " Planned ", 2)
	if err != nil {
		t.Fatalf("NewColumn() error = %v", err)
	}
	if c.ID != "planned" || c.Name != "Planned" || c.Rank != 2 {
		t.Fatalf("unexpected column %#v", c)
	}
}

func TestParseBoardKind(t *testing.T) {
	cases := []struct {
		raw  string
		want BoardKind
		err  error
	}{
		{raw: "tasks", want: BoardTasks},
		{raw: " Roadmap ", want: BoardRoadmap},
		{raw: "IMPROVEMENTS", want: BoardImprovements},
		{raw: "deals", err: ErrInvalidBoard},
		{raw: "", err: ErrInvalidBoard},
	}
	for _, tc := range cases {
		got, err := ParseBoardKind(tc.raw)
		if !errors.Is(err, tc.err) {
			t.Fatalf("ParseBoardKind(%q) error = %v, want %v", tc.raw, err, tc.err)
		}
		if got != tc.want {
			t.Fatalf("ParseBoardKind(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestBoardStatuses(t *testing.T) {
	if BoardTasks.InitialStatus() != StatusPending {
		t.Fatalf("unexpected task initial status %q", BoardTasks.InitialStatus())
	}
	if BoardRoadmap.TerminalStatus() != StatusDeployed {
		t.Fatalf("unexpected roadmap terminal status %q", BoardRoadmap.TerminalStatus())
	}
	if BoardRoadmap.HasStatus(StatusRejected) {
		t.Fatal("expected rejected to be outside the roadmap enum")
	}
	if !BoardImprovements.HasStatus(StatusUnderReview) {
		t.Fatal("expected under_review on the improvements board")
	}
	statuses := BoardTasks.Statuses()
	statuses[0] = "mutated"
	if BoardTasks.InitialStatus() != StatusPending {
		t.Fatal("expected Statuses() to return a copy")
	}
}

func TestNewItemDefaults(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 15, 500, time.UTC)
	item, err := NewItem(ItemInput{
		ID:       "t1",
		Board:    BoardTasks,
		Title:    "  Call Acme  ",
		RecordID: "c9",
	}, now)
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	if item.Title != "Call Acme" {
		t.Fatalf("unexpected title %q", item.Title)
	}
	if item.Status != StatusPending {
		t.Fatalf("unexpected default status %q", item.Status)
	}
	if item.Priority != PriorityMedium {
		t.Fatalf("unexpected default priority %q", item.Priority)
	}
	if item.RecordID != "" {
		t.Fatalf("expected record id to be dropped without record type, got %q", item.RecordID)
	}
	if !item.CreatedAt.Equal(now) || !item.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected timestamps %#v", item)
	}
}

func TestNewItemCompletedForcesTerminalStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 15, 0, time.UTC)
	item, err := NewItem(ItemInput{
		ID:        "r1",
		Board:     BoardRoadmap,
		Title:     "Dark mode",
		Status:    StatusPlanned,
		Completed: true,
	}, now)
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	if item.Status != StatusDeployed {
		t.Fatalf("expected deployed status, got %q", item.Status)
	}
	if item.CompletedAt == nil || !item.CompletedAt.Equal(now) {
		t.Fatalf("expected completed_at = now, got %v", item.CompletedAt)
	}
	if !item.IsTerminal() {
		t.Fatal("expected completed item to be terminal")
	}
}

func TestNewItemValidation(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		in   ItemInput
		err  error
	}{
		{name: "missing id", in: ItemInput{Board: BoardTasks, Title: "x"}, err: ErrInvalidID},
		{name: "unknown board", in: ItemInput{ID: "1", Board: "deals", Title: "x"}, err: ErrInvalidBoard},
		{name: "blank title", in: ItemInput{ID: "1", Board: BoardTasks, Title: "   "}, err: ErrInvalidTitle},
		{name: "foreign status", in: ItemInput{ID: "1", Board: BoardTasks, Title: "x", Status: StatusDeployed}, err: ErrInvalidStatus},
		{name: "bad priority", in: ItemInput{ID: "1", Board: BoardTasks, Title: "x", Priority: "critical"}, err: ErrInvalidPriority},
		{name: "bad record type", in: ItemInput{ID: "1", Board: BoardTasks, Title: "x", RecordType: "lead"}, err: ErrInvalidRecordType},
	}
	for _, tc := range cases {
		if _, err := NewItem(tc.in, now); err != tc.err {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
	}
}

func TestItemApplyPatch(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	due := now.Add(48 * time.Hour)
	item, err := NewItem(ItemInput{ID: "t1", Board: BoardTasks, Title: "Follow up", DueAt: &due}, now)
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}

	later := now.Add(time.Hour)
	patch := Patch{
		Status:      Ptr(StatusCompleted),
		Completed:   Ptr(true),
		CompletedAt: &later,
		Priority:    Ptr(PriorityUrgent),
		ClearDueAt:  true,
	}
	if err := item.Apply(patch, later); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	first := item
	if err := item.Apply(patch, later); err != nil {
		t.Fatalf("Apply() second error = %v", err)
	}
	if item.Status != first.Status || item.Completed != first.Completed || !item.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatalf("expected idempotent apply, got %#v then %#v", first, item)
	}
	if item.DueAt != nil {
		t.Fatalf("expected due_at cleared, got %v", item.DueAt)
	}
	if item.Priority.Rank() <= PriorityHigh.Rank() {
		t.Fatalf("expected urgent to outrank high, got %d", item.Priority.Rank())
	}
	if !item.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected updated_at %v", item.UpdatedAt)
	}

	reopen := Patch{Completed: Ptr(false), ClearCompletedAt: true, Status: Ptr(StatusInProgress)}
	if err := item.Apply(reopen, later.Add(time.Minute)); err != nil {
		t.Fatalf("Apply() reopen error = %v", err)
	}
	if item.Completed || item.CompletedAt != nil || item.IsTerminal() {
		t.Fatalf("expected reopened item, got %#v", item)
	}
}

func TestItemApplyRejectsInvalidPatch(t *testing.T) {
	now := time.Now()
	item, err := NewItem(ItemInput{ID: "i1", Board: BoardImprovements, Title: "Export CSV"}, now)
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	before := item
	if err := item.Apply(Patch{}, now); err != ErrEmptyPatch {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
	if err := item.Apply(Patch{Status: Ptr(StatusPending)}, now); err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if err := item.Apply(Patch{Title: Ptr(""), Assignee: Ptr("ana")}, now); err != ErrInvalidTitle {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if item.Assignee != before.Assignee || item.Status != before.Status {
		t.Fatalf("expected failed apply to leave item untouched, got %#v", item)
	}
}

func TestItemArchiveRestoreAndFilter(t *testing.T) {
	now := time.Now()
	item, err := NewItem(ItemInput{
		ID:         "t1",
		Board:      BoardTasks,
		Title:      "Send quote",
		Assignee:   "Ana",
		RecordType: RecordDeal,
		RecordID:   "d1",
	}, now)
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	filter := ItemFilter{Board: BoardTasks, Assignee: "ana", RecordType: RecordDeal, RecordID: "d1"}
	if !filter.Matches(item) {
		t.Fatal("expected filter to match item")
	}
	item.Archive(now.Add(time.Minute))
	if item.ArchivedAt == nil {
		t.Fatal("expected archived_at to be set")
	}
	if filter.Matches(item) {
		t.Fatal("expected archived item to be excluded by default")
	}
	filter.IncludeArchived = true
	if !filter.Matches(item) {
		t.Fatal("expected archived item with include_archived")
	}
	item.Restore(now.Add(2 * time.Minute))
	if item.ArchivedAt != nil {
		t.Fatal("expected archived_at to be nil")
	}
	if (ItemFilter{Board: BoardRoadmap}).Matches(item) {
		t.Fatal("expected board mismatch to exclude item")
	}
}

// TestNormalizeActorType verifies case folding and the user fallback.
func TestNormalizeActorType(t *testing.T) {
	cases := map[ActorType]ActorType{
		" Agent ": ActorTypeAgent,
		"SYSTEM":  ActorTypeSystem,
		"user":    ActorTypeUser,
		"robot":   ActorTypeUser,
		"":        ActorTypeUser,
	}
	for in, want := range cases {
		if got := NormalizeActorType(in); got != want {
			t.Fatalf("NormalizeActorType(%q) = %q, want %q", in, got, want)
		}
	}
}
