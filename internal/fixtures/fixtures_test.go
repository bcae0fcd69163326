package fixtures

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hylla/lanes/internal/domain"
)

var seedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestLoadResolvesRelativeDueDates(t *testing.T) {
	items, err := Load(strings.NewReader(`
items:
  - board: tasks
    title: Overdue call
    due_in: -2h
    record_type: deal
    record_id: d1
  - board: Roadmap
    title: SSO
    status: planned
    due_at: 2026-04-01T09:00:00+02:00
  - board: tasks
    title: No date
`), seedNow)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].DueAt == nil || !items[0].DueAt.Equal(seedNow.Add(-2*time.Hour)) {
		t.Fatalf("unexpected relative due %v", items[0].DueAt)
	}
	if items[0].RecordType != domain.RecordDeal || items[0].RecordID != "d1" {
		t.Fatalf("unexpected record link %#v", items[0])
	}
	if items[1].Board != domain.BoardRoadmap || items[1].Status != domain.StatusPlanned {
		t.Fatalf("unexpected roadmap item %#v", items[1])
	}
	if items[1].DueAt == nil || items[1].DueAt.Hour() != 7 || items[1].DueAt.Location() != time.UTC {
		t.Fatalf("expected due_at normalized to UTC, got %v", items[1].DueAt)
	}
	if items[2].DueAt != nil {
		t.Fatalf("expected nil due date, got %v", items[2].DueAt)
	}
}

func TestLoadRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"unknown board": "items:\n  - board: leads\n    title: x\n",
		"missing title": "items:\n  - board: tasks\n",
		"bad due_in":    "items:\n  - board: tasks\n    title: x\n    due_in: soon\n",
		"bad due_at":    "items:\n  - board: tasks\n    title: x\n    due_at: tomorrow\n",
		"unknown field": "items:\n  - board: tasks\n    title: x\n    owner: me\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(doc), seedNow)
			if !errors.Is(err, ErrInvalidSeed) {
				t.Fatalf("expected ErrInvalidSeed, got %v", err)
			}
		})
	}
}

func TestLoadEmptyDocument(t *testing.T) {
	items, err := Load(strings.NewReader(""), seedNow)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestDemoCoversEveryBoard(t *testing.T) {
	items, err := Demo(seedNow)
	if err != nil {
		t.Fatalf("Demo() error = %v", err)
	}
	seen := map[domain.BoardKind]int{}
	for _, item := range items {
		seen[item.Board]++
	}
	for _, kind := range domain.BoardKinds() {
		if seen[kind] == 0 {
			t.Fatalf("demo seed has no %s items", kind)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte("items:\n  - board: improvements\n    title: Dark mode\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	items, err := LoadFile(path, seedNow)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(items) != 1 || items[0].Board != domain.BoardImprovements {
		t.Fatalf("unexpected items %#v", items)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), seedNow); err == nil {
		t.Fatal("expected error for missing file")
	}
}
