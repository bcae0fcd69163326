// Package fixtures loads YAML seed data for the CRM boards.
package fixtures

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hylla/lanes/internal/app"
	"github.com/hylla/lanes/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demoSeed string

// ErrInvalidSeed reports a malformed seed document.
var ErrInvalidSeed = errors.New("invalid seed")

// Seed is the top-level YAML document.
type Seed struct {
	Items []SeedItem `yaml:"items"`
}

// SeedItem is one item entry. DueIn is a Go duration relative to the load time and wins over DueAt.
type SeedItem struct {
	Board       string `yaml:"board"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
	Completed   bool   `yaml:"completed"`
	DueAt       string `yaml:"due_at"`
	DueIn       string `yaml:"due_in"`
	Priority    string `yaml:"priority"`
	Assignee    string `yaml:"assignee"`
	RecordType  string `yaml:"record_type"`
	RecordID    string `yaml:"record_id"`
}

// Demo returns the built-in demo items resolved against now.
func Demo(now time.Time) ([]app.CreateItemInput, error) {
	return Load(strings.NewReader(demoSeed), now)
}

// LoadFile reads a seed file from disk.
func LoadFile(path string, now time.Time) ([]app.CreateItemInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Load(f, now)
}

// Load decodes a seed document into create inputs.
func Load(r io.Reader, now time.Time) ([]app.CreateItemInput, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode seed yaml: %w", errors.Join(ErrInvalidSeed, err))
	}

	out := make([]app.CreateItemInput, 0, len(seed.Items))
	for i, item := range seed.Items {
		in, err := item.input(now)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		out = append(out, in)
	}
	return out, nil
}

// input converts one entry, resolving its due date.
func (s SeedItem) input(now time.Time) (app.CreateItemInput, error) {
	board, err := domain.ParseBoardKind(s.Board)
	if err != nil {
		return app.CreateItemInput{}, fmt.Errorf("board %q: %w", s.Board, errors.Join(ErrInvalidSeed, err))
	}
	if strings.TrimSpace(s.Title) == "" {
		return app.CreateItemInput{}, fmt.Errorf("title is required: %w", ErrInvalidSeed)
	}

	var dueAt *time.Time
	switch {
	case strings.TrimSpace(s.DueIn) != "":
		offset, err := time.ParseDuration(strings.TrimSpace(s.DueIn))
		if err != nil {
			return app.CreateItemInput{}, fmt.Errorf("due_in %q: %w", s.DueIn, errors.Join(ErrInvalidSeed, err))
		}
		due := now.Add(offset).UTC()
		dueAt = &due
	case strings.TrimSpace(s.DueAt) != "":
		due, err := time.Parse(time.RFC3339, strings.TrimSpace(s.DueAt))
		if err != nil {
			return app.CreateItemInput{}, fmt.Errorf("due_at %q: %w", s.DueAt, errors.Join(ErrInvalidSeed, err))
		}
		due = due.UTC()
		dueAt = &due
	}

	return app.CreateItemInput{
		Board:       board,
		Title:       s.Title,
		Description: s.Description,
		Status:      domain.Status(strings.TrimSpace(s.Status)),
		Completed:   s.Completed,
		DueAt:       dueAt,
		Priority:    domain.Priority(strings.TrimSpace(s.Priority)),
		Assignee:    s.Assignee,
		RecordType:  domain.RecordType(strings.TrimSpace(s.RecordType)),
		RecordID:    s.RecordID,
	}, nil
}
