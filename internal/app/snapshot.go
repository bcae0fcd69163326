package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/lanes/internal/domain"
	"github.com/hylla/lanes/internal/kanban"
	"golang.org/x/sync/errgroup"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "lanes.snapshot.v1"

// Snapshot represents a portable export of every board.
type Snapshot struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Boards     []SnapshotBoard `json:"boards"`
}

// SnapshotBoard holds one board's catalog, derived index and items.
type SnapshotBoard struct {
	Kind    domain.BoardKind    `json:"kind"`
	Columns []domain.Column     `json:"columns"`
	Index   map[string][]string `json:"index"`
	Items   []domain.Item       `json:"items"`
}

// ExportSnapshot loads all boards concurrently and returns them in display order.
func (s *Service) ExportSnapshot(ctx context.Context, includeArchived bool) (Snapshot, error) {
	boards := kanban.Boards()
	now := s.clock().UTC()
	out := make([]SnapshotBoard, len(boards))

	g, gctx := errgroup.WithContext(ctx)
	for i, board := range boards {
		g.Go(func() error {
			items, err := s.repo.ListItems(gctx, domain.ItemFilter{Board: board.Kind, IncludeArchived: includeArchived})
			if err != nil {
				return fmt.Errorf("export %s items: %w", board.Kind, err)
			}
			slices.SortFunc(items, func(a, b domain.Item) int { return cmp.Compare(a.ID, b.ID) })
			out[i] = SnapshotBoard{
				Kind:    board.Kind,
				Columns: slices.Clone(board.Columns),
				Index:   kanban.BuildIndex(board, items, now, nil, nil).Snapshot(),
				Items:   items,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Version: SnapshotVersion, ExportedAt: now, Boards: out}, nil
}

// ImportSnapshot validates a snapshot and upserts its items.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	for _, board := range snap.Boards {
		for _, item := range board.Items {
			if _, err := s.repo.GetItem(ctx, item.ID); err == nil {
				if err := s.repo.UpdateItem(ctx, item); err != nil {
					return err
				}
				continue
			} else if !errors.Is(err, ErrNotFound) {
				return err
			}
			if err := s.repo.CreateItem(ctx, item); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validate checks the snapshot's version and item integrity.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("%w: %q", ErrUnsupportedSnapshot, s.Version)
	}
	itemIDs := map[string]struct{}{}
	for bi, board := range s.Boards {
		if !board.Kind.Valid() {
			return fmt.Errorf("%w: boards[%d].kind %q is unknown", ErrInvalidSnapshot, bi, board.Kind)
		}
		for i, item := range board.Items {
			if strings.TrimSpace(item.ID) == "" {
				return fmt.Errorf("%w: boards[%d].items[%d].id is required", ErrInvalidSnapshot, bi, i)
			}
			if strings.TrimSpace(item.Title) == "" {
				return fmt.Errorf("%w: boards[%d].items[%d].title is required", ErrInvalidSnapshot, bi, i)
			}
			if item.Board != board.Kind {
				return fmt.Errorf("%w: item %q belongs to %q, listed under %q", ErrInvalidSnapshot, item.ID, item.Board, board.Kind)
			}
			if !board.Kind.HasStatus(item.Status) {
				return fmt.Errorf("%w: item %q has status %q", ErrInvalidSnapshot, item.ID, item.Status)
			}
			if item.CreatedAt.IsZero() || item.UpdatedAt.IsZero() {
				return fmt.Errorf("%w: item %q timestamps are required", ErrInvalidSnapshot, item.ID)
			}
			if _, exists := itemIDs[item.ID]; exists {
				return fmt.Errorf("%w: duplicate item id %q", ErrInvalidSnapshot, item.ID)
			}
			itemIDs[item.ID] = struct{}{}
		}
	}
	return nil
}
