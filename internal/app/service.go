package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hylla/lanes/internal/domain"
	"github.com/hylla/lanes/internal/kanban"
)

// DeleteMode represents a selectable mode.
type DeleteMode string

// DeleteModeArchive and related constants define package defaults.
const (
	DeleteModeArchive DeleteMode = "archive"
	DeleteModeHard    DeleteMode = "hard"
)

// defaultEventLimit caps activity listings when the caller passes no limit.
const defaultEventLimit = 50

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultDeleteMode DeleteMode
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service represents service data used by this package.
type Service struct {
	repo              Repository
	idGen             IDGenerator
	clock             Clock
	defaultDeleteMode DeleteMode
}

var _ kanban.Store = (*Service)(nil)

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.DefaultDeleteMode == "" {
		cfg.DefaultDeleteMode = DeleteModeArchive
	}
	return &Service{
		repo:              repo,
		idGen:             idGen,
		clock:             clock,
		defaultDeleteMode: cfg.DefaultDeleteMode,
	}
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time {
	return s.clock()
}

// Boards returns the board catalogs in display order.
func (s *Service) Boards() []kanban.Board {
	return kanban.Boards()
}

// CreateItemInput holds input values for create item operations.
type CreateItemInput struct {
	Board       domain.BoardKind
	Title       string
	Description string
	Status      domain.Status
	Completed   bool
	DueAt       *time.Time
	Priority    domain.Priority
	Assignee    string
	RecordType  domain.RecordType
	RecordID    string
}

// CreateItem creates an item on its board.
func (s *Service) CreateItem(ctx context.Context, in CreateItemInput) (domain.Item, error) {
	item, err := domain.NewItem(domain.ItemInput{
		ID:          s.idGen(),
		Board:       in.Board,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Completed:   in.Completed,
		DueAt:       in.DueAt,
		Priority:    in.Priority,
		Assignee:    in.Assignee,
		RecordType:  in.RecordType,
		RecordID:    in.RecordID,
	}, s.clock())
	if err != nil {
		return domain.Item{}, err
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

// SeedItems creates every input in order, stopping at the first failure.
func (s *Service) SeedItems(ctx context.Context, inputs []CreateItemInput) ([]domain.Item, error) {
	out := make([]domain.Item, 0, len(inputs))
	for i, in := range inputs {
		item, err := s.CreateItem(ctx, in)
		if err != nil {
			return out, fmt.Errorf("seed item %d (%q): %w", i, in.Title, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	return s.repo.GetItem(ctx, strings.TrimSpace(itemID))
}

// ListItems lists items matching filter.
func (s *Service) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	if filter.Board != "" && !filter.Board.Valid() {
		return nil, domain.ErrInvalidBoard
	}
	return s.repo.ListItems(ctx, filter)
}

// UpdateItem applies a partial update and returns the stored item.
func (s *Service) UpdateItem(ctx context.Context, itemID string, patch domain.Patch) (domain.Item, error) {
	item, err := s.repo.GetItem(ctx, strings.TrimSpace(itemID))
	if err != nil {
		return domain.Item{}, err
	}
	if err := item.Apply(patch, s.clock()); err != nil {
		return domain.Item{}, err
	}
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

// DeleteItem deletes an item using the configured delete mode.
func (s *Service) DeleteItem(ctx context.Context, itemID string) error {
	return s.DeleteItemWithMode(ctx, itemID, s.defaultDeleteMode)
}

// DeleteItemWithMode archives or removes an item.
func (s *Service) DeleteItemWithMode(ctx context.Context, itemID string, mode DeleteMode) error {
	if mode == "" {
		mode = s.defaultDeleteMode
	}

	switch mode {
	case DeleteModeArchive:
		item, err := s.repo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		item.Archive(s.clock())
		return s.repo.UpdateItem(ctx, item)
	case DeleteModeHard:
		return s.repo.DeleteItem(ctx, itemID)
	default:
		return ErrInvalidDeleteMode
	}
}

// RestoreItem restores an archived item.
func (s *Service) RestoreItem(ctx context.Context, itemID string) (domain.Item, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return domain.Item{}, err
	}
	item.Restore(s.clock())
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return domain.Item{}, err
	}
	return item, nil
}

// ListChangeEvents lists the newest activity entries for a board.
func (s *Service) ListChangeEvents(ctx context.Context, board domain.BoardKind, limit int) ([]domain.ChangeEvent, error) {
	if !board.Valid() {
		return nil, domain.ErrInvalidBoard
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}
	return s.repo.ListChangeEvents(ctx, board, limit)
}

// MoveItemInput holds input values for a server-side column move.
type MoveItemInput struct {
	ItemID   string
	ToColumn string
	Confirm  bool
}

// MoveResult describes a completed server-side move.
type MoveResult struct {
	Item   domain.Item
	From   string
	To     string
	Column string
}

// MoveItem moves an item to a column by applying the board's transition policy. Guarded moves
// return a *ConfirmationError unless Confirm is set.
func (s *Service) MoveItem(ctx context.Context, in MoveItemInput) (MoveResult, error) {
	item, err := s.repo.GetItem(ctx, strings.TrimSpace(in.ItemID))
	if err != nil {
		return MoveResult{}, err
	}
	board, err := kanban.BoardFor(item.Board)
	if err != nil {
		return MoveResult{}, err
	}
	now := s.clock()
	from := board.ColumnFor(item, now)
	to := strings.TrimSpace(in.ToColumn)
	if from == to {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrSameColumn, to)
	}
	decision, err := board.Policy.Decide(item, from, to, now)
	if err != nil {
		return MoveResult{}, err
	}
	if decision.RequiresConfirmation && !in.Confirm {
		log.Debug("guarded move needs confirmation", "item_id", item.ID, "from", from, "to", to)
		return MoveResult{}, &ConfirmationError{ItemID: item.ID, Column: to, Prompt: decision.Prompt}
	}
	updated, err := s.UpdateItem(ctx, item.ID, decision.Patch)
	if err != nil {
		return MoveResult{}, err
	}
	return MoveResult{
		Item:   updated,
		From:   from,
		To:     to,
		Column: board.ColumnFor(updated, s.clock()),
	}, nil
}

// BoardIndex builds the column index for a board from stored items.
func (s *Service) BoardIndex(ctx context.Context, filter domain.ItemFilter) (kanban.ColumnIndex, error) {
	board, err := kanban.BoardFor(filter.Board)
	if err != nil {
		return kanban.ColumnIndex{}, err
	}
	items, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return kanban.ColumnIndex{}, err
	}
	return kanban.BuildIndex(board, items, s.clock(), nil, nil), nil
}
