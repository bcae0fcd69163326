package kanban

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hylla/lanes/internal/domain"
)

// FailedUpdateMessage is the notice shown when a move could not be persisted.
const FailedUpdateMessage = "Failed to update item"

// Store is the item source the engine reconciles against.
type Store interface {
	ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error)
	UpdateItem(ctx context.Context, id string, patch domain.Patch) (domain.Item, error)
	DeleteItem(ctx context.Context, id string) error
}

// Logger receives move lifecycle events. *log.Logger satisfies it.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// MoveState is a step of the per-drag lifecycle.
type MoveState string

// MoveState values.
const (
	StateIdle                MoveState = "idle"
	StateDragging            MoveState = "dragging"
	StateReordering          MoveState = "reordering"
	StateMoving              MoveState = "moving"
	StatePendingConfirmation MoveState = "pending_confirmation"
	StateCommitting          MoveState = "committing"
	StateRollback            MoveState = "rollback"
)

// Move describes one cross-column transition of an item.
type Move struct {
	ID     string
	ItemID string
	Title  string
	From   string
	To     string
	Patch  domain.Patch
	Prompt string
	State  MoveState
}

// OutcomeKind reports what a drop did.
type OutcomeKind string

// OutcomeKind values.
const (
	OutcomeClick             OutcomeKind = "click"
	OutcomeCancelled         OutcomeKind = "cancelled"
	OutcomeReordered         OutcomeKind = "reordered"
	OutcomeCommitting        OutcomeKind = "committing"
	OutcomeNeedsConfirmation OutcomeKind = "needs_confirmation"
)

// Outcome is the result of Drop.
type Outcome struct {
	Kind OutcomeKind
	Move Move
}

// NoticeLevel grades a user-facing notice.
type NoticeLevel string

// NoticeLevel values.
const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a transient, dismissible message for the user.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Result is the outcome of reconciling a committed move.
type Result struct {
	Move   Move
	Item   domain.Item
	Notice *Notice
}

// command is the apply/revert pair behind a cross-column move. Cancellation and failure rollback
// both run revert.
type command struct {
	move   Move
	apply  func(e *Engine) error
	revert func(e *Engine)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the lifecycle logger.
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock sets the time source used for classification and patches.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithResolver sets the drop target strategy for new sessions.
func WithResolver(resolver DropResolver) Option {
	return func(e *Engine) {
		if resolver != nil {
			e.resolver = resolver
		}
	}
}

// WithActivationDistance sets the pointer travel required before a press becomes a drag.
func WithActivationDistance(distance int) Option {
	return func(e *Engine) {
		if distance >= 0 {
			e.distance = distance
		}
	}
}

// Engine holds one board's items, derived index and in-flight moves.
type Engine struct {
	mu sync.Mutex

	board    Board
	store    Store
	filter   domain.ItemFilter
	logger   Logger
	now      func() time.Time
	resolver DropResolver
	distance int

	items     []domain.Item
	pins      map[string]string
	overrides map[string][]string
	index     ColumnIndex
	session   *DragSession
	moves     map[string]*command
	busy      map[string]string
	seq       int
}

// NewEngine constructs an engine for board over store. The filter's board is forced to the
// board's kind.
func NewEngine(board Board, store Store, filter domain.ItemFilter, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if len(board.Columns) == 0 || board.Policy == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBoard, board.Kind)
	}
	filter.Board = board.Kind
	e := &Engine{
		board:     board,
		store:     store,
		filter:    filter,
		logger:    log.New(io.Discard),
		now:       time.Now,
		resolver:  ClosestCorners{},
		distance:  DefaultActivationDistance,
		pins:      map[string]string{},
		overrides: map[string][]string{},
		moves:     map[string]*command{},
		busy:      map[string]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.index = BuildIndex(board, nil, e.now(), nil, nil)
	return e, nil
}

// Board returns the engine's board catalog.
func (e *Engine) Board() Board {
	return e.board
}

// Filter returns the listing filter.
func (e *Engine) Filter() domain.ItemFilter {
	return e.filter
}

// Load refreshes items from the store.
func (e *Engine) Load(ctx context.Context) error {
	items, err := e.store.ListItems(ctx, e.filter)
	if err != nil {
		return fmt.Errorf("list %s items: %w", e.board.Kind, err)
	}
	e.Replace(items)
	return nil
}

// Replace swaps in a fresh item list. Items with an unresolved move keep their local copy.
func (e *Engine) Replace(items []domain.Item) {
	e.mu.Lock()
	defer e.mu.Unlock()

	local := make(map[string]domain.Item, len(e.busy))
	for itemID := range e.busy {
		if item, ok := e.findLocked(itemID); ok {
			local[itemID] = item
		}
	}
	next := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if kept, ok := local[item.ID]; ok {
			item = kept
		}
		next = append(next, item)
	}
	e.items = next
	e.rebuildLocked()
	e.logger.Debug("board items replaced", "board", e.board.Kind, "count", len(next), "in_flight", len(local))
}

// Items returns a copy of the current items.
func (e *Engine) Items() []domain.Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.items)
}

// Item returns one item by id.
func (e *Engine) Item(id string) (domain.Item, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.findLocked(id)
}

// Index returns a copy of the current column index.
func (e *Engine) Index() ColumnIndex {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Clone()
}

// Session returns the active drag session, if any.
func (e *Engine) Session() *DragSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Busy reports whether the item has an unresolved move.
func (e *Engine) Busy(itemID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.busy[itemID]
	return ok
}

// Move returns an unresolved move by id.
func (e *Engine) Move(moveID string) (Move, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cmd, ok := e.moves[moveID]
	if !ok {
		return Move{}, false
	}
	return cmd.move, true
}

// PendingMoves returns unresolved moves ordered by id.
func (e *Engine) PendingMoves() []Move {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Move, 0, len(e.moves))
	for _, id := range slices.Sorted(maps.Keys(e.moves)) {
		out = append(out, e.moves[id].move)
	}
	return out
}

// BeginDrag starts a session for an item pressed at origin with its card occupying rect.
func (e *Engine) BeginDrag(itemID string, origin Point, rect Rect) (*DragSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		return nil, ErrDragInProgress
	}
	if _, ok := e.busy[itemID]; ok {
		e.logger.Warn("drag rejected: unresolved move", "board", e.board.Kind, "item", itemID)
		return nil, fmt.Errorf("%w: %s", ErrItemBusy, itemID)
	}
	column, _, ok := e.index.Locate(itemID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	e.session = newDragSession(itemID, column, origin, rect, e.distance, e.resolver)
	e.logger.Debug("drag started", "board", e.board.Kind, "item", itemID, "column", column)
	return e.session, nil
}

// Drop ends a session and applies its effect: nothing for clicks and cancels, a local splice for
// same-column drops, and an optimistic move for cross-column drops.
func (e *Engine) Drop(session *DragSession) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if session == nil || session != e.session {
		return Outcome{}, ErrNoDrag
	}
	e.session = nil
	if session.Cancelled() {
		e.logger.Debug("drag cancelled", "board", e.board.Kind, "item", session.ItemID)
		return Outcome{Kind: OutcomeCancelled}, nil
	}
	if !session.Active() {
		return Outcome{Kind: OutcomeClick}, nil
	}
	target, ok := session.Target()
	if !ok || !e.board.HasColumn(target.Column) {
		e.logger.Debug("drag dropped outside", "board", e.board.Kind, "item", session.ItemID)
		return Outcome{Kind: OutcomeCancelled}, nil
	}
	item, ok := e.findLocked(session.ItemID)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownItem, session.ItemID)
	}

	from := session.Source
	if current, _, found := e.index.Locate(item.ID); found {
		from = current
	}
	if target.Column == from {
		e.reorderLocked(item.ID, target)
		return Outcome{
			Kind: OutcomeReordered,
			Move: Move{ItemID: item.ID, Title: item.Title, From: from, To: from, State: StateReordering},
		}, nil
	}

	now := e.now()
	decision, err := e.board.Policy.Decide(item, from, target.Column, now)
	if err != nil {
		return Outcome{Kind: OutcomeCancelled}, fmt.Errorf("decide move: %w", err)
	}
	e.seq++
	move := Move{
		ID:     fmt.Sprintf("move-%d", e.seq),
		ItemID: item.ID,
		Title:  item.Title,
		From:   from,
		To:     target.Column,
		Patch:  decision.Patch,
		Prompt: decision.Prompt,
		State:  StateMoving,
	}
	cmd := e.newCommandLocked(move, item, target)

	if decision.RequiresConfirmation {
		cmd.move.State = StatePendingConfirmation
		e.pinLocked(cmd)
		e.logger.Info("move awaiting confirmation", "board", e.board.Kind, "move", move.ID, "item", item.ID, "from", from, "to", move.To)
		return Outcome{Kind: OutcomeNeedsConfirmation, Move: cmd.move}, nil
	}
	if err := cmd.apply(e); err != nil {
		cmd.revert(e)
		return Outcome{Kind: OutcomeCancelled}, fmt.Errorf("apply move: %w", err)
	}
	cmd.move.State = StateCommitting
	e.logger.Info("move applied", "board", e.board.Kind, "move", move.ID, "item", item.ID, "from", from, "to", move.To)
	return Outcome{Kind: OutcomeCommitting, Move: cmd.move}, nil
}

// Confirm applies a move that was waiting on confirmation.
func (e *Engine) Confirm(moveID string) (Move, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cmd, ok := e.moves[moveID]
	if !ok {
		return Move{}, fmt.Errorf("%w: %s", ErrStaleMove, moveID)
	}
	if cmd.move.State != StatePendingConfirmation {
		return Move{}, fmt.Errorf("%w: %s is %s", ErrInvalidMoveState, moveID, cmd.move.State)
	}
	if err := cmd.apply(e); err != nil {
		cmd.revert(e)
		return Move{}, fmt.Errorf("apply move: %w", err)
	}
	cmd.move.State = StateCommitting
	e.logger.Info("move confirmed", "board", e.board.Kind, "move", moveID, "item", cmd.move.ItemID)
	return cmd.move, nil
}

// Revert abandons a move awaiting confirmation, restoring the pre-drag state.
func (e *Engine) Revert(moveID string) (Move, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cmd, ok := e.moves[moveID]
	if !ok {
		return Move{}, fmt.Errorf("%w: %s", ErrStaleMove, moveID)
	}
	if cmd.move.State != StatePendingConfirmation {
		return Move{}, fmt.Errorf("%w: %s is %s", ErrInvalidMoveState, moveID, cmd.move.State)
	}
	cmd.revert(e)
	e.logger.Info("move cancelled", "board", e.board.Kind, "move", moveID, "item", cmd.move.ItemID)
	return cmd.move, nil
}

// Cancel reverts a pending move and refetches the board so no optimistic state lingers.
func (e *Engine) Cancel(ctx context.Context, moveID string) error {
	if _, err := e.Revert(moveID); err != nil {
		return err
	}
	return e.Load(ctx)
}

// Persist sends a committing move to the store. It does not touch engine state; pass the returned
// item and error to Resolve.
func (e *Engine) Persist(ctx context.Context, move Move) (domain.Item, error) {
	e.mu.Lock()
	cmd, ok := e.moves[move.ID]
	var patch domain.Patch
	var itemID string
	if ok {
		if cmd.move.State != StateCommitting {
			e.mu.Unlock()
			return domain.Item{}, fmt.Errorf("%w: %s is %s", ErrInvalidMoveState, move.ID, cmd.move.State)
		}
		patch, itemID = cmd.move.Patch, cmd.move.ItemID
	}
	e.mu.Unlock()
	if !ok {
		return domain.Item{}, fmt.Errorf("%w: %s", ErrStaleMove, move.ID)
	}
	return e.store.UpdateItem(ctx, itemID, patch)
}

// Resolve reconciles a persisted move. On success the stored item replaces the optimistic copy; on
// failure the move is rolled back and an error notice is returned.
func (e *Engine) Resolve(moveID string, item domain.Item, persistErr error) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cmd, ok := e.moves[moveID]
	if !ok || cmd.move.State != StateCommitting {
		return Result{}, fmt.Errorf("%w: %s", ErrStaleMove, moveID)
	}
	if persistErr != nil {
		cmd.revert(e)
		e.logger.Warn("move rolled back", "board", e.board.Kind, "move", moveID, "item", cmd.move.ItemID, "err", persistErr)
		return Result{
			Move:   cmd.move,
			Item:   e.itemOrZeroLocked(cmd.move.ItemID),
			Notice: &Notice{Level: NoticeError, Message: FailedUpdateMessage},
		}, nil
	}

	e.replaceItemLocked(item)
	delete(e.pins, cmd.move.ItemID)
	delete(e.busy, cmd.move.ItemID)
	delete(e.moves, moveID)
	e.rebuildLocked()
	cmd.move.State = StateIdle
	column, _, _ := e.index.Locate(item.ID)
	e.logger.Info("move committed", "board", e.board.Kind, "move", moveID, "item", item.ID, "column", column)
	return Result{Move: cmd.move, Item: item}, nil
}

// Commit persists and resolves a move in one call.
func (e *Engine) Commit(ctx context.Context, move Move) (Result, error) {
	item, err := e.Persist(ctx, move)
	if errors.Is(err, ErrStaleMove) || errors.Is(err, ErrInvalidMoveState) {
		return Result{}, err
	}
	return e.Resolve(move.ID, item, err)
}

// DeleteItem removes an item through the store and refetches the board.
func (e *Engine) DeleteItem(ctx context.Context, itemID string) error {
	e.mu.Lock()
	_, busy := e.busy[itemID]
	e.mu.Unlock()
	if busy {
		return fmt.Errorf("%w: %s", ErrItemBusy, itemID)
	}
	if err := e.store.DeleteItem(ctx, itemID); err != nil {
		return fmt.Errorf("delete item %s: %w", itemID, err)
	}
	e.logger.Info("item deleted", "board", e.board.Kind, "item", itemID)
	return e.Load(ctx)
}

// newCommandLocked snapshots the item and its source-column neighbours and registers the move.
func (e *Engine) newCommandLocked(move Move, before domain.Item, target Target) *command {
	fromOrder := e.index.IDs(move.From)
	saved := map[string][]string{}
	for _, column := range []string{move.From, move.To} {
		if ids, ok := e.overrides[column]; ok {
			saved[column] = slices.Clone(ids)
		}
	}
	var placed map[string][]string
	cmd := &command{move: move}
	cmd.apply = func(e *Engine) error {
		next := before
		if err := next.Apply(cmd.move.Patch, e.now()); err != nil {
			return err
		}
		e.replaceItemLocked(next)
		e.pinLocked(cmd)
		return nil
	}
	cmd.revert = func(e *Engine) {
		// Columns spliced since the drop keep those splices; only the moved card is taken back.
		if _, ok := e.findLocked(before.ID); ok {
			e.replaceItemLocked(before)
		}
		if untouched(e.overrides, placed, move.To) && untouched(e.overrides, placed, move.From) {
			restoreOverrides(e.overrides, saved, move.From, move.To)
		} else {
			e.unplaceLocked(before.ID, move.To)
			e.restoreSlotLocked(before.ID, move.From, fromOrder)
		}
		delete(e.pins, before.ID)
		delete(e.busy, before.ID)
		delete(e.moves, cmd.move.ID)
		cmd.move.State = StateRollback
		e.rebuildLocked()
	}
	e.moves[move.ID] = cmd
	e.busy[move.ItemID] = move.ID
	e.placeLocked(move.ItemID, target)
	placed = map[string][]string{move.To: slices.Clone(e.overrides[move.To])}
	if ids, ok := saved[move.From]; ok {
		placed[move.From] = ids
	}
	return cmd
}

// untouched reports whether column's override list is unchanged from want.
func untouched(overrides, want map[string][]string, column string) bool {
	got, ok := overrides[column]
	wanted, had := want[column]
	return ok == had && slices.Equal(got, wanted)
}

func restoreOverrides(overrides, saved map[string][]string, columns ...string) {
	for _, column := range columns {
		if ids, ok := saved[column]; ok {
			overrides[column] = ids
		} else {
			delete(overrides, column)
		}
	}
}

// unplaceLocked drops itemID from column's override list.
func (e *Engine) unplaceLocked(itemID, column string) {
	ids, ok := e.overrides[column]
	if !ok {
		return
	}
	e.overrides[column] = slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return id == itemID })
}

// restoreSlotLocked puts itemID back into column's override list ahead of the first card that
// followed it in order and is still listed.
func (e *Engine) restoreSlotLocked(itemID, column string, order []string) {
	ids, ok := e.overrides[column]
	if !ok || slices.Contains(ids, itemID) {
		return
	}
	pos := len(ids)
	if at := slices.Index(order, itemID); at >= 0 {
		for _, next := range order[at+1:] {
			if i := slices.Index(ids, next); i >= 0 {
				pos = i
				break
			}
		}
	}
	e.overrides[column] = splice(ids, itemID, pos)
}

// pinLocked holds the item in the move's destination until it resolves.
func (e *Engine) pinLocked(cmd *command) {
	e.pins[cmd.move.ItemID] = cmd.move.To
	e.rebuildLocked()
}

// placeLocked records where a moved item lands among the destination's cards.
func (e *Engine) placeLocked(itemID string, target Target) {
	ids := slices.DeleteFunc(e.index.IDs(target.Column), func(id string) bool { return id == itemID })
	pos := len(ids)
	if target.ItemID != "" {
		if at := slices.Index(ids, target.ItemID); at >= 0 {
			pos = at
		}
	}
	e.overrides[target.Column] = splice(ids, itemID, pos)
}

// reorderLocked splices an item to the target slot of its own column.
func (e *Engine) reorderLocked(itemID string, target Target) {
	ids := e.index.IDs(target.Column)
	pos := len(ids) - 1
	if target.ItemID != "" {
		if at := slices.Index(ids, target.ItemID); at >= 0 {
			pos = at
		}
	}
	e.overrides[target.Column] = splice(ids, itemID, pos)
	e.rebuildLocked()
	e.logger.Debug("item reordered", "board", e.board.Kind, "item", itemID, "column", target.Column, "position", pos)
}

func (e *Engine) rebuildLocked() {
	e.index = BuildIndex(e.board, e.items, e.now(), e.pins, e.overrides)
}

func (e *Engine) findLocked(id string) (domain.Item, bool) {
	for _, item := range e.items {
		if item.ID == id {
			return item, true
		}
	}
	return domain.Item{}, false
}

func (e *Engine) itemOrZeroLocked(id string) domain.Item {
	item, _ := e.findLocked(id)
	return item
}

func (e *Engine) replaceItemLocked(item domain.Item) {
	for i := range e.items {
		if e.items[i].ID == item.ID {
			e.items[i] = item
			return
		}
	}
	e.items = append(e.items, item)
}
