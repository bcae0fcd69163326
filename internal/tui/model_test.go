package tui

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/hylla/lanes/internal/app"
	"github.com/hylla/lanes/internal/domain"
	"github.com/hylla/lanes/internal/kanban"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeStore keeps items in memory and records writes with the actor that made them.
type fakeStore struct {
	mu        sync.Mutex
	items     []domain.Item
	updates   []domain.Patch
	deletes   []string
	actors    []string
	updateErr error
	listErr   error
}

func (s *fakeStore) ListItems(_ context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Item, 0, len(s.items))
	for _, item := range s.items {
		if filter.Matches(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateItem(ctx context.Context, id string, patch domain.Patch) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, patch)
	if actor, ok := app.MutationActorFromContext(ctx); ok {
		s.actors = append(s.actors, actor.ActorID)
	}
	if s.updateErr != nil {
		return domain.Item{}, s.updateErr
	}
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if err := s.items[i].Apply(patch, testNow); err != nil {
			return domain.Item{}, err
		}
		return s.items[i], nil
	}
	return domain.Item{}, app.ErrNotFound
}

func (s *fakeStore) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, id)
	s.items = slices.DeleteFunc(s.items, func(item domain.Item) bool { return item.ID == id })
	return nil
}

func (s *fakeStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func mustItem(t *testing.T, in domain.ItemInput) domain.Item {
	t.Helper()
	item, err := domain.NewItem(in, testNow.Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	return item
}

func newSeededStore(t *testing.T) *fakeStore {
	t.Helper()
	due := func(d time.Duration) *time.Time {
		at := testNow.Add(d)
		return &at
	}
	return &fakeStore{items: []domain.Item{
		mustItem(t, domain.ItemInput{
			ID: "t1", Board: domain.BoardTasks, Title: "Call Acme", DueAt: due(48 * time.Hour),
			Priority: domain.PriorityHigh, Assignee: "ana", Description: "Renewal is **next month**.",
		}),
		mustItem(t, domain.ItemInput{ID: "t2", Board: domain.BoardTasks, Title: "Send proposal", DueAt: due(72 * time.Hour)}),
		mustItem(t, domain.ItemInput{ID: "t3", Board: domain.BoardTasks, Title: "Old follow-up", DueAt: due(-24 * time.Hour)}),
		mustItem(t, domain.ItemInput{ID: "i1", Board: domain.BoardImprovements, Title: "Dark mode"}),
	}}
}

func newTestModel(t *testing.T, store *fakeStore, opts ...Option) Model {
	t.Helper()
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithActivationDistance(1),
		WithResolver(kanban.PointerWithin{}),
		WithToastDuration(time.Millisecond),
		WithClipboard(func(string) error { return nil }),
	}
	m, err := NewModel(store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	m = applyMsg(t, m, tea.WindowSizeMsg{Width: 160, Height: 30})
	return applyCmd(t, m, m.Init())
}

func columnOf(t *testing.T, m Model, itemID string) string {
	t.Helper()
	column, _, ok := m.engine().Index().Locate(itemID)
	if !ok {
		t.Fatalf("item %s not on board", itemID)
	}
	return column
}

// mouseDrag presses on a card and drags it to the middle of the bottom of a column, returning the
// model and command produced by the release.
func mouseDrag(t *testing.T, m Model, itemID string, columnIdx int) (Model, tea.Cmd) {
	t.Helper()
	lay := m.layout()
	card, ok := lay.card(itemID)
	if !ok {
		t.Fatalf("card %s not visible", itemID)
	}
	start := center(card.rect)
	m = applyMsg(t, m, tea.MouseClickMsg{X: start.X, Y: start.Y, Button: tea.MouseLeft})
	if m.drag == nil {
		t.Fatalf("expected drag session after press, status %q", m.status)
	}
	dest := lay.columns[columnIdx].rect
	p := kanban.Point{X: dest.X + dest.W/2, Y: dest.Y + dest.H - 2}
	m = applyMsg(t, m, tea.MouseMotionMsg{X: p.X, Y: p.Y, Button: tea.MouseLeft})
	updated, cmd := m.Update(tea.MouseReleaseMsg{X: p.X, Y: p.Y, Button: tea.MouseLeft})
	return updated.(Model), cmd
}

// TestModelRendersBoardColumns verifies the loaded board renders its catalog and cards.
func TestModelRendersBoardColumns(t *testing.T) {
	m := newTestModel(t, newSeededStore(t))
	out := m.render()
	for _, want := range []string{"Tasks", "Improvements", "Planned", "Overdue", "In Progress", "Complete", "Call Acme", "Old follow-up", "@ana"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in board output\n%s", want, out)
		}
	}
	if got := columnOf(t, m, "t3"); got != kanban.ColumnOverdue {
		t.Fatalf("expected t3 overdue, got %s", got)
	}
	v := m.View()
	if v.Content == nil || v.MouseMode != tea.MouseModeCellMotion || !v.AltScreen {
		t.Fatal("expected alt-screen view with cell motion mouse mode")
	}
}

// TestModelMouseDragCommitsMove verifies a cross-column drag moves locally, then persists.
func TestModelMouseDragCommitsMove(t *testing.T) {
	store := newSeededStore(t)
	m := newTestModel(t, store)

	m, cmd := mouseDrag(t, m, "t1", 2)
	if cmd == nil {
		t.Fatal("expected persist command after cross-column drop")
	}
	if got := columnOf(t, m, "t1"); got != kanban.ColumnInProgress {
		t.Fatalf("expected optimistic move to in_progress, got %s", got)
	}
	if store.updateCount() != 0 {
		t.Fatal("expected no store write before the persist command runs")
	}
	if !strings.Contains(m.render(), "saving…") {
		t.Fatal("expected busy card marker while the move is unresolved")
	}

	m = applyCmd(t, m, cmd)
	if store.updateCount() != 1 {
		t.Fatalf("expected one store write, got %d", store.updateCount())
	}
	if got := columnOf(t, m, "t1"); got != kanban.ColumnInProgress {
		t.Fatalf("expected committed item in in_progress, got %s", got)
	}
	if m.engine().Busy("t1") {
		t.Fatal("expected move to be resolved")
	}
	if !strings.Contains(m.status, "moved") {
		t.Fatalf("unexpected status %q", m.status)
	}
	if diff := cmp.Diff([]string{defaultActorID}, store.actors); diff != "" {
		t.Fatalf("actor mismatch (-want +got)\n%s", diff)
	}
}

// TestModelFailedMoveShowsToastAndReverts verifies rollback and the expiring notice.
func TestModelFailedMoveShowsToastAndReverts(t *testing.T) {
	store := newSeededStore(t)
	store.updateErr = errors.New("database is locked")
	m := newTestModel(t, store)

	m, cmd := mouseDrag(t, m, "t1", 3)
	if got := columnOf(t, m, "t1"); got != kanban.ColumnComplete {
		t.Fatalf("expected optimistic move to complete, got %s", got)
	}
	updated, tick := m.Update(cmd())
	m = updated.(Model)
	if m.toast == nil || m.toast.Message != kanban.FailedUpdateMessage {
		t.Fatalf("expected failure toast, got %#v", m.toast)
	}
	if !strings.Contains(m.render(), kanban.FailedUpdateMessage) {
		t.Fatal("expected toast text in board output")
	}
	if got := columnOf(t, m, "t1"); got != kanban.ColumnPlanned {
		t.Fatalf("expected rollback to planned, got %s", got)
	}
	if tick == nil {
		t.Fatal("expected toast expiry command")
	}
	m = applyMsg(t, m, tick())
	if m.toast != nil {
		t.Fatal("expected toast to expire")
	}
}

// TestModelGuardedMoveConfirmation verifies overdue moves wait for y and revert on n.
func TestModelGuardedMoveConfirmation(t *testing.T) {
	store := newSeededStore(t)
	// The clock advances on every read so a due date stamped at drop time is already past when the
	// board reclassifies.
	ticks := 0
	m := newTestModel(t, store, WithClock(func() time.Time {
		ticks++
		return testNow.Add(time.Duration(ticks) * time.Second)
	}))

	grabToOverdue := func(m Model) Model {
		t.Helper()
		m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
		m = applyMsg(t, m, keyRune('l'))
		m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
		if m.mode != modeConfirmMove {
			t.Fatalf("expected confirmation modal, mode %v status %q", m.mode, m.status)
		}
		return m
	}

	m = grabToOverdue(m)
	if !strings.Contains(m.render(), "as overdue") {
		t.Fatal("expected confirmation prompt naming the move")
	}
	m = applyMsg(t, m, keyRune('n'))
	if store.updateCount() != 0 {
		t.Fatal("expected no store write after declining")
	}
	if got := columnOf(t, m, "t1"); got != kanban.ColumnPlanned {
		t.Fatalf("expected t1 back in planned, got %s", got)
	}
	if len(m.engine().PendingMoves()) != 0 {
		t.Fatal("expected no pending moves after cancel")
	}

	m = grabToOverdue(m)
	m = applyMsg(t, m, keyRune('y'))
	if store.updateCount() != 1 {
		t.Fatalf("expected confirmed move to persist, got %d writes", store.updateCount())
	}
	if got := columnOf(t, m, "t1"); got != kanban.ColumnOverdue {
		t.Fatalf("expected t1 overdue after confirm, got %s", got)
	}
}

// TestModelKeyboardReorderStaysLocal verifies same-column drops never write to the store.
func TestModelKeyboardReorderStaysLocal(t *testing.T) {
	store := newSeededStore(t)
	m := newTestModel(t, store)

	if diff := cmp.Diff([]string{"t1", "t2"}, m.engine().Index().IDs(kanban.ColumnPlanned)); diff != "" {
		t.Fatalf("initial order mismatch (-want +got)\n%s", diff)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	m = applyMsg(t, m, keyRune('j'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})
	if store.updateCount() != 0 {
		t.Fatal("expected reorder to stay local")
	}
	if diff := cmp.Diff([]string{"t2", "t1"}, m.engine().Index().IDs(kanban.ColumnPlanned)); diff != "" {
		t.Fatalf("reordered mismatch (-want +got)\n%s", diff)
	}
	if !strings.Contains(m.status, "reordered") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

// TestModelKeyboardDragCancel verifies esc abandons a pick-up without effect.
func TestModelKeyboardDragCancel(t *testing.T) {
	store := newSeededStore(t)
	m := newTestModel(t, store)

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.drag != nil || m.engine().Session() != nil {
		t.Fatal("expected drag session to end")
	}
	if got := columnOf(t, m, "t1"); got != kanban.ColumnPlanned {
		t.Fatalf("expected t1 in planned, got %s", got)
	}
	if m.status != "move cancelled" {
		t.Fatalf("unexpected status %q", m.status)
	}
}

// TestModelBusyItemRejectsNewDrag verifies an unresolved item cannot be picked up again.
func TestModelBusyItemRejectsNewDrag(t *testing.T) {
	m := newTestModel(t, newSeededStore(t))

	m, cmd := mouseDrag(t, m, "t1", 2)
	if cmd == nil {
		t.Fatal("expected persist command")
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeySpace, Text: " "})
	if m.drag != nil {
		t.Fatal("expected busy item to reject a new drag")
	}
	if m.status != "item is still saving" {
		t.Fatalf("unexpected status %q", m.status)
	}
	m = applyCmd(t, m, cmd)
	if m.engine().Busy("t1") {
		t.Fatal("expected move resolved after persist")
	}
}

// TestModelBoardCyclingAndCopy verifies tab switches boards and y copies the selected id.
func TestModelBoardCyclingAndCopy(t *testing.T) {
	var copied []string
	m := newTestModel(t, newSeededStore(t), WithClipboard(func(text string) error {
		copied = append(copied, text)
		return nil
	}))

	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab})
	if got := m.engine().Board().Kind; got != domain.BoardImprovements {
		t.Fatalf("expected improvements board, got %s", got)
	}
	if !strings.Contains(m.render(), "Dark mode") {
		t.Fatal("expected improvement item on the board")
	}
	m = applyMsg(t, m, keyRune('y'))
	if diff := cmp.Diff([]string{"i1"}, copied); diff != "" {
		t.Fatalf("clipboard mismatch (-want +got)\n%s", diff)
	}
	if m.status != "copied i1" {
		t.Fatalf("unexpected status %q", m.status)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyTab, Mod: tea.ModShift})
	if got := m.engine().Board().Kind; got != domain.BoardTasks {
		t.Fatalf("expected tasks board after shift+tab, got %s", got)
	}
}

// TestModelDeleteWithConfirmation verifies d asks before deleting through the engine.
func TestModelDeleteWithConfirmation(t *testing.T) {
	store := newSeededStore(t)
	m := newTestModel(t, store)

	m = applyMsg(t, m, keyRune('l'))
	m = applyMsg(t, m, keyRune('d'))
	if m.mode != modeConfirmDelete {
		t.Fatalf("expected delete confirmation, mode %v", m.mode)
	}
	if !strings.Contains(m.render(), `Delete "Old follow-up"?`) {
		t.Fatal("expected delete prompt naming the item")
	}
	m = applyMsg(t, m, keyRune('y'))
	if diff := cmp.Diff([]string{"t3"}, store.deletes); diff != "" {
		t.Fatalf("deletes mismatch (-want +got)\n%s", diff)
	}
	if _, _, ok := m.engine().Index().Locate("t3"); ok {
		t.Fatal("expected deleted item to leave the board")
	}
}

// TestModelItemInfoAndHelp verifies the detail and help modals open and close.
func TestModelItemInfoAndHelp(t *testing.T) {
	m := newTestModel(t, newSeededStore(t))

	m = applyMsg(t, m, keyRune('i'))
	if m.mode != modeItemInfo {
		t.Fatalf("expected item info mode, got %v", m.mode)
	}
	out := m.render()
	if !strings.Contains(out, "id:") || !strings.Contains(out, "t1") {
		t.Fatalf("expected item details in output\n%s", out)
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.mode != modeNone {
		t.Fatal("expected esc to close item info")
	}

	m = applyMsg(t, m, keyRune('?'))
	if !strings.Contains(m.render(), "pick up item") {
		t.Fatal("expected full help overlay")
	}
	m = applyMsg(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.help.ShowAll {
		t.Fatal("expected esc to close help")
	}
}

// TestModelLoadErrorView verifies store failures surface in the view.
func TestModelLoadErrorView(t *testing.T) {
	store := newSeededStore(t)
	store.listErr = errors.New("disk unavailable")
	m := newTestModel(t, store)
	if m.err == nil {
		t.Fatal("expected load error")
	}
	if out := m.render(); !strings.Contains(out, "disk unavailable") {
		t.Fatalf("expected error in view, got %q", out)
	}

	store.mu.Lock()
	store.listErr = nil
	store.mu.Unlock()
	m = applyMsg(t, m, keyRune('r'))
	if m.err != nil {
		t.Fatalf("expected reload to clear error, got %v", m.err)
	}
}

// TestLayoutGeometry verifies columns tile left to right and cards stack inside them.
func TestLayoutGeometry(t *testing.T) {
	m := newTestModel(t, newSeededStore(t))
	lay := m.layout()
	if len(lay.columns) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(lay.columns))
	}
	for i := 1; i < len(lay.columns); i++ {
		prev, cur := lay.columns[i-1].rect, lay.columns[i].rect
		if cur.X != prev.X+prev.W+columnGap {
			t.Fatalf("column %d not adjacent: %+v after %+v", i, cur, prev)
		}
	}
	planned := lay.columns[0]
	if len(planned.cards) != 2 {
		t.Fatalf("expected 2 planned cards, got %d", len(planned.cards))
	}
	if planned.cards[1].rect.Y != planned.cards[0].rect.Y+cardStride {
		t.Fatalf("unexpected card stride %+v", planned.cards)
	}
	card, col, ok := lay.cardAt(center(planned.cards[1].rect))
	if !ok || col != 0 || card.itemID != "t2" {
		t.Fatalf("cardAt() = %+v, %d, %v", card, col, ok)
	}
	geoms := lay.geometries()
	if len(geoms) != 4+3 {
		t.Fatalf("expected column and card geometries, got %d", len(geoms))
	}
	if cardCapacity(4) != 0 || cardCapacity(5) != 1 || cardCapacity(8) != 2 {
		t.Fatal("unexpected card capacity")
	}
}

func applyMsg(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	out, ok := updated.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", updated)
	}
	return applyCmd(t, out, cmd)
}

func applyCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	out := m
	currentCmd := cmd
	for i := 0; i < 6 && currentCmd != nil; i++ {
		msg := currentCmd()
		updated, nextCmd := out.Update(msg)
		casted, ok := updated.(Model)
		if !ok {
			t.Fatalf("expected Model, got %T", updated)
		}
		out = casted
		currentCmd = nextCmd
	}
	return out
}

func keyRune(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}
