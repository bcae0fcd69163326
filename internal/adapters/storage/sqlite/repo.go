package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hylla/lanes/internal/app"
	"github.com/hylla/lanes/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// defaultActorID attributes mutations that carry no caller identity.
const defaultActorID = "lanes-user"

// memorySeq keeps in-memory databases isolated from each other.
var memorySeq atomic.Int64

// Repository represents repository data used by this package.
type Repository struct {
	db *sql.DB
}

var _ app.Repository = (*Repository)(nil)

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	dsn := fmt.Sprintf("file:lanes-mem-%d?mode=memory&cache=shared", memorySeq.Add(1))
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// The database lives as long as one connection stays open.
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS items (
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
			record_type TEXT NOT NULL DEFAULT '',
			record_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			archived_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			board TEXT NOT NULL,
			item_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			actor_type TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_items_board_archived ON items(board, archived_at);`,
		`CREATE INDEX IF NOT EXISTS idx_items_board_created ON items(board, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_board_created_at ON change_events(board, created_at DESC, id DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	itemAlterStatements := []string{
		`ALTER TABLE items ADD COLUMN record_type TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE items ADD COLUMN record_id TEXT NOT NULL DEFAULT ''`,
	}
	for _, stmt := range itemAlterStatements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil && !isDuplicateColumnErr(err) {
			return fmt.Errorf("migrate sqlite items: %w", err)
		}
	}
	return nil
}

// CreateItem inserts an item and records a create event.
func (r *Repository) CreateItem(ctx context.Context, item domain.Item) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items(
			id, board, title, description, status, completed, completed_at, due_at, priority, assignee,
			record_type, record_id, created_at, updated_at, archived_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID,
		string(item.Board),
		item.Title,
		item.Description,
		string(item.Status),
		boolInt(item.Completed),
		nullableTS(item.CompletedAt),
		nullableTS(item.DueAt),
		string(item.Priority),
		item.Assignee,
		string(item.RecordType),
		item.RecordID,
		ts(item.CreatedAt),
		ts(item.UpdatedAt),
		nullableTS(item.ArchivedAt),
	)
	if err != nil {
		return err
	}

	err = insertChangeEvent(ctx, tx, withActor(ctx, domain.ChangeEvent{
		Board:      item.Board,
		ItemID:     item.ID,
		Operation:  domain.ChangeOperationCreate,
		Metadata:   map[string]string{"status": string(item.Status), "title": item.Title},
		OccurredAt: item.CreatedAt,
	}))
	if err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// UpdateItem replaces an item's row and records one classified change event.
func (r *Repository) UpdateItem(ctx context.Context, item domain.Item) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	prev, err := getItemByID(ctx, tx, item.ID)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE items
		SET board = ?, title = ?, description = ?, status = ?, completed = ?, completed_at = ?, due_at = ?, priority = ?,
		    assignee = ?, record_type = ?, record_id = ?, updated_at = ?, archived_at = ?
		WHERE id = ?
	`,
		string(item.Board),
		item.Title,
		item.Description,
		string(item.Status),
		boolInt(item.Completed),
		nullableTS(item.CompletedAt),
		nullableTS(item.DueAt),
		string(item.Priority),
		item.Assignee,
		string(item.RecordType),
		item.RecordID,
		ts(item.UpdatedAt),
		nullableTS(item.ArchivedAt),
		item.ID,
	)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}

	op, metadata := classifyItemTransition(prev, item)
	err = insertChangeEvent(ctx, tx, withActor(ctx, domain.ChangeEvent{
		Board:      item.Board,
		ItemID:     item.ID,
		Operation:  op,
		Metadata:   metadata,
		OccurredAt: item.UpdatedAt,
	}))
	if err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// GetItem returns one item.
func (r *Repository) GetItem(ctx context.Context, id string) (domain.Item, error) {
	return getItemByID(ctx, r.db, id)
}

// ListItems lists items matching filter, oldest first.
func (r *Repository) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	clauses := make([]string, 0, 5)
	args := make([]any, 0, 5)
	if filter.Board != "" {
		clauses = append(clauses, "board = ?")
		args = append(args, string(filter.Board))
	}
	if assignee := strings.TrimSpace(filter.Assignee); assignee != "" {
		clauses = append(clauses, "assignee = ? COLLATE NOCASE")
		args = append(args, assignee)
	}
	if filter.RecordType != domain.RecordNone {
		clauses = append(clauses, "record_type = ?")
		args = append(args, string(filter.RecordType))
	}
	if recordID := strings.TrimSpace(filter.RecordID); recordID != "" {
		clauses = append(clauses, "record_id = ?")
		args = append(args, recordID)
	}
	if !filter.IncludeArchived {
		clauses = append(clauses, "archived_at IS NULL")
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// DeleteItem removes an item and records a delete event.
func (r *Repository) DeleteItem(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	item, err := getItemByID(ctx, tx, id)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}

	err = insertChangeEvent(ctx, tx, withActor(ctx, domain.ChangeEvent{
		Board:     item.Board,
		ItemID:    item.ID,
		Operation: domain.ChangeOperationDelete,
		Metadata: map[string]string{
			"status": string(item.Status),
			"title":  item.Title,
		},
		OccurredAt: time.Now().UTC(),
	}))
	if err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// ListChangeEvents lists the newest activity entries for a board.
func (r *Repository) ListChangeEvents(ctx context.Context, board domain.BoardKind, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, board, item_id, operation, actor_id, actor_type, metadata_json, created_at
		FROM change_events
		WHERE board = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, string(board), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			boardRaw    string
			opRaw       string
			actorType   string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &boardRaw, &event.ItemID, &opRaw, &event.ActorID, &actorType, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.Board = domain.BoardKind(boardRaw)
		event.Operation = normalizeChangeOperation(opRaw)
		event.ActorType = domain.NormalizeActorType(domain.ActorType(actorType))
		event.OccurredAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &event.Metadata); err != nil {
			return nil, fmt.Errorf("decode change_events.metadata_json: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// itemColumns lists the select order scanItem expects.
const itemColumns = `id, board, title, description, status, completed, completed_at, due_at, priority, assignee,
	record_type, record_id, created_at, updated_at, archived_at`

// queryRower represents query rower data used by this package.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// getItemByID loads one item through a db or tx handle.
func getItemByID(ctx context.Context, q queryRower, id string) (domain.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	return scanItem(row)
}

// execerContext represents execer context data used by this package.
type execerContext interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertChangeEvent appends one activity-ledger row.
func insertChangeEvent(ctx context.Context, execer execerContext, event domain.ChangeEvent) error {
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode change event metadata: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO change_events(board, item_id, operation, actor_id, actor_type, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		string(event.Board),
		event.ItemID,
		string(event.Operation),
		chooseActorID(event.ActorID, defaultActorID),
		string(domain.NormalizeActorType(event.ActorType)),
		string(metadataJSON),
		ts(normalizeEventTS(event.OccurredAt)),
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

// withActor stamps caller identity from ctx onto an event.
func withActor(ctx context.Context, event domain.ChangeEvent) domain.ChangeEvent {
	if actor, ok := app.MutationActorFromContext(ctx); ok {
		return actor.Stamp(event)
	}
	return event
}

// classifyItemTransition picks the ledger operation describing prev -> next.
func classifyItemTransition(prev, next domain.Item) (domain.ChangeOperation, map[string]string) {
	statusMeta := map[string]string{
		"from_status": string(prev.Status),
		"to_status":   string(next.Status),
	}
	if prev.ArchivedAt == nil && next.ArchivedAt != nil {
		return domain.ChangeOperationArchive, statusMeta
	}
	if prev.ArchivedAt != nil && next.ArchivedAt == nil {
		return domain.ChangeOperationRestore, statusMeta
	}
	if !prev.Completed && next.Completed {
		return domain.ChangeOperationComplete, statusMeta
	}
	if prev.Completed && !next.Completed {
		return domain.ChangeOperationReopen, statusMeta
	}
	if prev.Status != next.Status || !equalNullableTimes(prev.DueAt, next.DueAt) {
		statusMeta["from_due_at"] = formatNullableTS(prev.DueAt)
		statusMeta["to_due_at"] = formatNullableTS(next.DueAt)
		return domain.ChangeOperationMove, statusMeta
	}
	fields := changedItemFields(prev, next)
	metadata := map[string]string{}
	if len(fields) > 0 {
		metadata["changed_fields"] = strings.Join(fields, ",")
	}
	return domain.ChangeOperationUpdate, metadata
}

// changedItemFields lists non-lifecycle fields that differ.
func changedItemFields(prev, next domain.Item) []string {
	fields := make([]string, 0, 6)
	if prev.Title != next.Title {
		fields = append(fields, "title")
	}
	if prev.Description != next.Description {
		fields = append(fields, "description")
	}
	if prev.Priority != next.Priority {
		fields = append(fields, "priority")
	}
	if prev.Assignee != next.Assignee {
		fields = append(fields, "assignee")
	}
	if prev.RecordType != next.RecordType || prev.RecordID != next.RecordID {
		fields = append(fields, "record")
	}
	if !equalNullableTimes(prev.CompletedAt, next.CompletedAt) {
		fields = append(fields, "completed_at")
	}
	return fields
}

// equalNullableTimes compares optional timestamps.
func equalNullableTimes(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// chooseActorID returns the first non-empty candidate.
func chooseActorID(candidates ...string) string {
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate != "" {
			return candidate
		}
	}
	return defaultActorID
}

var knownChangeOperations = []domain.ChangeOperation{
	domain.ChangeOperationCreate,
	domain.ChangeOperationUpdate,
	domain.ChangeOperationMove,
	domain.ChangeOperationComplete,
	domain.ChangeOperationReopen,
	domain.ChangeOperationArchive,
	domain.ChangeOperationRestore,
	domain.ChangeOperationDelete,
}

// normalizeChangeOperation maps stored operation text onto known values.
func normalizeChangeOperation(raw string) domain.ChangeOperation {
	op := domain.ChangeOperation(strings.TrimSpace(strings.ToLower(raw)))
	if slices.Contains(knownChangeOperations, op) {
		return op
	}
	return domain.ChangeOperationUpdate
}

// normalizeEventTS defaults zero event times to now.
func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanItem decodes one items row.
func scanItem(s scanner) (domain.Item, error) {
	var (
		item         domain.Item
		board        string
		status       string
		completed    int
		completedRaw sql.NullString
		dueRaw       sql.NullString
		priority     string
		recordType   string
		createdRaw   string
		updatedRaw   string
		archivedRaw  sql.NullString
	)
	if err := s.Scan(
		&item.ID,
		&board,
		&item.Title,
		&item.Description,
		&status,
		&completed,
		&completedRaw,
		&dueRaw,
		&priority,
		&item.Assignee,
		&recordType,
		&item.RecordID,
		&createdRaw,
		&updatedRaw,
		&archivedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, app.ErrNotFound
		}
		return domain.Item{}, err
	}
	item.Board = domain.BoardKind(board)
	item.Status = domain.Status(status)
	item.Completed = completed != 0
	item.CompletedAt = parseNullTS(completedRaw)
	item.DueAt = parseNullTS(dueRaw)
	item.Priority = domain.Priority(priority)
	item.RecordType = domain.RecordType(recordType)
	item.CreatedAt = parseTS(createdRaw)
	item.UpdatedAt = parseTS(updatedRaw)
	item.ArchivedAt = parseNullTS(archivedRaw)
	return item, nil
}

// translateNoRows maps zero affected rows to app.ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullableTS(t *time.Time) string {
	if t == nil {
		return ""
	}
	return ts(*t)
}

func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

// isDuplicateColumnErr reports additive-migration reruns.
func isDuplicateColumnErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
