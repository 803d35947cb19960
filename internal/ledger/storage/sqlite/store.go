// Package sqlite provides a SQLite-backed ledger storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/questbridge/internal/ledger/domain"
	"github.com/louisbranch/questbridge/internal/ledger/event"
	"github.com/louisbranch/questbridge/internal/ledger/storage"
	"github.com/louisbranch/questbridge/internal/ledger/storage/sqlite/migrations"
	sqlitemigrate "github.com/louisbranch/questbridge/internal/platform/storage/sqlitemigrate"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same statement
// helpers serve direct calls and atomic units.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists ledger state in SQLite.
type Store struct {
	sqlDB *sql.DB
	ops
}

// ops implements the storage.Tx surface over a querier.
type ops struct {
	q querier
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite ledger store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, ops: ops{q: sqlDB}}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Atomically runs fn inside a single SQLite transaction. Any error from fn
// rolls back every mutation made through the transaction's stores.
func (s *Store) Atomically(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if fn == nil {
		return fmt.Errorf("transaction function is required")
	}

	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&ops{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// InsertQuest inserts a quest definition and returns the assigned ID.
func (o *ops) InsertQuest(ctx context.Context, quest domain.Quest) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	result, err := o.q.ExecContext(
		ctx,
		`INSERT INTO quests (name, description, xp_reward, active, creator, quest_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		quest.Name,
		quest.Description,
		quest.XPReward,
		boolToInt(quest.Active),
		quest.Creator.String(),
		quest.Type.String(),
		toMillis(quest.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert quest: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("quest insert id: %w", err)
	}
	return uint64(id), nil
}

// GetQuest fetches a quest definition by ID.
func (o *ops) GetQuest(ctx context.Context, id uint64) (domain.Quest, error) {
	if err := ctx.Err(); err != nil {
		return domain.Quest{}, err
	}
	row := o.q.QueryRowContext(
		ctx,
		`SELECT id, name, description, xp_reward, active, creator, quest_type, created_at
		 FROM quests WHERE id = ?`,
		id,
	)

	var (
		quest     domain.Quest
		active    int
		creator   string
		questType string
		createdAt int64
	)
	err := row.Scan(&quest.ID, &quest.Name, &quest.Description, &quest.XPReward, &active, &creator, &questType, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quest{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Quest{}, fmt.Errorf("scan quest: %w", err)
	}
	quest.Active = active != 0
	quest.CreatedAt = fromMillis(createdAt)
	if quest.Creator, err = domain.ParseAddress(creator); err != nil {
		return domain.Quest{}, fmt.Errorf("parse quest creator: %w", err)
	}
	if quest.Type, err = domain.ParseQuestType(questType); err != nil {
		return domain.Quest{}, fmt.Errorf("parse quest type: %w", err)
	}
	return quest, nil
}

// SetQuestActive toggles a quest's active flag.
func (o *ops) SetQuestActive(ctx context.Context, id uint64, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := o.q.ExecContext(ctx, `UPDATE quests SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("set quest active: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set quest active affected rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// InsertProgress inserts a fresh user progress record and returns the
// assigned user ID. A duplicate address yields ErrAlreadyExists.
func (o *ops) InsertProgress(ctx context.Context, progress domain.UserProgress) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	result, err := o.q.ExecContext(
		ctx,
		`INSERT INTO user_progress (address, xp, level, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		progress.User.String(),
		progress.XP,
		progress.Level,
		toMillis(progress.CreatedAt),
		toMillis(progress.UpdatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return 0, storage.ErrAlreadyExists
		}
		return 0, fmt.Errorf("insert progress: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("progress insert id: %w", err)
	}
	return uint64(id), nil
}

// GetProgress fetches a user progress record, including the completed set.
func (o *ops) GetProgress(ctx context.Context, user domain.Address) (domain.UserProgress, error) {
	if err := ctx.Err(); err != nil {
		return domain.UserProgress{}, err
	}
	row := o.q.QueryRowContext(
		ctx,
		`SELECT id, xp, level, created_at, updated_at FROM user_progress WHERE address = ?`,
		user.String(),
	)

	progress := domain.UserProgress{User: user}
	var createdAt, updatedAt int64
	err := row.Scan(&progress.ID, &progress.XP, &progress.Level, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserProgress{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("scan progress: %w", err)
	}
	progress.CreatedAt = fromMillis(createdAt)
	progress.UpdatedAt = fromMillis(updatedAt)

	rows, err := o.q.QueryContext(
		ctx,
		`SELECT quest_id FROM completions WHERE user_address = ? ORDER BY completed_at, quest_id`,
		user.String(),
	)
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var questID uint64
		if err := rows.Scan(&questID); err != nil {
			return domain.UserProgress{}, fmt.Errorf("scan completion: %w", err)
		}
		progress.Completed = append(progress.Completed, questID)
	}
	if err := rows.Err(); err != nil {
		return domain.UserProgress{}, fmt.Errorf("iterate completions: %w", err)
	}
	return progress, nil
}

// UpdateProgress persists a user's xp/level counters.
func (o *ops) UpdateProgress(ctx context.Context, progress domain.UserProgress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := o.q.ExecContext(
		ctx,
		`UPDATE user_progress SET xp = ?, level = ?, updated_at = ? WHERE address = ?`,
		progress.XP,
		progress.Level,
		toMillis(progress.UpdatedAt),
		progress.User.String(),
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update progress affected rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HasCompleted reports completed-set membership for (user, quest).
func (o *ops) HasCompleted(ctx context.Context, user domain.Address, questID uint64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var found int
	row := o.q.QueryRowContext(
		ctx,
		`SELECT 1 FROM completions WHERE user_address = ? AND quest_id = ?`,
		user.String(),
		questID,
	)
	err := row.Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check completion: %w", err)
	}
	return true, nil
}

// InsertCompletion records (user, quest) in the completed set.
func (o *ops) InsertCompletion(ctx context.Context, user domain.Address, questID uint64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := o.q.ExecContext(
		ctx,
		`INSERT INTO completions (user_address, quest_id, completed_at) VALUES (?, ?, ?)`,
		user.String(),
		questID,
		toMillis(at),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

// AppendEvent appends an event to the journal and returns its sequence.
func (o *ops) AppendEvent(ctx context.Context, evt event.Event) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	payload := evt.PayloadJSON
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	result, err := o.q.ExecContext(
		ctx,
		`INSERT INTO events (ts, type, payload) VALUES (?, ?, ?)`,
		toMillis(evt.Timestamp),
		string(evt.Type),
		string(payload),
	)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("event sequence: %w", err)
	}
	return uint64(seq), nil
}

// ListEvents returns up to limit journal entries with seq > afterSeq in
// sequence order.
func (o *ops) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := o.q.QueryContext(
		ctx,
		`SELECT seq, ts, type, payload FROM events WHERE seq > ? ORDER BY seq LIMIT ?`,
		afterSeq,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			evt       event.Event
			ts        int64
			eventType string
			payload   string
		)
		if err := rows.Scan(&evt.Seq, &ts, &eventType, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Timestamp = fromMillis(ts)
		evt.Type = event.Type(eventType)
		evt.PayloadJSON = []byte(payload)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
