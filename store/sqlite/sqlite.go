/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

INTERFACES IMPLEMENTED:
  goals.Store:              Goals and the contribution log
  achievements.RecordStore: Key-value records (the unlocked achievement set)

APPEND-ONLY CONTRIBUTIONS:
  Contributions are never updated. A contribution and the goal's new saved
  amount are written in one SQL transaction. Deleting a goal cascades to its
  contributions.

KEY TABLES:
  goals:         One row per goal, amounts stored as decimal strings
  contributions: Contribution log, unique idempotency key
  records:       Key-value store (key -> JSON blob)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single pooled connection, so a
  ":memory:" database is shared by every query.

USAGE:
  store, err := sqlite.New("./nestegg.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - goals/store.go: Goal persistence contract
  - achievements/store.go: Unlock record format
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/nestegg/savings-engine/goals"
)

// Store implements goals.Store and achievements.RecordStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		target_amount TEXT NOT NULL,
		current_amount TEXT NOT NULL DEFAULT '0',
		deadline TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_goals_created_at
		ON goals(created_at);

	-- Contributions (append-only)
	CREATE TABLE IF NOT EXISTS contributions (
		id TEXT PRIMARY KEY,
		goal_id TEXT NOT NULL REFERENCES goals(id) ON DELETE CASCADE,
		requested TEXT NOT NULL,
		applied TEXT NOT NULL,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contributions_goal
		ON contributions(goal_id, created_at);

	-- Key-value records
	CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// WithTx runs fn inside a SQL transaction. If fn returns an error the
// transaction is rolled back, otherwise committed.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// GOAL STORE (goals.Store interface)
// =============================================================================

// ListGoals returns all goals in creation order.
func (s *Store) ListGoals(ctx context.Context) ([]goals.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, target_amount, current_amount, deadline, created_at
		FROM goals
		ORDER BY created_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var result []goals.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func scanGoal(rows *sql.Rows) (goals.Goal, error) {
	var (
		g         goals.Goal
		id        string
		target    string
		current   string
		deadline  sql.NullString
		createdAt string
	)

	if err := rows.Scan(&id, &g.Title, &target, &current, &deadline, &createdAt); err != nil {
		return g, fmt.Errorf("failed to scan goal: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return g, fmt.Errorf("goal has malformed id %q: %w", id, err)
	}
	g.ID = parsed
	g.TargetAmount = parseDecimal(target)
	g.CurrentAmount = parseDecimal(current)
	g.CreatedAt = parseTime(createdAt)
	if deadline.Valid && deadline.String != "" {
		d := parseTime(deadline.String)
		g.Deadline = &d
	}
	return g, nil
}

// SaveGoal inserts a goal.
func (s *Store) SaveGoal(ctx context.Context, g goals.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deadline sql.NullString
	if g.Deadline != nil {
		deadline = sql.NullString{String: formatTime(*g.Deadline), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (id, title, target_amount, current_amount, deadline, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		g.ID.String(),
		g.Title,
		g.TargetAmount.String(),
		g.CurrentAmount.String(),
		deadline,
		formatTime(g.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

// DeleteGoal removes a goal; contributions go with it.
func (s *Store) DeleteGoal(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM goals WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	if n == 0 {
		return goals.ErrGoalNotFound
	}
	return nil
}

// RecordContribution appends the contribution and updates the goal's saved
// amount in one transaction.
func (s *Store) RecordContribution(ctx context.Context, c goals.Contribution, updated goals.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO contributions (id, goal_id, requested, applied, idempotency_key, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			c.ID.String(),
			c.GoalID.String(),
			c.Requested.String(),
			c.Applied.String(),
			nullString(c.IdempotencyKey),
			formatTime(c.CreatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return goals.ErrDuplicateContribution
			}
			if isForeignKeyError(err) {
				return goals.ErrGoalNotFound
			}
			return fmt.Errorf("failed to append contribution: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE goals SET current_amount = ? WHERE id = ?",
			updated.CurrentAmount.String(), updated.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to update goal amount: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return goals.ErrGoalNotFound
		}
		return nil
	})
}

// ListContributions returns a goal's contributions, oldest first.
func (s *Store) ListContributions(ctx context.Context, goalID uuid.UUID) ([]goals.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goal_id, requested, applied, idempotency_key, created_at
		FROM contributions
		WHERE goal_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, goalID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	var result []goals.Contribution
	for rows.Next() {
		var (
			c                  goals.Contribution
			id, gid            string
			requested, applied string
			idempotencyKey     sql.NullString
			createdAt          string
		)
		if err := rows.Scan(&id, &gid, &requested, &applied, &idempotencyKey, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		c.ID, _ = uuid.Parse(id)
		c.GoalID, _ = uuid.Parse(gid)
		c.Requested = parseDecimal(requested)
		c.Applied = parseDecimal(applied)
		c.IdempotencyKey = idempotencyKey.String
		c.CreatedAt = parseTime(createdAt)
		result = append(result, c)
	}
	return result, rows.Err()
}

// ContributionExists checks if an idempotency key exists.
func (s *Store) ContributionExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contributions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

// =============================================================================
// RECORD STORE (achievements.RecordStore interface)
// =============================================================================

// GetRecord returns the value stored under key.
func (s *Store) GetRecord(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM records WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read record %q: %w", key, err)
	}
	return value, true, nil
}

// PutRecord replaces the value stored under key.
func (s *Store) PutRecord(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to write record %q: %w", key, err)
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
