// Package tracker implements the persistent task/idea store for focusloop.
//
// It uses SQLite to persist the record hierarchy (ideas, tasks, notes and
// their subtasks) and the derived focus-task worklist. Records form a
// two-tier arena: a flat table plus an optional parent column, with the
// depth-1 invariant enforced at write time so every cascade query stays
// single-hop.
package tracker

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Enumerations ────────────────────────────────────────────────────────────

// Record categories.
const (
	CategoryIdea    = "idea"
	CategoryTask    = "task"
	CategoryNote    = "note"
	CategoryGeneral = "general"
)

// Record priorities, lowest to highest.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Record statuses. StatusDeleted is a terminal soft-state: deleted records
// disappear from default listings and aggregates but stay addressable by
// identifier until an explicit hard delete.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusPaused    = "paused"
	StatusCancelled = "cancelled"
	StatusArchived  = "archived"
	StatusDeleted   = "deleted"
)

// Focus-task states.
const (
	FocusPending   = "pending"
	FocusActive    = "active"
	FocusCompleted = "completed"
	FocusSkipped   = "skipped"
)

// DefaultFocusMinutes is credited per work unit when the caller does not
// supply a duration.
const DefaultFocusMinutes = 25

var validCategories = map[string]bool{
	CategoryIdea: true, CategoryTask: true, CategoryNote: true, CategoryGeneral: true,
}

var validPriorities = map[string]bool{
	PriorityLow: true, PriorityMedium: true, PriorityHigh: true, PriorityUrgent: true,
}

var validStatuses = map[string]bool{
	StatusActive: true, StatusCompleted: true, StatusPaused: true,
	StatusCancelled: true, StatusArchived: true, StatusDeleted: true,
}

// ─── Errors ──────────────────────────────────────────────────────────────────

// ErrNotFound is returned when a record or focus task does not exist
// (or is soft-deleted, for paths that exclude deleted rows).
var ErrNotFound = errors.New("tracker: not found")

// ErrInvalidTransition is returned when a focus-task state change is not
// legal from the task's current state.
var ErrInvalidTransition = errors.New("tracker: invalid state transition")

// ErrIDExhausted is returned when identifier allocation collided on every
// retry. With a 47-bit random space this indicates a corrupt database, not
// bad luck.
var ErrIDExhausted = errors.New("tracker: identifier allocation retries exhausted")

// ValidationError reports a domain validation failure. It is never retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tracker: invalid %s: %s", e.Field, e.Msg)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// ─── Config / Store ──────────────────────────────────────────────────────────

// Config holds tracker store configuration.
type Config struct {
	DataDir string
}

// DefaultConfig returns the default configuration for the tracker store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{DataDir: filepath.Join(home, ".focusloop")}
}

// Store is the persistent task store backed by SQLite.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New creates a Store with the given configuration. It creates the data
// directory if needed, opens SQLite with WAL mode, and runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("tracker: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "focusloop.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("tracker: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("tracker: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("tracker: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id             INTEGER PRIMARY KEY,
			content        TEXT    NOT NULL,
			category       TEXT    NOT NULL DEFAULT 'general',
			parent_id      INTEGER REFERENCES records(id),
			owner_id       INTEGER,
			priority       TEXT    NOT NULL DEFAULT 'medium',
			progress       INTEGER NOT NULL DEFAULT 0,
			progress_notes TEXT,
			status         TEXT    NOT NULL DEFAULT 'active',
			tag            TEXT    NOT NULL DEFAULT 'work',
			created_at     TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at     TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_records_owner_status ON records(owner_id, status);
		CREATE INDEX IF NOT EXISTS idx_records_parent       ON records(parent_id);
		CREATE INDEX IF NOT EXISTS idx_records_category     ON records(category);
		CREATE INDEX IF NOT EXISTS idx_records_created      ON records(created_at DESC);

		CREATE TABLE IF NOT EXISTS focus_tasks (
			id                 INTEGER PRIMARY KEY,
			owner_id           INTEGER NOT NULL,
			title              TEXT    NOT NULL,
			description        TEXT,
			related_record_ids TEXT,
			priority_score     INTEGER NOT NULL DEFAULT 0,
			estimated_units    INTEGER NOT NULL DEFAULT 1,
			order_index        INTEGER NOT NULL,
			status             TEXT    NOT NULL DEFAULT 'pending',
			started_at         TEXT,
			completed_at       TEXT,
			units_completed    INTEGER NOT NULL DEFAULT 0,
			focus_minutes      INTEGER NOT NULL DEFAULT 0,
			batch_id           TEXT    NOT NULL,
			generation_context TEXT,
			reasoning          TEXT,
			created_at         TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at         TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_focus_owner_status ON focus_tasks(owner_id, status);
		CREATE INDEX IF NOT EXISTS idx_focus_owner_order  ON focus_tasks(owner_id, order_index);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

const dbTimeLayout = "2006-01-02 15:04:05"

// Now returns the current time formatted for SQLite.
func Now() string {
	return time.Now().UTC().Format(dbTimeLayout)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(dbTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Truncate shortens a string to max length with ellipsis.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
