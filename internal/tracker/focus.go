package tracker

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/focusloop/focusloop/internal/ident"
)

// FocusTask is one entry of an owner's current worklist. Focus tasks are
// derived from records (by AI batch generation or manual promotion) and
// carry their own lifecycle independent of the source records.
type FocusTask struct {
	ID                int64
	OwnerID           int64
	Title             string
	Description       string
	RelatedRecordIDs  []int64
	PriorityScore     int // 0-100
	EstimatedUnits    int // 1-4 work units
	OrderIndex        int
	Status            string
	StartedAt         *time.Time
	CompletedAt       *time.Time
	UnitsCompleted    int
	FocusMinutes      int
	BatchID           string
	GenerationContext string
	Reasoning         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const focusColumns = `id, owner_id, title, description, related_record_ids,
	priority_score, estimated_units, order_index, status, started_at,
	completed_at, units_completed, focus_minutes, batch_id,
	generation_context, reasoning, created_at, updated_at`

// ReplaceBatch atomically swaps the owner's worklist: the previous batch
// is deleted and the new entries are inserted with order 1..n under a
// fresh batch ID, all in one transaction. A reader never observes an
// empty or half-written worklist.
func (s *Store) ReplaceBatch(ownerID int64, tasks []FocusTask) ([]FocusTask, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("tracker: begin batch replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM focus_tasks WHERE owner_id = ?`, ownerID); err != nil {
		return nil, fmt.Errorf("tracker: clear batch: %w", err)
	}

	batchID := uuid.NewString()
	now := Now()
	inserted := make([]FocusTask, 0, len(tasks))
	for i := range tasks {
		ft := tasks[i]
		ft.OwnerID = ownerID
		ft.OrderIndex = i + 1
		ft.Status = FocusPending
		ft.BatchID = batchID
		ft.StartedAt = nil
		ft.CompletedAt = nil
		ft.UnitsCompleted = 0
		ft.FocusMinutes = 0
		if ft.EstimatedUnits < 1 {
			ft.EstimatedUnits = 1
		}
		id, err := insertFocusTask(tx, &ft, now)
		if err != nil {
			return nil, err
		}
		ft.ID = id
		ft.CreatedAt = parseTime(now)
		ft.UpdatedAt = parseTime(now)
		inserted = append(inserted, ft)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tracker: commit batch replace: %w", err)
	}
	return inserted, nil
}

// InsertFront pushes a task to the head of the owner's worklist, already
// active. In one transaction: the currently active task (if any) is
// skipped, every order index shifts up by one, and the new task lands at
// index 0 with StartedAt stamped. The single-active invariant holds at
// every commit point.
func (s *Store) InsertFront(ft FocusTask) (*FocusTask, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("tracker: begin front insert: %w", err)
	}
	defer tx.Rollback()

	now := Now()
	_, err = tx.Exec(`
		UPDATE focus_tasks SET status = ?, updated_at = ?
		WHERE owner_id = ? AND status = ?`,
		FocusSkipped, now, ft.OwnerID, FocusActive)
	if err != nil {
		return nil, fmt.Errorf("tracker: skip active task: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE focus_tasks SET order_index = order_index + 1
		WHERE owner_id = ?`, ft.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("tracker: shift order indices: %w", err)
	}

	ft.OrderIndex = 0
	ft.Status = FocusActive
	started := parseTime(now)
	ft.StartedAt = &started
	if ft.EstimatedUnits < 1 {
		ft.EstimatedUnits = 1
	}
	if ft.BatchID == "" {
		ft.BatchID = uuid.NewString()
	}
	id, err := insertFocusTask(tx, &ft, now)
	if err != nil {
		return nil, err
	}
	ft.ID = id
	ft.CreatedAt = parseTime(now)
	ft.UpdatedAt = parseTime(now)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("tracker: commit front insert: %w", err)
	}
	return &ft, nil
}

// insertFocusTask inserts one row with a bounded ID allocation retry loop.
func insertFocusTask(tx *sql.Tx, ft *FocusTask, now string) (int64, error) {
	related, err := json.Marshal(ft.RelatedRecordIDs)
	if err != nil {
		return 0, fmt.Errorf("tracker: encode related ids: %w", err)
	}

	var startedAt *string
	if ft.StartedAt != nil {
		s := formatTime(*ft.StartedAt)
		startedAt = &s
	}

	for attempt := 0; attempt < ident.MaxInsertRetries; attempt++ {
		id := ident.Allocate()
		_, err := tx.Exec(`
			INSERT INTO focus_tasks (id, owner_id, title, description,
				related_record_ids, priority_score, estimated_units,
				order_index, status, started_at, units_completed,
				focus_minutes, batch_id, generation_context, reasoning,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, ft.OwnerID, ft.Title, nullableString(ft.Description),
			string(related), ft.PriorityScore, ft.EstimatedUnits,
			ft.OrderIndex, ft.Status, startedAt, ft.UnitsCompleted,
			ft.FocusMinutes, ft.BatchID, nullableString(ft.GenerationContext),
			nullableString(ft.Reasoning), now, now,
		)
		if err == nil {
			return id, nil
		}
		if !isUniqueViolation(err) {
			return 0, fmt.Errorf("tracker: insert focus task: %w", err)
		}
	}
	return 0, ErrIDExhausted
}

// GetFocusTask returns one focus task in the owner's scope.
func (s *Store) GetFocusTask(ownerID, id int64) (*FocusTask, error) {
	row := s.db.QueryRow(`
		SELECT `+focusColumns+`
		FROM focus_tasks WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanFocusTask(row)
}

// ListBatch returns the owner's worklist ordered by position.
func (s *Store) ListBatch(ownerID int64) ([]FocusTask, error) {
	rows, err := s.db.Query(`
		SELECT `+focusColumns+`
		FROM focus_tasks WHERE owner_id = ?
		ORDER BY order_index ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("tracker: list batch: %w", err)
	}
	defer rows.Close()

	var out []FocusTask
	for rows.Next() {
		ft, err := scanFocusTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ft)
	}
	return out, rows.Err()
}

// ActiveFocusTask returns the owner's active task, or nil if no task is
// active.
func (s *Store) ActiveFocusTask(ownerID int64) (*FocusTask, error) {
	row := s.db.QueryRow(`
		SELECT `+focusColumns+`
		FROM focus_tasks WHERE owner_id = ? AND status = ?`, ownerID, FocusActive)
	ft, err := scanFocusTask(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return ft, err
}

// StartTask moves a pending task to active and stamps StartedAt.
func (s *Store) StartTask(ownerID, id int64) (*FocusTask, error) {
	ft, err := s.GetFocusTask(ownerID, id)
	if err != nil {
		return nil, err
	}
	if ft.Status != FocusPending {
		return nil, fmt.Errorf("%w: cannot start a %s task", ErrInvalidTransition, ft.Status)
	}
	now := Now()
	_, err = s.db.Exec(`
		UPDATE focus_tasks SET status = ?, started_at = ?, updated_at = ?
		WHERE id = ?`, FocusActive, now, now, id)
	if err != nil {
		return nil, fmt.Errorf("tracker: start task: %w", err)
	}
	return s.GetFocusTask(ownerID, id)
}

// CompleteUnit credits one finished work unit on the active task. A
// non-positive minutes value falls back to DefaultFocusMinutes. When the
// completed units reach the estimate, the task flips to completed and
// CompletedAt is stamped.
func (s *Store) CompleteUnit(ownerID, id int64, minutes int) (*FocusTask, error) {
	ft, err := s.GetFocusTask(ownerID, id)
	if err != nil {
		return nil, err
	}
	if ft.Status != FocusActive {
		return nil, fmt.Errorf("%w: cannot complete a unit on a %s task", ErrInvalidTransition, ft.Status)
	}
	if minutes <= 0 {
		minutes = DefaultFocusMinutes
	}

	units := ft.UnitsCompleted + 1
	now := Now()
	if units >= ft.EstimatedUnits {
		_, err = s.db.Exec(`
			UPDATE focus_tasks
			SET units_completed = ?, focus_minutes = focus_minutes + ?,
				status = ?, completed_at = ?, updated_at = ?
			WHERE id = ?`,
			units, minutes, FocusCompleted, now, now, id)
	} else {
		_, err = s.db.Exec(`
			UPDATE focus_tasks
			SET units_completed = ?, focus_minutes = focus_minutes + ?,
				updated_at = ?
			WHERE id = ?`,
			units, minutes, now, id)
	}
	if err != nil {
		return nil, fmt.Errorf("tracker: complete unit: %w", err)
	}
	return s.GetFocusTask(ownerID, id)
}

// SkipTask marks a task skipped. Skipping is allowed from any state.
func (s *Store) SkipTask(ownerID, id int64) (*FocusTask, error) {
	if _, err := s.GetFocusTask(ownerID, id); err != nil {
		return nil, err
	}
	_, err := s.db.Exec(`
		UPDATE focus_tasks SET status = ?, updated_at = ? WHERE id = ?`,
		FocusSkipped, Now(), id)
	if err != nil {
		return nil, fmt.Errorf("tracker: skip task: %w", err)
	}
	return s.GetFocusTask(ownerID, id)
}

// ResetTask returns a task to pending with its progress counters and
// timestamps cleared.
func (s *Store) ResetTask(ownerID, id int64) (*FocusTask, error) {
	if _, err := s.GetFocusTask(ownerID, id); err != nil {
		return nil, err
	}
	_, err := s.db.Exec(`
		UPDATE focus_tasks
		SET status = ?, units_completed = 0, focus_minutes = 0,
			started_at = NULL, completed_at = NULL, updated_at = ?
		WHERE id = ?`, FocusPending, Now(), id)
	if err != nil {
		return nil, fmt.Errorf("tracker: reset task: %w", err)
	}
	return s.GetFocusTask(ownerID, id)
}

// DeleteFocusTask removes one entry from the owner's worklist.
func (s *Store) DeleteFocusTask(ownerID, id int64) error {
	res, err := s.db.Exec(`
		DELETE FROM focus_tasks WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("tracker: delete focus task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("tracker: delete focus task: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanFocusTask(row rowScanner) (*FocusTask, error) {
	var (
		ft          FocusTask
		description sql.NullString
		related     sql.NullString
		startedAt   sql.NullString
		completedAt sql.NullString
		genContext  sql.NullString
		reasoning   sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(&ft.ID, &ft.OwnerID, &ft.Title, &description, &related,
		&ft.PriorityScore, &ft.EstimatedUnits, &ft.OrderIndex, &ft.Status,
		&startedAt, &completedAt, &ft.UnitsCompleted, &ft.FocusMinutes,
		&ft.BatchID, &genContext, &reasoning, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tracker: scan focus task: %w", err)
	}
	if description.Valid {
		ft.Description = description.String
	}
	if related.Valid && related.String != "" && related.String != "null" {
		if err := json.Unmarshal([]byte(related.String), &ft.RelatedRecordIDs); err != nil {
			return nil, fmt.Errorf("tracker: decode related ids: %w", err)
		}
	}
	if startedAt.Valid {
		t := parseTime(startedAt.String)
		ft.StartedAt = &t
	}
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		ft.CompletedAt = &t
	}
	if genContext.Valid {
		ft.GenerationContext = genContext.String
	}
	if reasoning.Valid {
		ft.Reasoning = reasoning.String
	}
	ft.CreatedAt = parseTime(createdAt)
	ft.UpdatedAt = parseTime(updatedAt)
	return &ft, nil
}
