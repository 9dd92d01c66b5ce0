package tracker

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/focusloop/focusloop/internal/ident"
)

// Record is a tracked idea, task or note. Records nest at most one level
// deep: a record either has no parent or its parent is a top-level task.
type Record struct {
	ID            int64
	Content       string
	Category      string
	ParentID      *int64
	OwnerID       *int64 // nil = anonymous/public scope
	Priority      string
	Progress      int
	ProgressNotes string
	Status        string
	Tag           string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RecordSummary is the listing shape: the record plus its active-child
// count, and optionally the children themselves.
type RecordSummary struct {
	Record
	ActiveChildren int
	Children       []Record
}

// CreateRecordParams holds the caller-supplied fields for CreateRecord.
// Zero values fall back to defaults (category general, priority medium,
// tag work).
type CreateRecordParams struct {
	Content  string
	Category string
	ParentID *int64
	OwnerID  *int64
	Priority string
	Tag      string
}

// UpdateRecordParams is a partial patch; nil fields are left untouched.
type UpdateRecordParams struct {
	Content       *string
	Category      *string
	Priority      *string
	Progress      *int
	ProgressNotes *string
	Status        *string
	Tag           *string
}

// ListRecordsOptions filters ListRecords. Deleted records are always
// excluded here; use AuditRecord for the by-ID audit path.
type ListRecordsOptions struct {
	OwnerID  *int64
	Category string
	Status   string
	Tag      string
	Limit    int
}

const recordColumns = `id, content, category, parent_id, owner_id, priority,
	progress, progress_notes, status, tag, created_at, updated_at`

// CreateRecord validates and persists a new record. When ParentID is set
// the parent must exist, be a task, not be deleted, and not itself be a
// child; the new record inherits the parent's owner.
func (s *Store) CreateRecord(p CreateRecordParams) (*Record, error) {
	if strings.TrimSpace(p.Content) == "" {
		return nil, invalidf("content", "must not be empty")
	}
	if p.Category == "" {
		p.Category = CategoryGeneral
	}
	if !validCategories[p.Category] {
		return nil, invalidf("category", "%q is not a known category", p.Category)
	}
	if p.Priority == "" {
		p.Priority = PriorityMedium
	}
	if !validPriorities[p.Priority] {
		return nil, invalidf("priority", "%q is not a known priority", p.Priority)
	}
	if p.Tag == "" {
		p.Tag = "work"
	}

	if p.ParentID != nil {
		parent, err := s.AuditRecord(*p.ParentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, invalidf("parent_id", "parent %d does not exist", *p.ParentID)
			}
			return nil, err
		}
		if parent.Status == StatusDeleted {
			return nil, invalidf("parent_id", "parent %d is deleted", *p.ParentID)
		}
		if parent.Category != CategoryTask {
			return nil, invalidf("parent_id", "parent %d is a %s, only tasks can have subtasks", *p.ParentID, parent.Category)
		}
		if parent.ParentID != nil {
			return nil, invalidf("parent_id", "parent %d is itself a subtask, nesting is limited to one level", *p.ParentID)
		}
		// Children live in the parent's scope regardless of the caller.
		p.OwnerID = parent.OwnerID
	}

	now := Now()
	for attempt := 0; attempt < ident.MaxInsertRetries; attempt++ {
		id := ident.Allocate()
		_, err := s.db.Exec(`
			INSERT INTO records (id, content, category, parent_id, owner_id,
				priority, status, tag, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, p.Content, p.Category, p.ParentID, p.OwnerID,
			p.Priority, StatusActive, p.Tag, now, now,
		)
		if err == nil {
			return s.GetRecord(id)
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("tracker: insert record: %w", err)
		}
	}
	return nil, ErrIDExhausted
}

// GetRecord returns a record by ID, excluding soft-deleted rows.
func (s *Store) GetRecord(id int64) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT `+recordColumns+`
		FROM records WHERE id = ? AND status != ?`, id, StatusDeleted)
	return scanRecord(row)
}

// AuditRecord returns a record by ID regardless of status. Soft-deleted
// records stay addressable through this path.
func (s *Store) AuditRecord(id int64) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT `+recordColumns+`
		FROM records WHERE id = ?`, id)
	return scanRecord(row)
}

// ListChildren returns the children of a record. By default only active
// children are returned; includeInactive widens this to every non-deleted
// status.
func (s *Store) ListChildren(parentID int64, includeInactive bool) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE parent_id = ?`
	if includeInactive {
		query += ` AND status != '` + StatusDeleted + `'`
	} else {
		query += ` AND status = '` + StatusActive + `'`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(query, parentID)
	if err != nil {
		return nil, fmt.Errorf("tracker: list children: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ActiveChildCount returns the number of active children without loading
// their payloads.
func (s *Store) ActiveChildCount(parentID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM records WHERE parent_id = ? AND status = ?`,
		parentID, StatusActive).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("tracker: count children: %w", err)
	}
	return n, nil
}

// ListRecords returns records matching the options, newest first.
// Soft-deleted records are always excluded.
func (s *Store) ListRecords(opts ListRecordsOptions) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE status != ?`
	args := []any{StatusDeleted}

	if opts.OwnerID != nil {
		query += ` AND owner_id = ?`
		args = append(args, *opts.OwnerID)
	} else {
		query += ` AND owner_id IS NULL`
	}
	if opts.Category != "" {
		if !validCategories[opts.Category] {
			return nil, invalidf("category", "%q is not a known category", opts.Category)
		}
		query += ` AND category = ?`
		args = append(args, opts.Category)
	}
	if opts.Status != "" {
		if !validStatuses[opts.Status] || opts.Status == StatusDeleted {
			return nil, invalidf("status", "%q is not a listable status", opts.Status)
		}
		query += ` AND status = ?`
		args = append(args, opts.Status)
	}
	if opts.Tag != "" {
		query += ` AND tag = ?`
		args = append(args, opts.Tag)
	}

	query += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("tracker: list records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ToSummary wraps a record with its active-child count. When
// includeChildren is set the active child payloads are loaded too;
// otherwise only a single aggregate query runs. Callers wanting the
// full child history go through ListChildren directly.
func (s *Store) ToSummary(rec *Record, includeChildren bool) (*RecordSummary, error) {
	sum := &RecordSummary{Record: *rec}

	n, err := s.ActiveChildCount(rec.ID)
	if err != nil {
		return nil, err
	}
	sum.ActiveChildren = n

	if includeChildren {
		children, err := s.ListChildren(rec.ID, false)
		if err != nil {
			return nil, err
		}
		sum.Children = children
	}
	return sum, nil
}

// UpdateRecord applies a partial patch to a record and stamps UpdatedAt.
// Progress is clamped to 0-100. Concurrent updates are last-write-wins.
func (s *Store) UpdateRecord(id int64, p UpdateRecordParams) (*Record, error) {
	rec, err := s.GetRecord(id)
	if err != nil {
		return nil, err
	}

	sets := []string{"updated_at = ?"}
	args := []any{Now()}

	if p.Content != nil {
		if strings.TrimSpace(*p.Content) == "" {
			return nil, invalidf("content", "must not be empty")
		}
		sets = append(sets, "content = ?")
		args = append(args, *p.Content)
	}
	if p.Category != nil {
		if !validCategories[*p.Category] {
			return nil, invalidf("category", "%q is not a known category", *p.Category)
		}
		if *p.Category != CategoryTask && *p.Category != rec.Category {
			n, err := s.ActiveChildCount(id)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				return nil, invalidf("category", "record %d has subtasks and must stay a task", id)
			}
		}
		sets = append(sets, "category = ?")
		args = append(args, *p.Category)
	}
	if p.Priority != nil {
		if !validPriorities[*p.Priority] {
			return nil, invalidf("priority", "%q is not a known priority", *p.Priority)
		}
		sets = append(sets, "priority = ?")
		args = append(args, *p.Priority)
	}
	if p.Progress != nil {
		sets = append(sets, "progress = ?")
		args = append(args, clampInt(*p.Progress, 0, 100))
	}
	if p.ProgressNotes != nil {
		sets = append(sets, "progress_notes = ?")
		args = append(args, nullableString(*p.ProgressNotes))
	}
	if p.Status != nil {
		if !validStatuses[*p.Status] || *p.Status == StatusDeleted {
			return nil, invalidf("status", "%q cannot be set through update, use delete", *p.Status)
		}
		sets = append(sets, "status = ?")
		args = append(args, *p.Status)
	}
	if p.Tag != nil {
		if strings.TrimSpace(*p.Tag) == "" {
			return nil, invalidf("tag", "must not be empty")
		}
		sets = append(sets, "tag = ?")
		args = append(args, *p.Tag)
	}

	args = append(args, id)
	_, err = s.db.Exec(`UPDATE records SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("tracker: update record: %w", err)
	}
	return s.GetRecord(id)
}

// DeleteRecord removes a record. The default is a soft delete: the record
// flips to status deleted, vanishes from listings and aggregates, but
// remains readable through AuditRecord. A hard delete physically removes
// the row and its children and cannot be undone.
func (s *Store) DeleteRecord(id int64, hard bool) error {
	if _, err := s.GetRecord(id); err != nil {
		return err
	}

	if hard {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("tracker: begin delete: %w", err)
		}
		defer tx.Rollback()
		if _, err := tx.Exec(`DELETE FROM records WHERE parent_id = ?`, id); err != nil {
			return fmt.Errorf("tracker: delete children: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM records WHERE id = ?`, id); err != nil {
			return fmt.Errorf("tracker: delete record: %w", err)
		}
		return tx.Commit()
	}

	_, err := s.db.Exec(`UPDATE records SET status = ?, updated_at = ? WHERE id = ?`,
		StatusDeleted, Now(), id)
	if err != nil {
		return fmt.Errorf("tracker: soft delete record: %w", err)
	}
	return nil
}

// TopTasks returns up to limit active top-level tasks in the owner's
// scope, most important first: urgent before high before medium before
// low, oldest first within a priority.
func (s *Store) TopTasks(owner *int64, limit int) ([]Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE category = ? AND status = ? AND parent_id IS NULL`
	args := []any{CategoryTask, StatusActive}

	if owner != nil {
		query += ` AND owner_id = ?`
		args = append(args, *owner)
	} else {
		query += ` AND owner_id IS NULL`
	}

	query += `
		ORDER BY CASE priority
			WHEN 'urgent' THEN 1
			WHEN 'high'   THEN 2
			WHEN 'medium' THEN 3
			ELSE 4
		END, created_at ASC
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("tracker: top tasks: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// TasksInWindow returns every non-deleted task in the owner's scope
// created at or after since. This is the analytics feeder; it loads
// top-level tasks and subtasks alike.
func (s *Store) TasksInWindow(owner *int64, since time.Time) ([]Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE category = ? AND status != ? AND created_at >= ?`
	args := []any{CategoryTask, StatusDeleted, formatTime(since)}

	if owner != nil {
		query += ` AND owner_id = ?`
		args = append(args, *owner)
	} else {
		query += ` AND owner_id IS NULL`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("tracker: tasks in window: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ─── Scanning ────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec       Record
		parentID  sql.NullInt64
		ownerID   sql.NullInt64
		notes     sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&rec.ID, &rec.Content, &rec.Category, &parentID, &ownerID,
		&rec.Priority, &rec.Progress, &notes, &rec.Status, &rec.Tag,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tracker: scan record: %w", err)
	}
	if parentID.Valid {
		rec.ParentID = &parentID.Int64
	}
	if ownerID.Valid {
		rec.OwnerID = &ownerID.Int64
	}
	if notes.Valid {
		rec.ProgressNotes = notes.String
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
