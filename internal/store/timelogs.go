package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fentz26/worklog/internal/models"
)

const timeLogColumns = `id, user_id, task_id, project_id, description, start_time, end_time, duration,
	is_active, is_manual, approval_status, invoiceable, created_at, updated_at`

// TimeLogFilter narrows ListTimeLogs. Zero values are ignored.
type TimeLogFilter struct {
	UserID     string
	TaskID     string
	From       time.Time // inclusive, on start_time
	To         time.Time // inclusive, on start_time
	ClosedOnly bool
}

func scanTimeLog(row scanner) (*models.TimeLogEntry, error) {
	var (
		entry                           models.TimeLogEntry
		taskID, projectID               sql.NullString
		endTime                         sql.NullTime
		isActive, isManual, invoiceable int
	)
	err := row.Scan(&entry.ID, &entry.UserID, &taskID, &projectID, &entry.Description, &entry.StartTime, &endTime,
		&entry.Duration, &isActive, &isManual, &entry.ApprovalStatus, &invoiceable, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	entry.TaskID = taskID.String
	entry.ProjectID = projectID.String
	entry.StartTime = entry.StartTime.UTC()
	entry.EndTime = timePtr(endTime)
	entry.IsActive = isActive != 0
	entry.IsManualEntry = isManual != 0
	entry.Invoiceable = invoiceable != 0
	return &entry, nil
}

// InsertTimeLog persists a new entry. Inserting a second active entry for the
// same user violates idx_time_logs_one_active and is reported as ErrConflict.
func (q *queries) InsertTimeLog(ctx context.Context, e *models.TimeLogEntry) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO time_logs (`+timeLogColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, nullString(e.TaskID), nullString(e.ProjectID), e.Description, e.StartTime.UTC(),
		nullTime(e.EndTime), e.Duration, boolInt(e.IsActive), boolInt(e.IsManualEntry), e.ApprovalStatus,
		boolInt(e.Invoiceable), e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert time log: user %s already has an active timer: %w", e.UserID, models.ErrConflict)
		}
		return fmt.Errorf("insert time log: %w", mapBusy(err))
	}
	return nil
}

// GetTimeLog retrieves an entry with its edit history. It returns nil, nil
// when the entry does not exist.
func (q *queries) GetTimeLog(ctx context.Context, id string) (*models.TimeLogEntry, error) {
	entry, err := scanTimeLog(q.q.QueryRowContext(ctx, `SELECT `+timeLogColumns+` FROM time_logs WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query time log: %w", err)
	}
	if entry.EditHistory, err = q.ListEdits(ctx, id); err != nil {
		return nil, err
	}
	return entry, nil
}

// ActiveTimeLog returns the user's running entry, or nil.
func (q *queries) ActiveTimeLog(ctx context.Context, userID string) (*models.TimeLogEntry, error) {
	entry, err := scanTimeLog(q.q.QueryRowContext(ctx,
		`SELECT `+timeLogColumns+` FROM time_logs WHERE user_id = ? AND is_active = 1`, userID))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active time log: %w", err)
	}
	return entry, nil
}

// ListTimeLogs returns entries matching the filter ordered by start time.
// Edit history is not loaded.
func (q *queries) ListTimeLogs(ctx context.Context, f TimeLogFilter) ([]models.TimeLogEntry, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.UserID != "" {
		where = append(where, `user_id = ?`)
		args = append(args, f.UserID)
	}
	if f.TaskID != "" {
		where = append(where, `task_id = ?`)
		args = append(args, f.TaskID)
	}
	if !f.From.IsZero() {
		where = append(where, `start_time >= ?`)
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, `start_time <= ?`)
		args = append(args, f.To.UTC())
	}
	if f.ClosedOnly {
		where = append(where, `is_active = 0`)
	}

	query := `SELECT ` + timeLogColumns + ` FROM time_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY start_time ASC, id ASC`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query time logs: %w", err)
	}
	defer rows.Close()

	var entries []models.TimeLogEntry
	for rows.Next() {
		entry, err := scanTimeLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time log: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// UpdateTimeLog overwrites the mutable columns of an entry.
func (q *queries) UpdateTimeLog(ctx context.Context, e *models.TimeLogEntry) error {
	res, err := q.q.ExecContext(ctx,
		`UPDATE time_logs SET task_id = ?, project_id = ?, description = ?, start_time = ?, end_time = ?, duration = ?,
			is_active = ?, is_manual = ?, approval_status = ?, invoiceable = ?, updated_at = ?
		 WHERE id = ?`,
		nullString(e.TaskID), nullString(e.ProjectID), e.Description, e.StartTime.UTC(), nullTime(e.EndTime), e.Duration,
		boolInt(e.IsActive), boolInt(e.IsManualEntry), e.ApprovalStatus, boolInt(e.Invoiceable), e.UpdatedAt.UTC(),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("update time log: %w", mapBusy(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update time log %s: %w", e.ID, models.ErrNotFound)
	}
	return nil
}

// DeleteTimeLog removes an entry and its edit history.
func (q *queries) DeleteTimeLog(ctx context.Context, id string) (bool, error) {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM time_log_edits WHERE time_log_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete time log edits: %w", mapBusy(err))
	}
	res, err := q.q.ExecContext(ctx, `DELETE FROM time_logs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete time log: %w", mapBusy(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n > 0, nil
}

// AppendEdit inserts one edit-history record. Records are never updated.
func (q *queries) AppendEdit(ctx context.Context, rec *models.EditRecord) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO time_log_edits (id, time_log_id, seq, editor_id, edited_at, start_time, end_time, duration, description, prev_hash, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TimeLogID, rec.Seq, rec.EditorID, rec.EditedAt.UTC(), rec.StartTime.UTC(), nullTime(rec.EndTime),
		rec.Duration, rec.Description, rec.PrevHash, rec.Hash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("append edit: %w", models.ErrConflict)
		}
		return fmt.Errorf("append edit: %w", mapBusy(err))
	}
	return nil
}

// ListEdits returns an entry's edit history in append order.
func (q *queries) ListEdits(ctx context.Context, timeLogID string) ([]models.EditRecord, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT id, time_log_id, seq, editor_id, edited_at, start_time, end_time, duration, description, prev_hash, hash
		 FROM time_log_edits WHERE time_log_id = ? ORDER BY seq ASC`, timeLogID)
	if err != nil {
		return nil, fmt.Errorf("query edits: %w", err)
	}
	defer rows.Close()

	records := []models.EditRecord{}
	for rows.Next() {
		var (
			rec     models.EditRecord
			endTime sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.TimeLogID, &rec.Seq, &rec.EditorID, &rec.EditedAt, &rec.StartTime, &endTime,
			&rec.Duration, &rec.Description, &rec.PrevHash, &rec.Hash); err != nil {
			return nil, fmt.Errorf("scan edit: %w", err)
		}
		rec.EditedAt = rec.EditedAt.UTC()
		rec.StartTime = rec.StartTime.UTC()
		rec.EndTime = timePtr(endTime)
		records = append(records, rec)
	}
	return records, rows.Err()
}
