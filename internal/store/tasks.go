package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fentz26/worklog/internal/models"
)

const taskColumns = `id, title, description, status, priority, owner_id, assignee_id, project_id,
	parent_task_id, due_at, completed, completed_at, notes, attachments, links,
	estimated_hours, actual_hours, created_at, updated_at`

// TaskFilter narrows ListTasks. Empty fields are ignored.
type TaskFilter struct {
	OwnerID   string
	Status    models.TaskStatus
	ProjectID string
	ParentID  string
}

func scanTask(row scanner) (*models.Task, error) {
	var (
		task                      models.Task
		assignee, project, parent sql.NullString
		dueAt, completedAt        sql.NullTime
		attachments, links        sql.NullString
		completed                 int
	)
	err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Status, &task.Priority, &task.OwnerID,
		&assignee, &project, &parent, &dueAt, &completed, &completedAt, &task.Notes, &attachments, &links,
		&task.EstimatedHours, &task.ActualHours, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	task.AssigneeID = assignee.String
	task.ProjectID = project.String
	task.ParentTaskID = parent.String
	task.DueAt = timePtr(dueAt)
	task.Completed = completed != 0
	task.CompletedAt = timePtr(completedAt)
	task.Attachments = decodeList(attachments)
	task.Links = decodeList(links)
	return &task, nil
}

// InsertTask persists a new task.
func (q *queries) InsertTask(ctx context.Context, task *models.Task) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, task.Status, task.Priority, task.OwnerID,
		nullString(task.AssigneeID), nullString(task.ProjectID), nullString(task.ParentTaskID),
		nullTime(task.DueAt), boolInt(task.Completed), nullTime(task.CompletedAt), task.Notes,
		encodeList(task.Attachments), encodeList(task.Links), task.EstimatedHours, task.ActualHours,
		task.CreatedAt.UTC(), task.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", mapBusy(err))
	}
	return nil
}

// GetTask retrieves a task by ID. It returns nil, nil when the task does not exist.
func (q *queries) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := scanTask(q.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// ListTasks returns tasks matching the filter, oldest first.
func (q *queries) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.OwnerID != "" {
		where = append(where, `(owner_id = ? OR assignee_id = ?)`)
		args = append(args, f.OwnerID, f.OwnerID)
	}
	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, f.Status)
	}
	if f.ProjectID != "" {
		where = append(where, `project_id = ?`)
		args = append(args, f.ProjectID)
	}
	if f.ParentID != "" {
		where = append(where, `parent_task_id = ?`)
		args = append(args, f.ParentID)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// UpdateTask overwrites every mutable column of an existing task.
func (q *queries) UpdateTask(ctx context.Context, task *models.Task) error {
	res, err := q.q.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, assignee_id = ?, project_id = ?,
			parent_task_id = ?, due_at = ?, completed = ?, completed_at = ?, notes = ?, attachments = ?, links = ?,
			estimated_hours = ?, actual_hours = ?, updated_at = ?
		 WHERE id = ?`,
		task.Title, task.Description, task.Status, task.Priority, nullString(task.AssigneeID), nullString(task.ProjectID),
		nullString(task.ParentTaskID), nullTime(task.DueAt), boolInt(task.Completed), nullTime(task.CompletedAt), task.Notes,
		encodeList(task.Attachments), encodeList(task.Links), task.EstimatedHours, task.ActualHours, task.UpdatedAt.UTC(),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", mapBusy(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update task %s: %w", task.ID, models.ErrNotFound)
	}
	return nil
}

// ParentOf returns the parent id of a task, or "" for roots and unknown ids.
func (q *queries) ParentOf(ctx context.Context, id string) (string, error) {
	var parent sql.NullString
	err := q.q.QueryRowContext(ctx, `SELECT parent_task_id FROM tasks WHERE id = ?`, id).Scan(&parent)
	if isNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query parent: %w", err)
	}
	return parent.String, nil
}

// DeleteTask removes a task, its dependency edges and its links from children
// and time logs. It reports whether the task existed.
func (q *queries) DeleteTask(ctx context.Context, id string) (bool, error) {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ? OR depends_on_task_id = ?`, id, id); err != nil {
		return false, fmt.Errorf("delete task dependencies: %w", mapBusy(err))
	}
	if _, err := q.q.ExecContext(ctx, `UPDATE tasks SET parent_task_id = NULL WHERE parent_task_id = ?`, id); err != nil {
		return false, fmt.Errorf("detach children: %w", mapBusy(err))
	}
	if _, err := q.q.ExecContext(ctx, `UPDATE time_logs SET task_id = NULL WHERE task_id = ?`, id); err != nil {
		return false, fmt.Errorf("unlink time logs: %w", mapBusy(err))
	}

	res, err := q.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", mapBusy(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n > 0, nil
}
