package store

import (
	"context"
	"fmt"

	"github.com/fentz26/worklog/internal/models"
)

// InsertDependency persists a dependency edge. A duplicate (task, depends-on)
// pair is reported as ErrConflict.
func (q *queries) InsertDependency(ctx context.Context, edge *models.DependencyEdge) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO task_dependencies (id, task_id, depends_on_task_id, created_at) VALUES (?, ?, ?, ?)`,
		edge.ID, edge.TaskID, edge.DependsOnTaskID, edge.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert dependency: %w", models.ErrConflict)
		}
		return fmt.Errorf("insert dependency: %w", mapBusy(err))
	}
	return nil
}

// GetDependency retrieves an edge by ID. It returns nil, nil when missing.
func (q *queries) GetDependency(ctx context.Context, id string) (*models.DependencyEdge, error) {
	edge := &models.DependencyEdge{}
	err := q.q.QueryRowContext(ctx,
		`SELECT id, task_id, depends_on_task_id, created_at FROM task_dependencies WHERE id = ?`, id,
	).Scan(&edge.ID, &edge.TaskID, &edge.DependsOnTaskID, &edge.CreatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query dependency: %w", err)
	}
	return edge, nil
}

// FindDependency looks up the edge taskID -> dependsOnID, if any.
func (q *queries) FindDependency(ctx context.Context, taskID, dependsOnID string) (*models.DependencyEdge, error) {
	edge := &models.DependencyEdge{}
	err := q.q.QueryRowContext(ctx,
		`SELECT id, task_id, depends_on_task_id, created_at FROM task_dependencies WHERE task_id = ? AND depends_on_task_id = ?`,
		taskID, dependsOnID,
	).Scan(&edge.ID, &edge.TaskID, &edge.DependsOnTaskID, &edge.CreatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query dependency: %w", err)
	}
	return edge, nil
}

// DependenciesOf returns the ids taskID directly depends on.
func (q *queries) DependenciesOf(ctx context.Context, taskID string) ([]string, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT depends_on_task_id FROM task_dependencies WHERE task_id = ? ORDER BY depends_on_task_id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListDependencies returns edges touching taskID in either direction.
func (q *queries) ListDependencies(ctx context.Context, taskID string) ([]models.DependencyEdge, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT id, task_id, depends_on_task_id, created_at FROM task_dependencies
		 WHERE task_id = ? OR depends_on_task_id = ? ORDER BY created_at ASC, id ASC`,
		taskID, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	var edges []models.DependencyEdge
	for rows.Next() {
		var edge models.DependencyEdge
		if err := rows.Scan(&edge.ID, &edge.TaskID, &edge.DependsOnTaskID, &edge.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// DeleteDependency removes an edge and reports whether it existed.
func (q *queries) DeleteDependency(ctx context.Context, id string) (bool, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM task_dependencies WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete dependency: %w", mapBusy(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n > 0, nil
}
