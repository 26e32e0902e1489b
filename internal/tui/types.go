package tui

import "github.com/fentz26/worklog/internal/models"

// TaskRow is one line of the flattened task tree.
type TaskRow struct {
	Task  models.Task
	Depth int
}

// flattenTree walks roots depth-first, keeping sibling order.
func flattenTree(roots []models.Task) []TaskRow {
	var rows []TaskRow
	var walk func(ts []models.Task, depth int)
	walk = func(ts []models.Task, depth int) {
		for _, t := range ts {
			children := t.Subtasks
			t.Subtasks = nil
			rows = append(rows, TaskRow{Task: t, Depth: depth})
			walk(children, depth+1)
		}
	}
	walk(roots, 0)
	return rows
}

// TaskDetail is a task together with the edges that touch it.
type TaskDetail struct {
	Task      models.Task
	BlockedBy []models.DependencyEdge
	Blocking  []models.DependencyEdge
}
