package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fentz26/worklog/internal/models"
	"github.com/fentz26/worklog/internal/store"
)

// inheritFromParent applies the structural constraints a subtask takes from
// its parent: the parent's project, and a due date no later than the
// parent's (inherited when the subtask has none).
func inheritFromParent(task, parent *models.Task) error {
	if parent.ProjectID != "" {
		task.ProjectID = parent.ProjectID
	}
	if parent.DueAt == nil {
		return nil
	}
	if task.DueAt == nil {
		due := *parent.DueAt
		task.DueAt = &due
		return nil
	}
	if task.DueAt.After(*parent.DueAt) {
		return models.Validationf("due date %s is after parent's due date %s",
			task.DueAt.Format(time.RFC3339), parent.DueAt.Format(time.RFC3339))
	}
	return nil
}

// constrainDescendants pushes root's project down the subtree below it and
// rejects the change when a descendant is due after its parent. Descendants
// without a due date are left alone.
func constrainDescendants(ctx context.Context, tx *store.Tx, root *models.Task, now time.Time) error {
	visited := map[string]bool{root.ID: true}
	var walk func(parent *models.Task) error
	walk = func(parent *models.Task) error {
		children, err := tx.ListTasks(ctx, store.TaskFilter{ParentID: parent.ID})
		if err != nil {
			return err
		}
		for i := range children {
			child := &children[i]
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true

			if parent.DueAt != nil && child.DueAt != nil && child.DueAt.After(*parent.DueAt) {
				return models.Validationf("subtask %s is due %s, after its parent's due date %s",
					child.ID, child.DueAt.Format(time.RFC3339), parent.DueAt.Format(time.RFC3339))
			}
			if root.ProjectID != "" && child.ProjectID != root.ProjectID {
				child.ProjectID = root.ProjectID
				child.UpdatedAt = now
				if err := tx.UpdateTask(ctx, child); err != nil {
					return err
				}
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root)
}

func applyPatch(task *models.Task, p Patch, now time.Time) {
	if p.Title != nil {
		task.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.Priority != nil {
		task.Priority = models.TaskPriority(*p.Priority)
	}
	if p.AssigneeID != nil {
		task.AssigneeID = *p.AssigneeID
	}
	if p.ClearDueAt {
		task.DueAt = nil
	} else if p.DueAt != nil {
		task.DueAt = utcPtr(p.DueAt)
	}
	if p.Notes != nil {
		task.Notes = *p.Notes
	}
	if note := strings.TrimSpace(p.AppendNote); note != "" {
		stamp := now.UTC().Format("2006-01-02 15:04")
		if task.Notes != "" {
			task.Notes += "\n"
		}
		task.Notes += fmt.Sprintf("[%s] %s", stamp, note)
	}
	if p.Attachments != nil {
		task.Attachments = *p.Attachments
	}
	if p.Links != nil {
		task.Links = *p.Links
	}
	if p.EstimatedHours != nil {
		task.EstimatedHours = *p.EstimatedHours
	}
	if p.ActualHours != nil {
		task.ActualHours = *p.ActualHours
	}
	if p.Status != nil {
		status := models.TaskStatus(*p.Status)
		switch {
		case status == models.TaskStatusCompleted && !task.Completed:
			task.Completed = true
			task.CompletedAt = &now
		case status != models.TaskStatusCompleted && task.Completed:
			// Reopened.
			task.Completed = false
			task.CompletedAt = nil
		}
		task.Status = status
	}
	task.UpdatedAt = now
}

// loadEditable fetches a task the caller may modify: its owner, its assignee
// or an admin.
func loadEditable(ctx context.Context, tx *store.Tx, id string, who models.Identity) (*models.Task, error) {
	task, err := tx.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	if !who.CanActOn(task.OwnerID) && !(task.AssigneeID != "" && who.UserID == task.AssigneeID) {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrForbidden)
	}
	return task, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
