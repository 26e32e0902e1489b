// Package tasks provides task records, their parent/child tree and their
// dependency edges on top of the store.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fentz26/worklog/internal/audit"
	"github.com/fentz26/worklog/internal/clock"
	"github.com/fentz26/worklog/internal/events"
	"github.com/fentz26/worklog/internal/graph"
	"github.com/fentz26/worklog/internal/models"
	"github.com/fentz26/worklog/internal/store"
	"github.com/fentz26/worklog/internal/validation"
	"github.com/google/uuid"
)

// Service provides task operations.
type Service struct {
	store  *store.Store
	clock  clock.Clock
	events events.Publisher
	pdr    *audit.PDRWriter
	logger *slog.Logger

	// graphMu serializes structural changes (dependency edges and parent
	// links) so each check-then-insert sees a stable graph.
	graphMu sync.Mutex
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Clock  clock.Clock
	Events events.Publisher
	PDR    *audit.PDRWriter
	Logger *slog.Logger
}

// NewService creates a task service over s.
func NewService(s *store.Store, opts Options) *Service {
	svc := &Service{
		store:  s,
		clock:  opts.Clock,
		events: opts.Events,
		pdr:    opts.PDR,
		logger: opts.Logger,
	}
	if svc.clock == nil {
		svc.clock = clock.System{}
	}
	if svc.events == nil {
		svc.events = events.Discard{}
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.pdr == nil {
		svc.pdr = audit.NewPDRWriter(s, svc.clock, svc.logger)
	}
	return svc
}

// CreateParams describes a new task.
type CreateParams struct {
	Title          string     `json:"title" validate:"notblank,max=500"`
	Description    string     `json:"description"`
	Status         string     `json:"status" validate:"omitempty,oneof=pending active high critical completed"`
	Priority       string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	AssigneeID     string     `json:"assignee_id"`
	ProjectID      string     `json:"project_id"`
	ParentTaskID   string     `json:"parent_task_id"`
	DueAt          *time.Time `json:"due_at"`
	Notes          string     `json:"notes"`
	Attachments    []string   `json:"attachments"`
	Links          []string   `json:"links"`
	EstimatedHours float64    `json:"estimated_hours" validate:"gte=0"`
}

// Create stores a new task owned by the caller. A task created under a parent
// inherits the parent's constraints.
func (s *Service) Create(ctx context.Context, who models.Identity, p CreateParams) (*models.Task, error) {
	p.Title = strings.TrimSpace(p.Title)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	if who.UserID == "" {
		return nil, models.Validationf("owner is required")
	}

	now := s.clock.Now()
	task := &models.Task{
		ID:             uuid.New().String(),
		Title:          p.Title,
		Description:    p.Description,
		Status:         models.TaskStatus(p.Status),
		Priority:       models.TaskPriority(p.Priority),
		OwnerID:        who.UserID,
		AssigneeID:     p.AssigneeID,
		ProjectID:      p.ProjectID,
		DueAt:          utcPtr(p.DueAt),
		Notes:          p.Notes,
		Attachments:    p.Attachments,
		Links:          p.Links,
		EstimatedHours: p.EstimatedHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if task.Status == models.TaskStatusCompleted {
		task.Completed = true
		task.CompletedAt = &now
	}

	s.graphMu.Lock()
	defer s.graphMu.Unlock()

	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		if p.ParentTaskID != "" {
			parent, err := tx.GetTask(ctx, p.ParentTaskID)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("parent task %s: %w", p.ParentTaskID, models.ErrNotFound)
			}
			if err := inheritFromParent(task, parent); err != nil {
				return err
			}
		}
		return tx.InsertTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.pdr.Record(ctx, "task.create", p, audit.OutcomeSuccess, task.ID, who.UserID, "")
	return task, nil
}

// Get retrieves a task by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", id, models.ErrNotFound)
	}
	return task, nil
}

// List returns tasks matching the filter.
func (s *Service) List(ctx context.Context, f store.TaskFilter) ([]models.Task, error) {
	return s.store.ListTasks(ctx, f)
}

// Hierarchy lists tasks matching the filter nested under their parents.
func (s *Service) Hierarchy(ctx context.Context, f store.TaskFilter) ([]models.Task, error) {
	tasks, err := s.store.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}
	return graph.AssembleTrees(tasks), nil
}

// Patch lists task fields to change. Nil fields are left alone.
type Patch struct {
	Title          *string    `json:"title,omitempty" validate:"omitempty,notblank,max=500"`
	Description    *string    `json:"description,omitempty"`
	Status         *string    `json:"status,omitempty" validate:"omitempty,oneof=pending active high critical completed"`
	Priority       *string    `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	AssigneeID     *string    `json:"assignee_id,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	ClearDueAt     bool       `json:"clear_due_at,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	AppendNote     string     `json:"append_note,omitempty"`
	Attachments    *[]string  `json:"attachments,omitempty"`
	Links          *[]string  `json:"links,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty" validate:"omitempty,gte=0"`
	ActualHours    *float64   `json:"actual_hours,omitempty" validate:"omitempty,gte=0"`
}

// Update applies a patch. The owner, the assignee and admins may update.
// Setting status to completed completes the task. Moving a due date earlier
// than a subtask's is rejected.
func (s *Service) Update(ctx context.Context, who models.Identity, id string, p Patch) (*models.Task, error) {
	if err := validation.Struct(p); err != nil {
		return nil, err
	}

	s.graphMu.Lock()
	defer s.graphMu.Unlock()

	now := s.clock.Now()
	var (
		task      *models.Task
		completed bool
	)
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		if task, err = loadEditable(ctx, tx, id, who); err != nil {
			return err
		}
		wasCompleted := task.Completed
		applyPatch(task, p, now)
		completed = task.Completed && !wasCompleted

		if task.ParentTaskID != "" && task.DueAt != nil {
			parent, err := tx.GetTask(ctx, task.ParentTaskID)
			if err != nil {
				return err
			}
			if parent != nil && parent.DueAt != nil && task.DueAt.After(*parent.DueAt) {
				return models.Validationf("due date is after parent's due date %s", parent.DueAt.Format(time.RFC3339))
			}
		}
		if p.DueAt != nil && !p.ClearDueAt {
			if err := constrainDescendants(ctx, tx, task, now); err != nil {
				return err
			}
		}
		return tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.pdr.Record(ctx, "task.update", p, audit.OutcomeSuccess, id, who.UserID, "")
	if completed {
		s.publishTask(events.TaskCompleted, task, who.UserID, now)
	}
	return task, nil
}

// Complete marks a task completed. Completing a completed task is a no-op.
func (s *Service) Complete(ctx context.Context, who models.Identity, id string) (*models.Task, error) {
	status := string(models.TaskStatusCompleted)
	return s.Update(ctx, who, id, Patch{Status: &status})
}

// SetParent moves a task under parentID, or to the top level when parentID is
// empty. A task cannot become its own ancestor. The task and its subtree take
// the new parent's project.
func (s *Service) SetParent(ctx context.Context, who models.Identity, id, parentID string) (*models.Task, error) {
	s.graphMu.Lock()
	defer s.graphMu.Unlock()

	now := s.clock.Now()
	var task *models.Task
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		if task, err = loadEditable(ctx, tx, id, who); err != nil {
			return err
		}

		if parentID != "" {
			parent, err := tx.GetTask(ctx, parentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return fmt.Errorf("parent task %s: %w", parentID, models.ErrNotFound)
			}
			cyclic, err := graph.WouldCreateParentCycle(ctx, tx, id, parentID)
			if err != nil {
				return err
			}
			if cyclic {
				return fmt.Errorf("%w: task %s cannot be placed under its own descendant %s", models.ErrCyclicDependency, id, parentID)
			}
			if err := inheritFromParent(task, parent); err != nil {
				return err
			}
		}
		task.ParentTaskID = parentID
		task.UpdatedAt = now
		if err := constrainDescendants(ctx, tx, task, now); err != nil {
			return err
		}
		return tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.pdr.Record(ctx, "task.set_parent", map[string]string{"task_id": id, "parent_id": parentID}, audit.OutcomeSuccess, id, who.UserID, "")
	return task, nil
}

// Delete removes a task. Only its owner or an admin may delete it.
func (s *Service) Delete(ctx context.Context, who models.Identity, id string) (bool, error) {
	s.graphMu.Lock()
	defer s.graphMu.Unlock()

	var task *models.Task
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		if task, err = tx.GetTask(ctx, id); err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("task %s: %w", id, models.ErrNotFound)
		}
		if !who.CanActOn(task.OwnerID) {
			return fmt.Errorf("delete task %s: %w", id, models.ErrForbidden)
		}
		_, err = tx.DeleteTask(ctx, id)
		return err
	})
	if err != nil {
		return false, err
	}

	s.pdr.Record(ctx, "task.delete", map[string]string{"task_id": id}, audit.OutcomeSuccess, id, who.UserID, "")
	s.publishTask(events.TaskDeleted, task, who.UserID, s.clock.Now())
	return true, nil
}

// AddDependency records that taskID depends on dependsOnID. The cycle check
// and the insert happen in one transaction. Adding an existing edge returns
// it unchanged.
func (s *Service) AddDependency(ctx context.Context, who models.Identity, taskID, dependsOnID string) (*models.DependencyEdge, error) {
	inputs := map[string]string{"task_id": taskID, "depends_on_task_id": dependsOnID}
	if taskID == dependsOnID {
		err := fmt.Errorf("%w (%s)", models.ErrSelfDependency, taskID)
		s.reject(ctx, who, taskID, inputs, "self", err)
		return nil, err
	}

	s.graphMu.Lock()
	defer s.graphMu.Unlock()

	now := s.clock.Now()
	var (
		edge    *models.DependencyEdge
		created bool
	)
	err := s.store.RunInTx(ctx, func(tx *store.Tx) error {
		for _, id := range []string{taskID, dependsOnID} {
			t, err := tx.GetTask(ctx, id)
			if err != nil {
				return err
			}
			if t == nil {
				return fmt.Errorf("task %s: %w", id, models.ErrNotFound)
			}
		}

		existing, err := tx.FindDependency(ctx, taskID, dependsOnID)
		if err != nil {
			return err
		}
		if existing != nil {
			edge = existing
			return nil
		}

		if err := graph.ValidateEdge(ctx, tx, taskID, dependsOnID); err != nil {
			return err
		}
		edge = &models.DependencyEdge{
			ID:              uuid.New().String(),
			TaskID:          taskID,
			DependsOnTaskID: dependsOnID,
			CreatedAt:       now,
		}
		created = true
		return tx.InsertDependency(ctx, edge)
	})
	if err != nil {
		if errors.Is(err, models.ErrCyclicDependency) {
			s.reject(ctx, who, taskID, inputs, "cycle", err)
		}
		return nil, err
	}

	if created {
		s.pdr.Record(ctx, "dependency.create", inputs, audit.OutcomeSuccess, edge.ID, who.UserID, "")
		s.events.Publish(events.Event{Kind: events.DependencyCreated, SubjectID: edge.ID, UserID: who.UserID, At: now, Payload: *edge})
	}
	return edge, nil
}

// RemoveDependency deletes an edge by ID.
func (s *Service) RemoveDependency(ctx context.Context, who models.Identity, edgeID string) (bool, error) {
	s.graphMu.Lock()
	defer s.graphMu.Unlock()

	edge, err := s.store.GetDependency(ctx, edgeID)
	if err != nil {
		return false, err
	}
	if edge == nil {
		return false, fmt.Errorf("dependency %s: %w", edgeID, models.ErrNotFound)
	}
	deleted, err := s.store.DeleteDependency(ctx, edgeID)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, fmt.Errorf("dependency %s: %w", edgeID, models.ErrNotFound)
	}

	s.pdr.Record(ctx, "dependency.delete", map[string]string{"edge_id": edgeID}, audit.OutcomeSuccess, edgeID, who.UserID, "")
	s.events.Publish(events.Event{Kind: events.DependencyDeleted, SubjectID: edgeID, UserID: who.UserID, At: s.clock.Now(), Payload: *edge})
	return true, nil
}

// Dependencies returns the edges touching a task in either direction.
func (s *Service) Dependencies(ctx context.Context, taskID string) ([]models.DependencyEdge, error) {
	if _, err := s.Get(ctx, taskID); err != nil {
		return nil, err
	}
	return s.store.ListDependencies(ctx, taskID)
}

func (s *Service) reject(ctx context.Context, who models.Identity, taskID string, inputs map[string]string, reason string, err error) {
	s.pdr.Record(ctx, "dependency.create", inputs, audit.OutcomeRejected, taskID, who.UserID, err.Error())
	s.events.Publish(events.Event{
		Kind:      events.DependencyDenied,
		SubjectID: taskID,
		UserID:    who.UserID,
		At:        s.clock.Now(),
		Attrs:     map[string]string{"reason": reason},
	})
}

func (s *Service) publishTask(kind events.Kind, task *models.Task, userID string, at time.Time) {
	s.events.Publish(events.Event{Kind: kind, SubjectID: task.ID, UserID: userID, At: at, Payload: *task})
}
