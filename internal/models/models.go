// Package models defines the core domain types for Worklog.
package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusActive    TaskStatus = "active"
	TaskStatusHigh      TaskStatus = "high"
	TaskStatusCritical  TaskStatus = "critical"
	TaskStatusCompleted TaskStatus = "completed"
)

// TaskPriority ranks tasks for presentation.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Role is the caller's role as resolved by the surrounding layer.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the resolved caller of an operation.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// IsAdmin reports whether the identity bypasses ownership checks.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanActOn reports whether the identity may mutate a record owned by ownerID.
func (i Identity) CanActOn(ownerID string) bool {
	return i.IsAdmin() || (i.UserID != "" && i.UserID == ownerID)
}

// Task represents a unit of work.
type Task struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Status         TaskStatus   `json:"status"`
	Priority       TaskPriority `json:"priority"`
	OwnerID        string       `json:"owner_id"`
	AssigneeID     string       `json:"assignee_id,omitempty"`
	ProjectID      string       `json:"project_id,omitempty"`
	ParentTaskID   string       `json:"parent_task_id,omitempty"`
	DueAt          *time.Time   `json:"due_at,omitempty"`
	Completed      bool         `json:"completed"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	Attachments    []string     `json:"attachments,omitempty"`
	Links          []string     `json:"links,omitempty"`
	EstimatedHours float64      `json:"estimated_hours"`
	ActualHours    float64      `json:"actual_hours"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`

	// Subtasks is populated only by hierarchy assembly.
	Subtasks []Task `json:"subtasks,omitempty"`
}

// DependencyEdge is a directed "TaskID depends on DependsOnTaskID" edge.
type DependencyEdge struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"task_id"`
	DependsOnTaskID string    `json:"depends_on_task_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// ApprovalStatus tracks whether a time entry was signed off.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
)

// TimeLogEntry is one interval of work.
type TimeLogEntry struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	TaskID         string         `json:"task_id,omitempty"`
	ProjectID      string         `json:"project_id,omitempty"`
	Description    string         `json:"description"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        *time.Time     `json:"end_time,omitempty"`
	Duration       int64          `json:"duration"` // seconds
	IsActive       bool           `json:"is_active"`
	IsManualEntry  bool           `json:"is_manual_entry"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	Invoiceable    bool           `json:"invoiceable"`
	EditHistory    []EditRecord   `json:"edit_history"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// EditRecord is an immutable snapshot of an entry's values before an edit.
// Hash chains each record to its predecessor so rewrites are detectable.
type EditRecord struct {
	ID          string     `json:"id"`
	TimeLogID   string     `json:"time_log_id"`
	Seq         int        `json:"seq"`
	EditorID    string     `json:"editor_id"`
	EditedAt    time.Time  `json:"edited_at"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Duration    int64      `json:"duration"`
	Description string     `json:"description"`
	PrevHash    string     `json:"prev_hash"`
	Hash        string     `json:"hash"`
}

// ProductivityStats summarises a user's closed entries over a window.
type ProductivityStats struct {
	UserID             string  `json:"user_id"`
	WindowDays         int     `json:"window_days"`
	TotalHours         float64 `json:"total_hours"`
	AverageDailyHours  float64 `json:"average_daily_hours"`
	StreakDays         int     `json:"streak_days"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// PDREntry represents a Process Decision Record for audit.
type PDREntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	SubjectID  string    `json:"subject_id,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
