// Package ledger owns time-log entries: it keeps at most one running timer
// per user, computes durations and records every correction in an
// append-only, hash-chained edit history.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fentz26/worklog/internal/audit"
	"github.com/fentz26/worklog/internal/clock"
	"github.com/fentz26/worklog/internal/events"
	"github.com/fentz26/worklog/internal/models"
	"github.com/fentz26/worklog/internal/store"
	"github.com/fentz26/worklog/internal/validation"
	"github.com/google/uuid"
)

// Ledger provides the time-tracking operations.
type Ledger struct {
	store  *store.Store
	clock  clock.Clock
	events events.Publisher
	pdr    *audit.PDRWriter
	logger *slog.Logger

	userLocks *keyedMutex
}

// Options configures a Ledger. Zero values fall back to defaults.
type Options struct {
	Clock  clock.Clock
	Events events.Publisher
	PDR    *audit.PDRWriter
	Logger *slog.Logger
}

// New creates a Ledger over s.
func New(s *store.Store, opts Options) *Ledger {
	l := &Ledger{
		store:     s,
		clock:     opts.Clock,
		events:    opts.Events,
		pdr:       opts.PDR,
		logger:    opts.Logger,
		userLocks: newKeyedMutex(),
	}
	if l.clock == nil {
		l.clock = clock.System{}
	}
	if l.events == nil {
		l.events = events.Discard{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.pdr == nil {
		l.pdr = audit.NewPDRWriter(s, l.clock, l.logger)
	}
	return l
}

// StartParams describes a timer to start.
type StartParams struct {
	UserID      string `json:"user_id" validate:"notblank"`
	TaskID      string `json:"task_id,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	Description string `json:"description" validate:"notblank,max=2000"`
}

// StartTimer opens a new running entry for the user. Any entry the user
// already has running is closed first, at the same instant.
func (l *Ledger) StartTimer(ctx context.Context, p StartParams) (*models.TimeLogEntry, error) {
	p.Description = strings.TrimSpace(p.Description)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}

	unlock := l.userLocks.Lock(p.UserID)
	defer unlock()

	now := l.clock.Now()
	var stopped, started *models.TimeLogEntry

	err := l.store.RunInTx(ctx, func(tx *store.Tx) error {
		if p.TaskID != "" {
			task, err := tx.GetTask(ctx, p.TaskID)
			if err != nil {
				return err
			}
			if task == nil {
				return models.Validationf("task %s does not exist", p.TaskID)
			}
			if p.ProjectID == "" {
				p.ProjectID = task.ProjectID
			}
		}

		active, err := tx.ActiveTimeLog(ctx, p.UserID)
		if err != nil {
			return err
		}
		if active != nil {
			closeEntry(active, now)
			if err := tx.UpdateTimeLog(ctx, active); err != nil {
				return fmt.Errorf("close running timer: %w", err)
			}
			stopped = active
		}

		started = &models.TimeLogEntry{
			ID:             uuid.New().String(),
			UserID:         p.UserID,
			TaskID:         p.TaskID,
			ProjectID:      p.ProjectID,
			Description:    p.Description,
			StartTime:      now,
			IsActive:       true,
			ApprovalStatus: models.ApprovalPending,
			EditHistory:    []models.EditRecord{},
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.InsertTimeLog(ctx, started)
	})
	if err != nil {
		return nil, err
	}

	if stopped != nil {
		l.pdr.Record(ctx, "timer.stop", map[string]string{"time_log_id": stopped.ID, "user_id": p.UserID}, audit.OutcomeSuccess, stopped.ID, p.UserID, "auto-stopped by new timer")
		l.publish(events.TimerStopped, stopped, p.UserID, now, map[string]string{"auto_stopped": "true"})
	}
	l.pdr.Record(ctx, "timer.start", p, audit.OutcomeSuccess, started.ID, p.UserID, "")
	l.publish(events.TimerStarted, started, p.UserID, now, nil)
	return started, nil
}

// StopTimer closes a running entry.
func (l *Ledger) StopTimer(ctx context.Context, timeLogID string, who models.Identity) (*models.TimeLogEntry, error) {
	owner, err := l.ownerOf(ctx, timeLogID)
	if err != nil {
		return nil, err
	}
	unlock := l.userLocks.Lock(owner)
	defer unlock()

	now := l.clock.Now()
	var entry *models.TimeLogEntry
	err = l.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		if entry, err = l.loadForMutation(ctx, tx, timeLogID, who); err != nil {
			return err
		}
		if !entry.IsActive {
			return fmt.Errorf("time log %s is not running: %w", timeLogID, models.ErrInvalidState)
		}
		closeEntry(entry, now)
		return tx.UpdateTimeLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	l.pdr.Record(ctx, "timer.stop", map[string]string{"time_log_id": timeLogID, "user_id": who.UserID}, audit.OutcomeSuccess, timeLogID, who.UserID, "")
	l.publish(events.TimerStopped, entry, entry.UserID, now, nil)
	return entry, nil
}

// EntryChanges lists the fields an edit may change. Nil fields are left alone.
type EntryChanges struct {
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Description *string    `json:"description,omitempty"`
	TaskID      *string    `json:"task_id,omitempty"`
	ProjectID   *string    `json:"project_id,omitempty"`
	Invoiceable *bool      `json:"invoiceable,omitempty"`
}

// EditEntry applies changes to an entry after snapshotting its previous
// start, end, duration and description into the edit history. Edited entries
// are always marked manual, and an approved entry returns to pending.
func (l *Ledger) EditEntry(ctx context.Context, timeLogID string, editor models.Identity, changes EntryChanges) (*models.TimeLogEntry, error) {
	owner, err := l.ownerOf(ctx, timeLogID)
	if err != nil {
		return nil, err
	}
	unlock := l.userLocks.Lock(owner)
	defer unlock()

	now := l.clock.Now()
	var entry *models.TimeLogEntry
	err = l.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		if entry, err = l.loadForMutation(ctx, tx, timeLogID, editor); err != nil {
			return err
		}

		snapshot := models.EditRecord{
			ID:          uuid.New().String(),
			TimeLogID:   entry.ID,
			EditorID:    editor.UserID,
			EditedAt:    now,
			StartTime:   entry.StartTime,
			EndTime:     copyTime(entry.EndTime),
			Duration:    entry.Duration,
			Description: entry.Description,
		}

		if err := applyChanges(entry, changes, now); err != nil {
			return err
		}
		if changes.TaskID != nil && *changes.TaskID != "" {
			task, err := tx.GetTask(ctx, *changes.TaskID)
			if err != nil {
				return err
			}
			if task == nil {
				return models.Validationf("task %s does not exist", *changes.TaskID)
			}
		}

		var prev *models.EditRecord
		if n := len(entry.EditHistory); n > 0 {
			prev = &entry.EditHistory[n-1]
		}
		rec := audit.Seal(snapshot, prev)
		if err := tx.AppendEdit(ctx, &rec); err != nil {
			return err
		}
		if err := tx.UpdateTimeLog(ctx, entry); err != nil {
			return err
		}

		history := make([]models.EditRecord, 0, len(entry.EditHistory)+1)
		history = append(history, entry.EditHistory...)
		entry.EditHistory = append(history, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.pdr.Record(ctx, "timelog.edit", changes, audit.OutcomeSuccess, timeLogID, editor.UserID, "")
	l.publish(events.TimeLogEdited, entry, entry.UserID, now, map[string]string{"editor_id": editor.UserID})
	return entry, nil
}

// DeleteEntry removes an entry and its history.
func (l *Ledger) DeleteEntry(ctx context.Context, timeLogID string, who models.Identity) (bool, error) {
	var entry *models.TimeLogEntry
	err := l.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		if entry, err = l.loadForMutation(ctx, tx, timeLogID, who); err != nil {
			return err
		}
		deleted, err := tx.DeleteTimeLog(ctx, timeLogID)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("time log %s: %w", timeLogID, models.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	now := l.clock.Now()
	l.pdr.Record(ctx, "timelog.delete", map[string]string{"time_log_id": timeLogID}, audit.OutcomeSuccess, timeLogID, who.UserID, "")
	l.publish(events.TimeLogDeleted, entry, entry.UserID, now, nil)
	return true, nil
}

// ManualParams describes a closed entry recorded after the fact.
type ManualParams struct {
	UserID      string    `json:"user_id" validate:"notblank"`
	TaskID      string    `json:"task_id,omitempty"`
	ProjectID   string    `json:"project_id,omitempty"`
	Description string    `json:"description" validate:"notblank,max=2000"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
	Invoiceable bool      `json:"invoiceable"`
}

// CreateManualEntry records a closed, backfilled entry.
func (l *Ledger) CreateManualEntry(ctx context.Context, p ManualParams) (*models.TimeLogEntry, error) {
	p.Description = strings.TrimSpace(p.Description)
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	if p.EndTime.Before(p.StartTime) {
		return nil, models.Validationf("end_time is before start_time")
	}

	now := l.clock.Now()
	start, end := p.StartTime.UTC(), p.EndTime.UTC()
	entry := &models.TimeLogEntry{
		ID:             uuid.New().String(),
		UserID:         p.UserID,
		TaskID:         p.TaskID,
		ProjectID:      p.ProjectID,
		Description:    p.Description,
		StartTime:      start,
		EndTime:        &end,
		Duration:       durationSeconds(start, end),
		IsManualEntry:  true,
		ApprovalStatus: models.ApprovalPending,
		Invoiceable:    p.Invoiceable,
		EditHistory:    []models.EditRecord{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := l.store.RunInTx(ctx, func(tx *store.Tx) error {
		if p.TaskID != "" {
			task, err := tx.GetTask(ctx, p.TaskID)
			if err != nil {
				return err
			}
			if task == nil {
				return models.Validationf("task %s does not exist", p.TaskID)
			}
			if entry.ProjectID == "" {
				entry.ProjectID = task.ProjectID
			}
		}
		return tx.InsertTimeLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	l.pdr.Record(ctx, "timelog.manual", p, audit.OutcomeSuccess, entry.ID, p.UserID, "")
	return entry, nil
}

// Approve marks a closed entry approved for invoicing. Only admins approve.
func (l *Ledger) Approve(ctx context.Context, timeLogID string, who models.Identity) (*models.TimeLogEntry, error) {
	if !who.IsAdmin() {
		return nil, fmt.Errorf("approve time log: %w", models.ErrForbidden)
	}

	now := l.clock.Now()
	var entry *models.TimeLogEntry
	err := l.store.RunInTx(ctx, func(tx *store.Tx) error {
		var err error
		if entry, err = l.loadForMutation(ctx, tx, timeLogID, who); err != nil {
			return err
		}
		if entry.IsActive {
			return fmt.Errorf("time log %s is still running: %w", timeLogID, models.ErrInvalidState)
		}
		entry.ApprovalStatus = models.ApprovalApproved
		entry.UpdatedAt = now
		return tx.UpdateTimeLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	l.pdr.Record(ctx, "timelog.approve", map[string]string{"time_log_id": timeLogID}, audit.OutcomeSuccess, timeLogID, who.UserID, "")
	l.publish(events.TimeLogApproved, entry, entry.UserID, now, nil)
	return entry, nil
}

// Get returns an entry with its history, enforcing read ownership.
func (l *Ledger) Get(ctx context.Context, timeLogID string, who models.Identity) (*models.TimeLogEntry, error) {
	entry, err := l.store.GetTimeLog(ctx, timeLogID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("time log %s: %w", timeLogID, models.ErrNotFound)
	}
	if !who.CanActOn(entry.UserID) {
		return nil, fmt.Errorf("time log %s: %w", timeLogID, models.ErrForbidden)
	}
	return entry, nil
}

// ActiveTimer returns the user's running entry, or nil.
func (l *Ledger) ActiveTimer(ctx context.Context, userID string) (*models.TimeLogEntry, error) {
	return l.store.ActiveTimeLog(ctx, userID)
}

// List returns a user's entries whose start falls in [from, to]. Zero bounds
// are open.
func (l *Ledger) List(ctx context.Context, userID string, from, to time.Time) ([]models.TimeLogEntry, error) {
	return l.store.ListTimeLogs(ctx, store.TimeLogFilter{UserID: userID, From: from, To: to})
}

// VerifyHistory recomputes the hash chain of an entry's edit history.
func (l *Ledger) VerifyHistory(ctx context.Context, timeLogID string) error {
	entry, err := l.store.GetTimeLog(ctx, timeLogID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("time log %s: %w", timeLogID, models.ErrNotFound)
	}
	return audit.VerifyChain(timeLogID, entry.EditHistory)
}

func (l *Ledger) ownerOf(ctx context.Context, timeLogID string) (string, error) {
	entry, err := l.store.GetTimeLog(ctx, timeLogID)
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", fmt.Errorf("time log %s: %w", timeLogID, models.ErrNotFound)
	}
	return entry.UserID, nil
}

func (l *Ledger) loadForMutation(ctx context.Context, tx *store.Tx, timeLogID string, who models.Identity) (*models.TimeLogEntry, error) {
	entry, err := tx.GetTimeLog(ctx, timeLogID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("time log %s: %w", timeLogID, models.ErrNotFound)
	}
	if !who.CanActOn(entry.UserID) {
		return nil, fmt.Errorf("time log %s belongs to another user: %w", timeLogID, models.ErrForbidden)
	}
	return entry, nil
}

func (l *Ledger) publish(kind events.Kind, entry *models.TimeLogEntry, userID string, at time.Time, attrs map[string]string) {
	l.events.Publish(events.Event{
		Kind:      kind,
		SubjectID: entry.ID,
		UserID:    userID,
		At:        at,
		Payload:   *entry,
		Attrs:     attrs,
	})
}
