package ledger

import (
	"strings"
	"time"

	"github.com/fentz26/worklog/internal/models"
)

// durationSeconds is floor(end - start) in whole seconds.
func durationSeconds(start, end time.Time) int64 {
	d := end.Sub(start)
	secs := int64(d / time.Second)
	if d%time.Second < 0 {
		secs--
	}
	return secs
}

// closeEntry stops a running entry at now. A start in the future (clock
// skew between writers) closes at the start instant.
func closeEntry(e *models.TimeLogEntry, now time.Time) {
	end := now
	if end.Before(e.StartTime) {
		end = e.StartTime
	}
	e.EndTime = &end
	e.Duration = durationSeconds(e.StartTime, end)
	e.IsActive = false
	e.UpdatedAt = now
}

func applyChanges(e *models.TimeLogEntry, c EntryChanges, now time.Time) error {
	if c.StartTime != nil {
		e.StartTime = c.StartTime.UTC()
	}
	if c.EndTime != nil {
		end := c.EndTime.UTC()
		e.EndTime = &end
		e.IsActive = false
	}
	if c.Description != nil {
		desc := strings.TrimSpace(*c.Description)
		if desc == "" {
			return models.Validationf("description is required")
		}
		e.Description = desc
	}
	if c.TaskID != nil {
		e.TaskID = *c.TaskID
	}
	if c.ProjectID != nil {
		e.ProjectID = *c.ProjectID
	}
	if c.Invoiceable != nil {
		e.Invoiceable = *c.Invoiceable
	}

	if e.EndTime != nil {
		if e.EndTime.Before(e.StartTime) {
			return models.Validationf("end_time is before start_time")
		}
		e.Duration = durationSeconds(e.StartTime, *e.EndTime)
	} else if e.StartTime.After(now) {
		return models.Validationf("running timer cannot start in the future")
	}

	e.IsManualEntry = true
	if e.ApprovalStatus == models.ApprovalApproved {
		e.ApprovalStatus = models.ApprovalPending
	}
	e.UpdatedAt = now
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
