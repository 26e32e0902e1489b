package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/worklog/internal/models"
)

var base = time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()
	if err := s.InsertTask(ctx, newTask("t1", "alice", "")); err != nil {
		t.Fatalf("InsertTask failed: %v", err)
	}
	s.Close()

	// Migrations are idempotent and data survives.
	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	got, err := s.GetTask(ctx, "t1")
	if err != nil || got == nil {
		t.Fatalf("GetTask after reopen: %v, %v", got, err)
	}
}

func TestTaskCRUD(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	due := base.Add(48 * time.Hour)
	task := newTask("t1", "alice", "")
	task.DueAt = &due
	task.Links = []string{"https://example.com"}
	task.EstimatedHours = 2.5

	// Create
	if err := s.InsertTask(ctx, task); err != nil {
		t.Fatalf("InsertTask failed: %v", err)
	}

	// Get
	got, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Title != "task t1" {
		t.Errorf("Expected title 'task t1', got %s", got.Title)
	}
	if got.DueAt == nil || !got.DueAt.Equal(due) {
		t.Errorf("Expected due %v, got %v", due, got.DueAt)
	}
	if len(got.Links) != 1 || got.Links[0] != "https://example.com" {
		t.Errorf("Expected links round trip, got %v", got.Links)
	}
	if got.EstimatedHours != 2.5 {
		t.Errorf("Expected 2.5 estimated hours, got %v", got.EstimatedHours)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("Expected created_at %v, got %v", base, got.CreatedAt)
	}

	missing, err := s.GetTask(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil for missing task, got %v, %v", missing, err)
	}

	// Update
	got.Status = models.TaskStatusCompleted
	got.Completed = true
	if err := s.UpdateTask(ctx, got); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	got, _ = s.GetTask(ctx, "t1")
	if !got.Completed || got.Status != models.TaskStatusCompleted {
		t.Errorf("Expected completed task, got %+v", got)
	}

	if err := s.UpdateTask(ctx, newTask("ghost", "alice", "")); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound updating missing task, got %v", err)
	}
}

func TestListTasks_Filters(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	a := newTask("a", "alice", "")
	b := newTask("b", "bob", "a")
	b.AssigneeID = "alice"
	b.CreatedAt = base.Add(time.Minute)
	c := newTask("c", "bob", "")
	c.Status = models.TaskStatusCompleted
	c.ProjectID = "p1"
	c.CreatedAt = base.Add(2 * time.Minute)
	for _, task := range []*models.Task{a, b, c} {
		if err := s.InsertTask(ctx, task); err != nil {
			t.Fatalf("InsertTask failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter TaskFilter
		want   []string
	}{
		{"all", TaskFilter{}, []string{"a", "b", "c"}},
		{"owner or assignee", TaskFilter{OwnerID: "alice"}, []string{"a", "b"}},
		{"status", TaskFilter{Status: models.TaskStatusCompleted}, []string{"c"}},
		{"project", TaskFilter{ProjectID: "p1"}, []string{"c"}},
		{"parent", TaskFilter{ParentID: "a"}, []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := s.ListTasks(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTasks failed: %v", err)
			}
			if len(tasks) != len(tt.want) {
				t.Fatalf("Expected %d tasks, got %d", len(tt.want), len(tasks))
			}
			for i, id := range tt.want {
				if tasks[i].ID != id {
					t.Errorf("tasks[%d] = %s, want %s", i, tasks[i].ID, id)
				}
			}
		})
	}

	parent, err := s.ParentOf(ctx, "b")
	if err != nil || parent != "a" {
		t.Errorf("ParentOf(b) = %q, %v", parent, err)
	}
	parent, err = s.ParentOf(ctx, "missing")
	if err != nil || parent != "" {
		t.Errorf("ParentOf(missing) = %q, %v", parent, err)
	}
}

func TestDeleteTask_Cascades(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	for _, task := range []*models.Task{newTask("p", "alice", ""), newTask("c", "alice", "p"), newTask("o", "alice", "")} {
		if err := s.InsertTask(ctx, task); err != nil {
			t.Fatalf("InsertTask failed: %v", err)
		}
	}
	if err := s.InsertDependency(ctx, &models.DependencyEdge{ID: "e1", TaskID: "o", DependsOnTaskID: "p", CreatedAt: base}); err != nil {
		t.Fatalf("InsertDependency failed: %v", err)
	}
	entry := newEntry("l1", "alice", base, false)
	entry.TaskID = "p"
	if err := s.InsertTimeLog(ctx, entry); err != nil {
		t.Fatalf("InsertTimeLog failed: %v", err)
	}

	ok, err := s.DeleteTask(ctx, "p")
	if err != nil || !ok {
		t.Fatalf("DeleteTask = %v, %v", ok, err)
	}

	child, _ := s.GetTask(ctx, "c")
	if child.ParentTaskID != "" {
		t.Errorf("Expected child detached, parent = %s", child.ParentTaskID)
	}
	edge, _ := s.GetDependency(ctx, "e1")
	if edge != nil {
		t.Error("Expected dependency edge removed")
	}
	log, _ := s.GetTimeLog(ctx, "l1")
	if log == nil || log.TaskID != "" {
		t.Errorf("Expected time log kept and unlinked, got %+v", log)
	}

	ok, err = s.DeleteTask(ctx, "p")
	if err != nil || ok {
		t.Errorf("Second DeleteTask = %v, %v", ok, err)
	}
}

func TestDependencies(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.InsertTask(ctx, newTask(id, "alice", "")); err != nil {
			t.Fatalf("InsertTask failed: %v", err)
		}
	}
	edges := []models.DependencyEdge{
		{ID: "e1", TaskID: "b", DependsOnTaskID: "a", CreatedAt: base},
		{ID: "e2", TaskID: "c", DependsOnTaskID: "b", CreatedAt: base.Add(time.Second)},
	}
	for i := range edges {
		if err := s.InsertDependency(ctx, &edges[i]); err != nil {
			t.Fatalf("InsertDependency failed: %v", err)
		}
	}

	dup := models.DependencyEdge{ID: "e3", TaskID: "b", DependsOnTaskID: "a", CreatedAt: base}
	if err := s.InsertDependency(ctx, &dup); !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate edge, got %v", err)
	}

	deps, err := s.DependenciesOf(ctx, "c")
	if err != nil || len(deps) != 1 || deps[0] != "b" {
		t.Errorf("DependenciesOf(c) = %v, %v", deps, err)
	}

	found, err := s.FindDependency(ctx, "b", "a")
	if err != nil || found == nil || found.ID != "e1" {
		t.Errorf("FindDependency(b, a) = %+v, %v", found, err)
	}

	touching, err := s.ListDependencies(ctx, "b")
	if err != nil {
		t.Fatalf("ListDependencies failed: %v", err)
	}
	if len(touching) != 2 {
		t.Errorf("Expected 2 edges touching b, got %d", len(touching))
	}

	ok, err := s.DeleteDependency(ctx, "e1")
	if err != nil || !ok {
		t.Errorf("DeleteDependency = %v, %v", ok, err)
	}
	ok, _ = s.DeleteDependency(ctx, "e1")
	if ok {
		t.Error("Expected second delete to report false")
	}
}

func TestTimeLogs_OneActivePerUser(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.InsertTimeLog(ctx, newEntry("l1", "alice", base, true)); err != nil {
		t.Fatalf("InsertTimeLog failed: %v", err)
	}
	err := s.InsertTimeLog(ctx, newEntry("l2", "alice", base.Add(time.Minute), true))
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("Expected ErrConflict for second active entry, got %v", err)
	}

	// Other users and closed entries are unaffected.
	if err := s.InsertTimeLog(ctx, newEntry("l3", "bob", base, true)); err != nil {
		t.Fatalf("InsertTimeLog for bob failed: %v", err)
	}
	if err := s.InsertTimeLog(ctx, newEntry("l4", "alice", base.Add(-time.Hour), false)); err != nil {
		t.Fatalf("InsertTimeLog closed failed: %v", err)
	}

	active, err := s.ActiveTimeLog(ctx, "alice")
	if err != nil || active == nil || active.ID != "l1" {
		t.Fatalf("ActiveTimeLog = %+v, %v", active, err)
	}

	end := base.Add(30 * time.Minute)
	active.IsActive = false
	active.EndTime = &end
	active.Duration = 1800
	if err := s.UpdateTimeLog(ctx, active); err != nil {
		t.Fatalf("UpdateTimeLog failed: %v", err)
	}
	active, err = s.ActiveTimeLog(ctx, "alice")
	if err != nil || active != nil {
		t.Errorf("Expected no active entry, got %+v, %v", active, err)
	}
}

func TestListTimeLogs(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	for i, id := range []string{"l1", "l2", "l3"} {
		if err := s.InsertTimeLog(ctx, newEntry(id, "alice", base.Add(time.Duration(i)*24*time.Hour), i == 2)); err != nil {
			t.Fatalf("InsertTimeLog failed: %v", err)
		}
	}

	all, err := s.ListTimeLogs(ctx, TimeLogFilter{UserID: "alice"})
	if err != nil || len(all) != 3 {
		t.Fatalf("ListTimeLogs = %d, %v", len(all), err)
	}
	closed, _ := s.ListTimeLogs(ctx, TimeLogFilter{UserID: "alice", ClosedOnly: true})
	if len(closed) != 2 {
		t.Errorf("Expected 2 closed entries, got %d", len(closed))
	}
	ranged, _ := s.ListTimeLogs(ctx, TimeLogFilter{UserID: "alice", From: base.Add(time.Hour), To: base.Add(24 * time.Hour)})
	if len(ranged) != 1 || ranged[0].ID != "l2" {
		t.Errorf("Expected only l2 in range, got %v", ranged)
	}
	other, _ := s.ListTimeLogs(ctx, TimeLogFilter{UserID: "bob"})
	if len(other) != 0 {
		t.Errorf("Expected no entries for bob, got %d", len(other))
	}
}

func TestEditHistory_AppendOnly(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.InsertTimeLog(ctx, newEntry("l1", "alice", base, false)); err != nil {
		t.Fatalf("InsertTimeLog failed: %v", err)
	}
	rec := &models.EditRecord{
		ID: "r1", TimeLogID: "l1", Seq: 1, EditorID: "alice", EditedAt: base,
		StartTime: base, Duration: 60, Description: "before", PrevHash: "0", Hash: "h1",
	}
	if err := s.AppendEdit(ctx, rec); err != nil {
		t.Fatalf("AppendEdit failed: %v", err)
	}
	dup := *rec
	dup.ID = "r2"
	if err := s.AppendEdit(ctx, &dup); !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate seq, got %v", err)
	}

	_, err := s.db.ExecContext(ctx, `UPDATE time_log_edits SET description = 'after' WHERE id = 'r1'`)
	if err == nil {
		t.Fatal("Expected UPDATE on edit history to be rejected")
	}

	got, err := s.GetTimeLog(ctx, "l1")
	if err != nil {
		t.Fatalf("GetTimeLog failed: %v", err)
	}
	if len(got.EditHistory) != 1 || got.EditHistory[0].Description != "before" {
		t.Errorf("Expected untouched history, got %+v", got.EditHistory)
	}

	ok, err := s.DeleteTimeLog(ctx, "l1")
	if err != nil || !ok {
		t.Fatalf("DeleteTimeLog = %v, %v", ok, err)
	}
	edits, _ := s.ListEdits(ctx, "l1")
	if len(edits) != 0 {
		t.Errorf("Expected history removed with entry, got %d records", len(edits))
	}
}

func TestRunInTx_Rollback(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(tx *Tx) error {
		if err := tx.InsertTask(ctx, newTask("t1", "alice", "")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected fn error, got %v", err)
	}
	got, _ := s.GetTask(ctx, "t1")
	if got != nil {
		t.Error("Expected insert to be rolled back")
	}

	err = s.RunInTx(ctx, func(tx *Tx) error {
		return tx.InsertTask(ctx, newTask("t2", "alice", ""))
	})
	if err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}
	if got, _ := s.GetTask(ctx, "t2"); got == nil {
		t.Error("Expected committed task")
	}
}

func TestPDR(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	for i, outcome := range []string{"success", "rejected"} {
		pdr := &models.PDREntry{
			ID:         "p" + outcome,
			Action:     "dependency.create",
			InputsHash: "abc123",
			Outcome:    outcome,
			SubjectID:  "t1",
			ActorID:    "alice",
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		}
		if err := s.WritePDR(ctx, pdr); err != nil {
			t.Fatalf("WritePDR failed: %v", err)
		}
	}

	entries, err := s.ListPDR(ctx, "t1")
	if err != nil {
		t.Fatalf("ListPDR failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Outcome != "rejected" {
		t.Errorf("Expected newest first, got %+v", entries)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.Ping(ctx)
	if err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestMapBusy(t *testing.T) {
	if err := mapBusy(errors.New("database is locked (5) (SQLITE_BUSY)")); !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
	plain := errors.New("disk I/O error")
	if err := mapBusy(plain); err != plain {
		t.Errorf("Expected error passed through, got %v", err)
	}
	if mapBusy(nil) != nil {
		t.Error("Expected nil")
	}
	if !isNoRows(sql.ErrNoRows) {
		t.Error("Expected isNoRows(sql.ErrNoRows)")
	}
}

func newTestStore(t *testing.T) *Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

func newTask(id, owner, parent string) *models.Task {
	return &models.Task{
		ID:           id,
		Title:        "task " + id,
		Status:       models.TaskStatusPending,
		Priority:     models.PriorityMedium,
		OwnerID:      owner,
		ParentTaskID: parent,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

func newEntry(id, user string, start time.Time, active bool) *models.TimeLogEntry {
	e := &models.TimeLogEntry{
		ID:             id,
		UserID:         user,
		Description:    "work",
		StartTime:      start,
		IsActive:       active,
		ApprovalStatus: models.ApprovalPending,
		CreatedAt:      start,
		UpdatedAt:      start,
	}
	if !active {
		end := start.Add(time.Hour)
		e.EndTime = &end
		e.Duration = 3600
	}
	return e
}
