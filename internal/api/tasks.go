package api

import (
	"net/http"
	"strings"

	"github.com/fentz26/worklog/internal/models"
	"github.com/fentz26/worklog/internal/store"
	"github.com/fentz26/worklog/internal/tasks"
)

// handleTasks handles POST /tasks and GET /tasks
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request, who models.Identity) {
	switch r.Method {
	case http.MethodPost:
		s.createTask(w, r, who)
	case http.MethodGet:
		s.listTasks(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTaskByID handles /tasks/{id}/*
func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request, who models.Identity) {
	taskID, action := splitPath(r.URL.Path, "/tasks/")
	if taskID == "" {
		badRequest(w, "task id required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getTask(w, r, taskID)
	case action == "" && r.Method == http.MethodPatch:
		s.updateTask(w, r, who, taskID)
	case action == "" && r.Method == http.MethodDelete:
		s.deleteTask(w, r, who, taskID)
	case action == "complete" && r.Method == http.MethodPost:
		s.completeTask(w, r, who, taskID)
	case action == "parent" && r.Method == http.MethodPut:
		s.setParent(w, r, who, taskID)
	case action == "dependencies" && r.Method == http.MethodGet:
		s.listDependencies(w, r, taskID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request, who models.Identity) {
	var req tasks.CreateParams
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}

	task, err := s.tasks.Create(r.Context(), who, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// listTasks returns a flat list, or nested trees with ?tree=true.
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.TaskFilter{
		OwnerID:   q.Get("owner"),
		Status:    models.TaskStatus(q.Get("status")),
		ProjectID: q.Get("project"),
		ParentID:  q.Get("parent"),
	}

	var (
		list []models.Task
		err  error
	)
	if tree := strings.ToLower(q.Get("tree")); tree == "true" || tree == "1" {
		list, err = s.tasks.Hierarchy(r.Context(), filter)
	} else {
		list, err = s.tasks.List(r.Context(), filter)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if list == nil {
		list = []models.Task{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, taskID string) {
	task, err := s.tasks.Get(r.Context(), taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request, who models.Identity, taskID string) {
	var req tasks.Patch
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}

	task, err := s.tasks.Update(r.Context(), who, taskID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request, who models.Identity, taskID string) {
	task, err := s.tasks.Complete(r.Context(), who, taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type setParentRequest struct {
	ParentID string `json:"parent_id"`
}

func (s *Server) setParent(w http.ResponseWriter, r *http.Request, who models.Identity, taskID string) {
	var req setParentRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}

	task, err := s.tasks.SetParent(r.Context(), who, taskID, req.ParentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request, who models.Identity, taskID string) {
	deleted, err := s.tasks.Delete(r.Context(), who, taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) listDependencies(w http.ResponseWriter, r *http.Request, taskID string) {
	edges, err := s.tasks.Dependencies(r.Context(), taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if edges == nil {
		edges = []models.DependencyEdge{}
	}
	writeJSON(w, http.StatusOK, edges)
}

// --- Dependency Handlers ---

type createDependencyRequest struct {
	TaskID          string `json:"task_id"`
	DependsOnTaskID string `json:"depends_on_task_id"`
}

// handleDependencies handles POST /dependencies
func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request, who models.Identity) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createDependencyRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.TaskID == "" || req.DependsOnTaskID == "" {
		badRequest(w, "task_id and depends_on_task_id are required")
		return
	}

	edge, err := s.tasks.AddDependency(r.Context(), who, req.TaskID, req.DependsOnTaskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, edge)
}

// handleDependencyByID handles DELETE /dependencies/{id}
func (s *Server) handleDependencyByID(w http.ResponseWriter, r *http.Request, who models.Identity) {
	edgeID, action := splitPath(r.URL.Path, "/dependencies/")
	if edgeID == "" || action != "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	deleted, err := s.tasks.RemoveDependency(r.Context(), who, edgeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}
