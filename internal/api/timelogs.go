package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fentz26/worklog/internal/audit"
	"github.com/fentz26/worklog/internal/ledger"
	"github.com/fentz26/worklog/internal/models"
)

type startTimerRequest struct {
	TaskID      string `json:"task_id"`
	ProjectID   string `json:"project_id"`
	Description string `json:"description"`
}

// ActiveTimerResponse wraps the running entry, which may be absent.
type ActiveTimerResponse struct {
	Timer *models.TimeLogEntry `json:"timer"`
}

// VerifyResponse reports the outcome of an edit-history check.
type VerifyResponse struct {
	OK     bool   `json:"ok"`
	Seq    int    `json:"seq,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// handleTimers handles POST /timers
func (s *Server) handleTimers(w http.ResponseWriter, r *http.Request, who models.Identity) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req startTimerRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}

	entry, err := s.ledger.StartTimer(r.Context(), ledger.StartParams{
		UserID:      who.UserID,
		TaskID:      req.TaskID,
		ProjectID:   req.ProjectID,
		Description: req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleTimerByID handles GET /timers/active and POST /timers/{id}/stop
func (s *Server) handleTimerByID(w http.ResponseWriter, r *http.Request, who models.Identity) {
	id, action := splitPath(r.URL.Path, "/timers/")

	switch {
	case id == "active" && action == "" && r.Method == http.MethodGet:
		s.activeTimer(w, r, who)
	case id != "" && action == "stop" && r.Method == http.MethodPost:
		entry, err := s.ledger.StopTimer(r.Context(), id, who)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) activeTimer(w http.ResponseWriter, r *http.Request, who models.Identity) {
	user, ok := subjectUser(r, who)
	if !ok {
		s.writeError(w, r, models.ErrForbidden)
		return
	}
	entry, err := s.ledger.ActiveTimer(r.Context(), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActiveTimerResponse{Timer: entry})
}

// handleTimeLogs handles GET /time-logs and POST /time-logs (manual entry)
func (s *Server) handleTimeLogs(w http.ResponseWriter, r *http.Request, who models.Identity) {
	switch r.Method {
	case http.MethodGet:
		s.listTimeLogs(w, r, who)
	case http.MethodPost:
		s.createManualEntry(w, r, who)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleTimeLogByID handles /time-logs/{id}/*
func (s *Server) handleTimeLogByID(w http.ResponseWriter, r *http.Request, who models.Identity) {
	id, action := splitPath(r.URL.Path, "/time-logs/")
	if id == "" {
		badRequest(w, "time log id required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		entry, err := s.ledger.Get(r.Context(), id, who)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case action == "" && r.Method == http.MethodPatch:
		s.editEntry(w, r, who, id)
	case action == "" && r.Method == http.MethodDelete:
		deleted, err := s.ledger.DeleteEntry(r.Context(), id, who)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
	case action == "approve" && r.Method == http.MethodPost:
		entry, err := s.ledger.Approve(r.Context(), id, who)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case action == "verify" && r.Method == http.MethodGet:
		s.verifyHistory(w, r, who, id)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) listTimeLogs(w http.ResponseWriter, r *http.Request, who models.Identity) {
	user, ok := subjectUser(r, who)
	if !ok {
		s.writeError(w, r, models.ErrForbidden)
		return
	}
	from, err := parseTimeParam(r, "from")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	entries, err := s.ledger.List(r.Context(), user, from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.TimeLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) createManualEntry(w http.ResponseWriter, r *http.Request, who models.Identity) {
	var req ledger.ManualParams
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.UserID == "" {
		req.UserID = who.UserID
	}
	if !who.CanActOn(req.UserID) {
		s.writeError(w, r, models.ErrForbidden)
		return
	}

	entry, err := s.ledger.CreateManualEntry(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) editEntry(w http.ResponseWriter, r *http.Request, who models.Identity, id string) {
	var req ledger.EntryChanges
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}

	entry, err := s.ledger.EditEntry(r.Context(), id, who, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) verifyHistory(w http.ResponseWriter, r *http.Request, who models.Identity, id string) {
	// Read access is checked the same way as for GET.
	if _, err := s.ledger.Get(r.Context(), id, who); err != nil {
		s.writeError(w, r, err)
		return
	}

	err := s.ledger.VerifyHistory(r.Context(), id)
	var chainErr *audit.ChainError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, VerifyResponse{OK: true})
	case errors.As(err, &chainErr):
		s.logger.Warn("edit history failed verification", "time_log_id", id, "seq", chainErr.Seq, "reason", chainErr.Reason)
		writeJSON(w, http.StatusOK, VerifyResponse{OK: false, Seq: chainErr.Seq, Reason: chainErr.Reason})
	default:
		s.writeError(w, r, err)
	}
}

// handleStats handles GET /stats?user=&window=
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, who models.Identity) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := subjectUser(r, who)
	if !ok {
		s.writeError(w, r, models.ErrForbidden)
		return
	}

	window := 0
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(w, "window must be an integer")
			return
		}
		window = n
	}

	stats, err := s.stats.Stats(r.Context(), user, window)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New(name + " must be an RFC3339 timestamp")
	}
	return t, nil
}
