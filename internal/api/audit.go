package api

import (
	"net/http"

	"github.com/fentz26/worklog/internal/models"
)

// handleAudit handles GET /audit?subject=<id>. Decision records span every
// user, so the trail is admin-only.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request, who models.Identity) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !who.IsAdmin() {
		s.writeError(w, r, models.ErrForbidden)
		return
	}
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		badRequest(w, "subject is required")
		return
	}

	entries, err := s.store.ListPDR(r.Context(), subject)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.PDREntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
