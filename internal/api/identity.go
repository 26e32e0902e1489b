package api

import (
	"net/http"
	"strings"

	"github.com/fentz26/worklog/internal/models"
)

// Identity headers. Authentication happens in front of the daemon; the API
// trusts whatever the proxy or CLI puts here.
const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
)

type identityHandler func(w http.ResponseWriter, r *http.Request, who models.Identity)

func identityFrom(r *http.Request) (models.Identity, bool) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return models.Identity{}, false
	}
	role := models.RoleUser
	if strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderRole)), string(models.RoleAdmin)) {
		role = models.RoleAdmin
	}
	return models.Identity{UserID: userID, Role: role}, true
}

func (s *Server) withIdentity(h identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, ok := identityFrom(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing " + HeaderUserID + " header", Code: "unauthenticated"})
			return
		}
		h(w, r, who)
	}
}

// subjectUser resolves the ?user= query parameter. Users may only read their
// own data; admins may read anyone's.
func subjectUser(r *http.Request, who models.Identity) (string, bool) {
	user := r.URL.Query().Get("user")
	if user == "" {
		return who.UserID, true
	}
	return user, who.CanActOn(user)
}
