package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallyhq/tally/internal/domain/presence"
)

type heartbeatRequest struct {
	Status *presence.Status `json:"status,omitempty"`
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body heartbeatRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Status != nil {
		switch *body.Status {
		case presence.StatusOnline, presence.StatusAway, presence.StatusBusy, presence.StatusOffline:
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid presence status"})
			return
		}
	}

	if err := s.presence.Heartbeat(r.Context(), id.TenantID, id.UserID, body.Status); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePresenceGet returns another user's presence within the same tenant.
// Presence is informational and tenant-visible; there is no owner check.
func (s *Server) handlePresenceGet(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	p, err := s.presence.Get(r.Context(), id.TenantID, chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
