package transport

import (
	"net/http"
	"strconv"

	"github.com/tallyhq/tally/internal/domain/timelog"
)

type timelogResponse struct {
	Events     []timelog.Event `json:"events"`
	NextCursor string          `json:"next_cursor"`
}

// handleTimelog streams the caller's event log as cursor pages. Cursors are
// positions: a consumer that missed a fan-out message re-reads from its last
// cursor and loses nothing.
func (s *Server) handleTimelog(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	events, next, err := s.timers.EventsSince(r.Context(), id.TenantID, id.UserID, cursor, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []timelog.Event{}
	}
	writeJSON(w, http.StatusOK, timelogResponse{Events: events, NextCursor: next})
}

// handleTimelogReplay folds the caller's full event log from empty state and
// returns per-task totals, for verifying the cached aggregates.
func (s *Server) handleTimelogReplay(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	totals, err := s.timers.ReplayTotals(r.Context(), id.TenantID, id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}
