package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tallyhq/tally/internal/domain/retainer"
)

type createRetainerRequest struct {
	ClientID         string     `json:"client_id"`
	ProjectID        *string    `json:"project_id,omitempty"`
	MinutesPurchased int64      `json:"minutes_purchased"`
	RateCents        int64      `json:"rate_cents"`
	StartDate        time.Time  `json:"start_date"`
	EndDate          *time.Time `json:"end_date,omitempty"`
}

func (s *Server) handleRetainerCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body createRetainerRequest
	if !decodeBody(w, r, &body) {
		return
	}

	b, err := s.retainers.CreateBlock(r.Context(), id.TenantID, retainer.CreateRequest{
		ClientID:         body.ClientID,
		ProjectID:        body.ProjectID,
		MinutesPurchased: body.MinutesPurchased,
		RateCents:        body.RateCents,
		StartDate:        body.StartDate,
		EndDate:          body.EndDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleRetainerList(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var clientID *string
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		clientID = &raw
	}

	blocks, err := s.retainers.List(r.Context(), id.TenantID, clientID)
	if err != nil {
		writeError(w, err)
		return
	}
	if blocks == nil {
		blocks = []retainer.Block{}
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (s *Server) handleRetainerGet(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	b, err := s.retainers.Get(r.Context(), id.TenantID, chi.URLParam(r, "blockID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
