package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tallyhq/tally/internal/domain/rate"
)

type createRateRequest struct {
	SubjectID     string    `json:"subject_id"`
	Type          rate.Type `json:"rate_type"`
	RateCents     int64     `json:"rate_cents"`
	EffectiveDate time.Time `json:"effective_date"`
	Reason        *string   `json:"reason,omitempty"`
}

func (s *Server) handleRateCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body createRateRequest
	if !decodeBody(w, r, &body) {
		return
	}

	rec, err := s.rates.CreateRecord(r.Context(), id.TenantID, rate.CreateRequest{
		SubjectID:     body.SubjectID,
		Type:          body.Type,
		RateCents:     body.RateCents,
		EffectiveDate: body.EffectiveDate,
		CreatedBy:     id.UserID,
		Reason:        body.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleRateHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var typ *rate.Type
	if raw := r.URL.Query().Get("type"); raw != "" {
		t := rate.Type(raw)
		switch t {
		case rate.TypeUserDefault, rate.TypeProjectOverride, rate.TypeClientDefault:
			typ = &t
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid rate type"})
			return
		}
	}

	records, err := s.rates.History(r.Context(), id.TenantID, chi.URLParam(r, "subjectID"), typ)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []rate.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}
