package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallyhq/tally/internal/domain/task"
)

type createTaskRequest struct {
	ProjectID         *string       `json:"project_id,omitempty"`
	ClientID          *string       `json:"client_id,omitempty"`
	Title             string        `json:"title"`
	Priority          task.Priority `json:"priority,omitempty"`
	Billable          bool          `json:"billable"`
	RateOverrideCents *int64        `json:"rate_override_cents,omitempty"`
	EstimatedMinutes  int64         `json:"estimated_minutes"`
}

type addStepRequest struct {
	Title            string `json:"title"`
	EstimatedMinutes int64  `json:"estimated_minutes"`
	OrderIndex       *int   `json:"order_index,omitempty"`
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body createTaskRequest
	if !decodeBody(w, r, &body) {
		return
	}

	t, err := s.tasks.Create(r.Context(), id.TenantID, task.CreateRequest{
		UserID:            id.UserID,
		ProjectID:         body.ProjectID,
		ClientID:          body.ClientID,
		Title:             body.Title,
		Priority:          body.Priority,
		Billable:          body.Billable,
		RateOverrideCents: body.RateOverrideCents,
		EstimatedMinutes:  body.EstimatedMinutes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	t, err := s.tasks.Get(r.Context(), id.TenantID, chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := s.tasks.Delete(r.Context(), id.TenantID, id.UserID, chi.URLParam(r, "taskID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStepAdd(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body addStepRequest
	if !decodeBody(w, r, &body) {
		return
	}

	m, err := s.tasks.AddStep(r.Context(), id.TenantID, task.AddStepRequest{
		TaskID:           chi.URLParam(r, "taskID"),
		Title:            body.Title,
		EstimatedMinutes: body.EstimatedMinutes,
		OrderIndex:       body.OrderIndex,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleStepList(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	steps, err := s.tasks.ListSteps(r.Context(), id.TenantID, chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if steps == nil {
		steps = []task.MicroTask{}
	}
	writeJSON(w, http.StatusOK, steps)
}

func (s *Server) handleStepNext(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	next, err := s.tasks.NextStep(r.Context(), id.TenantID, chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if next == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handleStepRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := s.tasks.RemoveStep(r.Context(), id.TenantID, chi.URLParam(r, "stepID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
