package transport

import (
	"net/http"

	"github.com/tallyhq/tally/internal/domain/timelog"
)

type timerActionRequest struct {
	TaskID      string  `json:"task_id"`
	MicroTaskID *string `json:"micro_task_id,omitempty"`
	Note        *string `json:"note,omitempty"`
	Reason      *string `json:"reason,omitempty"`
}

type switchRequest struct {
	FromTaskID string `json:"from_task_id"`
	ToTaskID   string `json:"to_task_id"`
}

func (s *Server) handleTimerStart(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body timerActionRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.timers.Start(r.Context(), id.TenantID, timelog.StartRequest{
		UserID:      id.UserID,
		TaskID:      body.TaskID,
		MicroTaskID: body.MicroTaskID,
		Note:        body.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTimerPause(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body timerActionRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.timers.Pause(r.Context(), id.TenantID, timelog.PauseRequest{
		UserID: id.UserID,
		TaskID: body.TaskID,
		Reason: body.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTimerResume(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body timerActionRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.timers.Resume(r.Context(), id.TenantID, timelog.ResumeRequest{
		UserID:      id.UserID,
		TaskID:      body.TaskID,
		MicroTaskID: body.MicroTaskID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTimerStop(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body timerActionRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.timers.Stop(r.Context(), id.TenantID, timelog.StopRequest{
		UserID: id.UserID,
		TaskID: body.TaskID,
		Note:   body.Note,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTimerCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body timerActionRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.timers.Cancel(r.Context(), id.TenantID, timelog.CancelRequest{
		UserID: id.UserID,
		TaskID: body.TaskID,
		Reason: body.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTimerSwitch(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body switchRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.timers.Switch(r.Context(), id.TenantID, timelog.SwitchRequest{
		UserID:     id.UserID,
		FromTaskID: body.FromTaskID,
		ToTaskID:   body.ToTaskID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBreakStart(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body timerActionRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.timers.BreakStart(r.Context(), id.TenantID, timelog.BreakRequest{
		UserID: id.UserID,
		TaskID: body.TaskID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBreakEnd(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var body timerActionRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.timers.BreakEnd(r.Context(), id.TenantID, timelog.BreakRequest{
		UserID: id.UserID,
		TaskID: body.TaskID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
