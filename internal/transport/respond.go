package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tallyhq/tally/internal/domain/rate"
	"github.com/tallyhq/tally/internal/domain/retainer"
	"github.com/tallyhq/tally/internal/domain/task"
	"github.com/tallyhq/tally/internal/domain/timelog"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes. Unknown errors are
// reported as 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	var transition *task.InvalidTransitionError
	switch {
	case errors.As(err, &transition):
		status = http.StatusConflict
		message = transition.Error()
	case errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, task.ErrMicroTaskNotFound),
		errors.Is(err, rate.ErrRecordNotFound),
		errors.Is(err, retainer.ErrBlockNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, task.ErrNotOwner):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, timelog.ErrConflictingTimer),
		errors.Is(err, timelog.ErrOnBreak),
		errors.Is(err, timelog.ErrNotOnBreak),
		errors.Is(err, retainer.ErrDebitContention):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, task.ErrInvalidInput),
		errors.Is(err, timelog.ErrInvalidInput),
		errors.Is(err, timelog.ErrSameTask),
		errors.Is(err, timelog.ErrNoOpenInterval),
		errors.Is(err, timelog.ErrInvalidCursor),
		errors.Is(err, rate.ErrInvalidInput),
		errors.Is(err, retainer.ErrInvalidInput):
		status = http.StatusBadRequest
		message = err.Error()
	}

	writeJSON(w, status, errorResponse{Error: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func identity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := IdentityFromContext(r.Context())
	if !ok || id.TenantID == "" {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return Identity{}, false
	}
	return id, true
}
