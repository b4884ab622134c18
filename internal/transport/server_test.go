package transport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/domain/presence"
	"github.com/tallyhq/tally/internal/domain/rate"
	"github.com/tallyhq/tally/internal/domain/retainer"
	"github.com/tallyhq/tally/internal/domain/task"
	"github.com/tallyhq/tally/internal/domain/timelog"
	"github.com/tallyhq/tally/internal/sqlite"
)

// newTestServer wires the full stack over an in-memory database.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	taskRepo := sqlite.NewTaskRepository(db)
	rateRepo := sqlite.NewRateRepository(db)
	retainerRepo := sqlite.NewRetainerRepository(db)
	presenceStore := sqlite.NewPresenceStore(db)
	timerRepo := sqlite.NewTimerRepository(db)

	taskSvc := task.NewService(taskRepo, logger)
	rateSvc := rate.NewService(rateRepo, logger)
	resolver := rate.NewResolver(rateRepo, logger)
	retainerSvc := retainer.NewService(retainerRepo, logger)
	presenceSvc := presence.NewService(presenceStore, logger)
	timerSvc := timelog.NewService(timerRepo, taskRepo, resolver, retainerSvc, presenceSvc, nil, logger)

	mux := NewServer(timerSvc, taskSvc, rateSvc, retainerSvc, presenceSvc, AuthMiddleware(testSecret), logger)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, server *httptest.Server, method, path, token string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestServer_Health(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_RequiresAuth(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, server, http.MethodPost, "/v1/tasks", "", map[string]any{"title": "x"}, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_TaskLifecycle(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, "u1", "tenant1")

	var created task.Task
	resp := doJSON(t, server, http.MethodPost, "/v1/tasks", token, map[string]any{
		"title":             "Write report",
		"billable":          true,
		"estimated_minutes": 60,
	}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, created.ID)
	require.Equal(t, task.StatusNotStarted, created.Status)

	var fetched task.Task
	resp = doJSON(t, server, http.MethodGet, "/v1/tasks/"+created.ID, token, nil, &fetched)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, created.ID, fetched.ID)

	// Another tenant cannot see the task.
	otherToken := signToken(t, "u1", "tenant2")
	resp = doJSON(t, server, http.MethodGet, "/v1/tasks/"+created.ID, otherToken, nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Another user cannot delete it.
	intruderToken := signToken(t, "u2", "tenant1")
	resp = doJSON(t, server, http.MethodDelete, "/v1/tasks/"+created.ID, intruderToken, nil, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, server, http.MethodDelete, "/v1/tasks/"+created.ID, token, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestServer_StepOrdering(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, "u1", "tenant1")

	var created task.Task
	doJSON(t, server, http.MethodPost, "/v1/tasks", token, map[string]any{"title": "Parent"}, &created)

	for _, title := range []string{"first", "second"} {
		resp := doJSON(t, server, http.MethodPost, "/v1/tasks/"+created.ID+"/steps", token,
			map[string]any{"title": title}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var steps []task.MicroTask
	resp := doJSON(t, server, http.MethodGet, "/v1/tasks/"+created.ID+"/steps", token, nil, &steps)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, steps, 2)
	require.Equal(t, "first", steps[0].Title)

	var next task.MicroTask
	resp = doJSON(t, server, http.MethodGet, "/v1/tasks/"+created.ID+"/steps/next", token, nil, &next)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, steps[0].ID, next.ID)

	resp = doJSON(t, server, http.MethodDelete, "/v1/steps/"+steps[0].ID, token, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, server, http.MethodGet, "/v1/tasks/"+created.ID+"/steps", token, nil, &steps)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, steps, 1)
	require.Equal(t, 0, steps[0].OrderIndex)
}

func TestServer_TimerFlow(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, "u1", "tenant1")

	var created task.Task
	doJSON(t, server, http.MethodPost, "/v1/tasks", token, map[string]any{
		"title":    "Timed work",
		"billable": true,
	}, &created)

	var started timelog.Result
	resp := doJSON(t, server, http.MethodPost, "/v1/timer/start", token,
		map[string]any{"task_id": created.ID}, &started)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, timelog.KindStart, started.Event.Kind)
	require.Equal(t, task.StatusInProgress, started.Task.Status)

	// A second start while the interval is open conflicts.
	var other task.Task
	doJSON(t, server, http.MethodPost, "/v1/tasks", token, map[string]any{"title": "Other"}, &other)
	resp = doJSON(t, server, http.MethodPost, "/v1/timer/start", token,
		map[string]any{"task_id": other.ID}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var paused timelog.Result
	resp = doJSON(t, server, http.MethodPost, "/v1/timer/pause", token,
		map[string]any{"task_id": created.ID, "reason": "lunch"}, &paused)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, task.StatusPaused, paused.Task.Status)

	// Pausing again: no open interval.
	resp = doJSON(t, server, http.MethodPost, "/v1/timer/pause", token,
		map[string]any{"task_id": created.ID}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var resumed timelog.Result
	resp = doJSON(t, server, http.MethodPost, "/v1/timer/resume", token,
		map[string]any{"task_id": created.ID}, &resumed)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stopped timelog.Result
	resp = doJSON(t, server, http.MethodPost, "/v1/timer/stop", token,
		map[string]any{"task_id": created.ID}, &stopped)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, task.StatusCompleted, stopped.Task.Status)

	// The log is visible through the cursor endpoint.
	var page struct {
		Events     []timelog.Event `json:"events"`
		NextCursor string          `json:"next_cursor"`
	}
	resp = doJSON(t, server, http.MethodGet, "/v1/timelog", token, nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, page.Events, 4)
	require.Equal(t, timelog.KindStart, page.Events[0].Kind)
	require.Equal(t, timelog.KindComplete, page.Events[3].Kind)
	require.NotEmpty(t, page.NextCursor)
}

func TestServer_BreakHoldsTimer(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, "u1", "tenant1")

	var a, b task.Task
	doJSON(t, server, http.MethodPost, "/v1/tasks", token, map[string]any{"title": "A"}, &a)
	doJSON(t, server, http.MethodPost, "/v1/tasks", token, map[string]any{"title": "B"}, &b)

	resp := doJSON(t, server, http.MethodPost, "/v1/timer/start", token,
		map[string]any{"task_id": a.ID}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, server, http.MethodPost, "/v1/timer/break/start", token,
		map[string]any{"task_id": a.ID}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The break closed A's interval but the timer stays claimed: another task
	// cannot start until break/end (or switch).
	resp = doJSON(t, server, http.MethodPost, "/v1/timer/start", token,
		map[string]any{"task_id": b.ID}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, server, http.MethodPost, "/v1/timer/pause", token,
		map[string]any{"task_id": a.ID}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Ending the break still works and releases the timer normally.
	resp = doJSON(t, server, http.MethodPost, "/v1/timer/break/end", token,
		map[string]any{"task_id": a.ID}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stopped timelog.Result
	resp = doJSON(t, server, http.MethodPost, "/v1/timer/stop", token,
		map[string]any{"task_id": a.ID}, &stopped)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, task.StatusCompleted, stopped.Task.Status)
}

func TestServer_TimerInvalidTransition(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, "u1", "tenant1")

	var created task.Task
	doJSON(t, server, http.MethodPost, "/v1/tasks", token, map[string]any{"title": "T"}, &created)

	// Pausing a not_started task is an invalid transition.
	resp := doJSON(t, server, http.MethodPost, "/v1/timer/pause", token,
		map[string]any{"task_id": created.ID}, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_RatesAndRetainers(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, "admin", "tenant1")

	var rec rate.Record
	resp := doJSON(t, server, http.MethodPost, "/v1/rates", token, map[string]any{
		"subject_id":     "u1",
		"rate_type":      "user_default",
		"rate_cents":     5000,
		"effective_date": "2026-01-01T00:00:00Z",
	}, &rec)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "admin", rec.CreatedBy)

	var history []rate.Record
	resp = doJSON(t, server, http.MethodGet, "/v1/rates/u1", token, nil, &history)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, history, 1)

	var block retainer.Block
	resp = doJSON(t, server, http.MethodPost, "/v1/retainers", token, map[string]any{
		"client_id":         "c1",
		"minutes_purchased": 600,
		"rate_cents":        10000,
		"start_date":        "2026-08-01T00:00:00Z",
	}, &block)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, retainer.StatusActive, block.Status)

	var blocks []retainer.Block
	resp = doJSON(t, server, http.MethodGet, "/v1/retainers?client_id=c1", token, nil, &blocks)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, blocks, 1)

	resp = doJSON(t, server, http.MethodGet, "/v1/retainers/"+block.ID, token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, server, http.MethodGet, "/v1/retainers/missing", token, nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Presence(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, "u1", "tenant1")

	// Unknown users read as offline rather than erroring.
	var p presence.Presence
	resp := doJSON(t, server, http.MethodGet, "/v1/presence/u2", token, nil, &p)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, presence.StatusOffline, p.Status)

	resp = doJSON(t, server, http.MethodPost, "/v1/presence/heartbeat", token, map[string]any{}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, server, http.MethodGet, "/v1/presence/u1", token, nil, &p)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, presence.StatusOnline, p.Status)
	require.True(t, p.Online)
}
