package transport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallyhq/tally/internal/domain/presence"
	"github.com/tallyhq/tally/internal/domain/rate"
	"github.com/tallyhq/tally/internal/domain/retainer"
	"github.com/tallyhq/tally/internal/domain/task"
	"github.com/tallyhq/tally/internal/domain/timelog"
)

// Server wires HTTP handlers to the domain services.
type Server struct {
	timers    *timelog.Service
	tasks     *task.Service
	rates     *rate.Service
	retainers *retainer.Service
	presence  *presence.Service
	logger    *slog.Logger
}

// NewServer creates the HTTP router. Everything under /v1 requires a bearer
// token; /health does not.
func NewServer(
	timers *timelog.Service,
	tasks *task.Service,
	rates *rate.Service,
	retainers *retainer.Service,
	pres *presence.Service,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		timers:    timers,
		tasks:     tasks,
		rates:     rates,
		retainers: retainers,
		presence:  pres,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Get("/health", srv.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if authMiddleware != nil {
			r.Use(authMiddleware)
		}

		r.Route("/timer", func(r chi.Router) {
			r.Post("/start", srv.handleTimerStart)
			r.Post("/pause", srv.handleTimerPause)
			r.Post("/resume", srv.handleTimerResume)
			r.Post("/stop", srv.handleTimerStop)
			r.Post("/cancel", srv.handleTimerCancel)
			r.Post("/switch", srv.handleTimerSwitch)
			r.Post("/break/start", srv.handleBreakStart)
			r.Post("/break/end", srv.handleBreakEnd)
		})

		r.Get("/timelog", srv.handleTimelog)
		r.Get("/timelog/replay", srv.handleTimelogReplay)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", srv.handleTaskCreate)
			r.Get("/{taskID}", srv.handleTaskGet)
			r.Delete("/{taskID}", srv.handleTaskDelete)
			r.Post("/{taskID}/steps", srv.handleStepAdd)
			r.Get("/{taskID}/steps", srv.handleStepList)
			r.Get("/{taskID}/steps/next", srv.handleStepNext)
		})
		r.Delete("/steps/{stepID}", srv.handleStepRemove)

		r.Route("/rates", func(r chi.Router) {
			r.Post("/", srv.handleRateCreate)
			r.Get("/{subjectID}", srv.handleRateHistory)
		})

		r.Route("/retainers", func(r chi.Router) {
			r.Post("/", srv.handleRetainerCreate)
			r.Get("/", srv.handleRetainerList)
			r.Get("/{blockID}", srv.handleRetainerGet)
		})

		r.Route("/presence", func(r chi.Router) {
			r.Post("/heartbeat", srv.handleHeartbeat)
			r.Get("/{userID}", srv.handlePresenceGet)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
