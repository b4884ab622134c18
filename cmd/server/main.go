package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/domain/presence"
	"github.com/tallyhq/tally/internal/domain/rate"
	"github.com/tallyhq/tally/internal/domain/retainer"
	"github.com/tallyhq/tally/internal/domain/task"
	"github.com/tallyhq/tally/internal/domain/timelog"
	tallynats "github.com/tallyhq/tally/internal/nats"
	"github.com/tallyhq/tally/internal/redis"
	"github.com/tallyhq/tally/internal/sqlite"
	"github.com/tallyhq/tally/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		logger.Error("failed to prepare database path", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	taskRepo := sqlite.NewTaskRepository(db)
	timerRepo := sqlite.NewTimerRepository(db)
	rateRepo := sqlite.NewRateRepository(db)
	retainerRepo := sqlite.NewRetainerRepository(db)

	presenceStore, err := newPresenceStore(cfg, db, logger)
	if err != nil {
		logger.Error("failed to set up presence store", "error", err)
		os.Exit(1)
	}

	var publisher timelog.EventPublisher
	if cfg.Events.NATSURL != "" {
		nc, err := tallynats.Connect(cfg.Events.NATSURL)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		publisher = tallynats.NewPublisher(nc, logger)
		logger.Info("event publishing enabled", "url", cfg.Events.NATSURL)
	}

	taskSvc := task.NewService(taskRepo, logger)
	rateSvc := rate.NewService(rateRepo, logger)
	resolver := rate.NewResolver(rateRepo, logger)
	retainerSvc := retainer.NewService(retainerRepo, logger)
	presenceSvc := presence.NewService(presenceStore, logger)
	timerSvc := timelog.NewService(timerRepo, taskRepo, resolver, retainerSvc, presenceSvc, publisher, logger)

	router := transport.NewServer(
		timerSvc, taskSvc, rateSvc, retainerSvc, presenceSvc,
		transport.AuthMiddleware([]byte(cfg.Auth.Secret)),
		logger,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return runIdleSweeper(ctx, presenceSvc, cfg.Presence, logger)
	})

	g.Go(func() error {
		return runRetainerExpiry(ctx, retainerSvc, cfg.Retainer.ExpireInterval, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// runIdleSweeper periodically flips silent users to away. It only updates the
// presence projection; timers are untouched.
func runIdleSweeper(ctx context.Context, svc *presence.Service, cfg config.PresenceConfig, logger *slog.Logger) error {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := svc.SweepIdle(ctx, cfg.IdleThreshold); err != nil {
				logger.Warn("idle sweep failed", "error", err)
			}
		}
	}
}

// runRetainerExpiry periodically expires retainer blocks whose end date has
// passed, so stale blocks stop matching active lookups between debits.
func runRetainerExpiry(ctx context.Context, svc *retainer.Service, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := svc.ExpireOutdated(ctx); err != nil {
				logger.Warn("retainer expiry failed", "error", err)
			}
		}
	}
}

func newPresenceStore(cfg config.Config, db *sqlite.DB, logger *slog.Logger) (presence.Store, error) {
	switch cfg.Presence.Backend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("pinging redis: %w", err)
		}
		logger.Info("presence store", "backend", "redis", "addr", cfg.Redis.Addr)
		return redis.NewPresenceStore(client, cfg.Redis.TTL), nil
	default:
		logger.Info("presence store", "backend", "sqlite")
		return sqlite.NewPresenceStore(db), nil
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
