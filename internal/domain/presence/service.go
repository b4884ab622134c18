package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tallyhq/tally/internal/repository"
)

// Service maintains the best-effort liveness projection. Updates never fail a
// caller's request: a lost presence write costs nothing that cannot be
// rebuilt from the event log.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new presence service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a user's presence, defaulting to offline when no row exists.
func (s *Service) Get(ctx context.Context, tenantID, userID string) (*Presence, error) {
	p, err := s.store.Get(ctx, tenantID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &Presence{
			UserID:      userID,
			TenantID:    tenantID,
			Status:      StatusOffline,
			TimerStatus: TimerStopped,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting presence: %w", err)
	}
	return p, nil
}

// Heartbeat records a liveness signal carrying no task semantics.
func (s *Service) Heartbeat(ctx context.Context, tenantID, userID string, status *Status) error {
	p, err := s.Get(ctx, tenantID, userID)
	if err != nil {
		return err
	}

	now := s.now()
	p.Online = true
	p.LastSeenAt = now
	p.IdleSince = nil
	if status != nil {
		p.Status = *status
	} else if p.Status == StatusOffline || p.Status == StatusAway {
		p.Status = StatusOnline
	}

	if err := s.store.Upsert(ctx, tenantID, p); err != nil {
		return fmt.Errorf("recording heartbeat: %w", err)
	}
	return nil
}

// TimerChanged applies a timer state update as a side effect of a time log
// append. Failures are logged and swallowed; presence is informational.
func (s *Service) TimerChanged(ctx context.Context, tenantID, userID string, update TimerUpdate) {
	p, err := s.Get(ctx, tenantID, userID)
	if err != nil {
		s.logger.Warn("presence read failed", "user_id", userID, "error", err)
		return
	}

	p.Online = true
	p.Status = StatusOnline
	p.TimerStatus = update.TimerStatus
	p.CurrentTaskID = update.CurrentTaskID
	p.TimerStartedAt = update.TimerStartedAt
	p.LastSeenAt = update.At
	p.IdleSince = nil

	if err := s.store.Upsert(ctx, tenantID, p); err != nil {
		s.logger.Warn("presence update failed", "user_id", userID, "error", err)
	}
}

// SweepIdle marks users idle after the threshold of silence. It never touches
// timers: idleness is informational and must not act as a silent auto-pause.
func (s *Service) SweepIdle(ctx context.Context, threshold time.Duration) (int64, error) {
	now := s.now()
	n, err := s.store.MarkIdle(ctx, now.Add(-threshold), now)
	if err != nil {
		return 0, fmt.Errorf("marking idle users: %w", err)
	}
	if n > 0 {
		s.logger.Debug("marked users idle", "count", n)
	}
	return n, nil
}
