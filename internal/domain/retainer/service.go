package retainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/repository"
)

const debitAttempts = 3

// Service manages retainer blocks. Debit is the only mutator of minutes_used;
// it is an optimistic read-modify-write retried on version conflicts.
type Service struct {
	blocks Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new retainer service.
func NewService(blocks Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		blocks: blocks,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest describes a retainer block purchase.
type CreateRequest struct {
	ClientID         string
	ProjectID        *string
	MinutesPurchased int64
	RateCents        int64
	StartDate        time.Time
	EndDate          *time.Time
}

// CreateBlock records a prepaid hours agreement.
func (s *Service) CreateBlock(ctx context.Context, tenantID string, req CreateRequest) (*Block, error) {
	if strings.TrimSpace(req.ClientID) == "" {
		return nil, ErrInvalidInput
	}
	if req.MinutesPurchased <= 0 || req.RateCents < 0 || req.StartDate.IsZero() {
		return nil, ErrInvalidInput
	}
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		return nil, ErrInvalidInput
	}

	now := s.now()
	b := &Block{
		ID:               uuid.NewString(),
		TenantID:         tenantID,
		ClientID:         req.ClientID,
		ProjectID:        req.ProjectID,
		MinutesPurchased: req.MinutesPurchased,
		RateCents:        req.RateCents,
		StartDate:        req.StartDate.UTC(),
		EndDate:          req.EndDate,
		Status:           StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.blocks.Create(ctx, tenantID, b); err != nil {
		return nil, fmt.Errorf("creating retainer block: %w", err)
	}
	return b, nil
}

// Get retrieves a block.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Block, error) {
	b, err := s.blocks.Get(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting retainer block: %w", err)
	}
	return b, nil
}

// List returns a tenant's blocks, optionally filtered by client.
func (s *Service) List(ctx context.Context, tenantID string, clientID *string) ([]Block, error) {
	blocks, err := s.blocks.List(ctx, tenantID, clientID)
	if err != nil {
		return nil, fmt.Errorf("listing retainer blocks: %w", err)
	}
	return blocks, nil
}

// FindActiveBlock returns the earliest-expiring active block covering at, or
// nil when none exists. Earliest-expiring-first minimizes stranded hours.
func (s *Service) FindActiveBlock(ctx context.Context, tenantID, clientID string, projectID *string, at time.Time) (*Block, error) {
	b, err := s.blocks.FindActive(ctx, tenantID, clientID, projectID, at)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding active retainer block: %w", err)
	}
	return b, nil
}

// Debit consumes minutes from a block, clamped so minutes_used never exceeds
// minutes_purchased. The status recompute happens inside the same update.
func (s *Service) Debit(ctx context.Context, tenantID, blockID string, minutes int64) (*Block, error) {
	if minutes <= 0 {
		return nil, ErrInvalidInput
	}

	var lastErr error
	for attempt := 0; attempt < debitAttempts; attempt++ {
		b, err := s.Get(ctx, tenantID, blockID)
		if err != nil {
			return nil, err
		}

		updated, err := s.blocks.ApplyDebit(ctx, tenantID, blockID, minutes, b.Version)
		if errors.Is(err, repository.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("debiting retainer block: %w", err)
		}
		if updated.Status == StatusExhausted {
			s.logger.Info("retainer block exhausted",
				"tenant_id", tenantID,
				"block_id", blockID,
			)
		}
		return updated, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrDebitContention, lastErr)
}

// ExpireOutdated flips active blocks past their end date to expired.
func (s *Service) ExpireOutdated(ctx context.Context) (int64, error) {
	n, err := s.blocks.ExpireOutdated(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expiring retainer blocks: %w", err)
	}
	if n > 0 {
		s.logger.Info("retainer blocks expired", "count", n)
	}
	return n, nil
}
