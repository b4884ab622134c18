package rate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service manages rate record history.
type Service struct {
	rates  Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new rate service.
func NewService(rates Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		rates:  rates,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest describes a rate record creation request.
type CreateRequest struct {
	SubjectID     string
	Type          Type
	RateCents     int64
	EffectiveDate time.Time
	CreatedBy     string
	Reason        *string
}

// CreateRecord assigns a new rate, ending the previously active record for
// the same subject and type as of the new effective date.
func (s *Service) CreateRecord(ctx context.Context, tenantID string, req CreateRequest) (*Record, error) {
	if strings.TrimSpace(req.SubjectID) == "" || strings.TrimSpace(req.CreatedBy) == "" {
		return nil, ErrInvalidInput
	}
	switch req.Type {
	case TypeUserDefault, TypeProjectOverride, TypeClientDefault:
	default:
		return nil, ErrInvalidInput
	}
	if req.RateCents < 0 || req.EffectiveDate.IsZero() {
		return nil, ErrInvalidInput
	}

	rec := &Record{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		SubjectID:     req.SubjectID,
		Type:          req.Type,
		RateCents:     req.RateCents,
		EffectiveDate: req.EffectiveDate.UTC(),
		CreatedBy:     req.CreatedBy,
		Reason:        req.Reason,
		CreatedAt:     s.now(),
	}
	if err := s.rates.Create(ctx, tenantID, rec); err != nil {
		return nil, fmt.Errorf("creating rate record: %w", err)
	}
	return rec, nil
}

// History returns the rate records for a subject, optionally filtered by type.
func (s *Service) History(ctx context.Context, tenantID, subjectID string, t *Type) ([]Record, error) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, ErrInvalidInput
	}
	recs, err := s.rates.List(ctx, tenantID, subjectID, t)
	if err != nil {
		return nil, fmt.Errorf("listing rate records: %w", err)
	}
	return recs, nil
}
