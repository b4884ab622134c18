package rate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tallyhq/tally/internal/repository"
)

// Resolver resolves the hourly rate effective for a user at a point in time.
// Precedence, highest to lowest: task override, project override, client
// default, user default, zero with a warning. A resolution is a function of
// its inputs only; records added later with later effective dates never
// change the answer for a historical timestamp.
type Resolver struct {
	rates  Repository
	logger *slog.Logger
}

// NewResolver creates a new rate resolver.
func NewResolver(rates Repository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{rates: rates, logger: logger}
}

// Resolve walks the precedence list and returns the first effective rate.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, req ResolveRequest) (Resolution, error) {
	if req.TaskOverrideCents != nil {
		return Resolution{RateCents: *req.TaskOverrideCents, Source: SourceTaskOverride}, nil
	}

	if req.ProjectID != nil {
		rec, err := r.findEffective(ctx, tenantID, *req.ProjectID, TypeProjectOverride, req)
		if err != nil {
			return Resolution{}, err
		}
		if rec != nil {
			return Resolution{RateCents: rec.RateCents, Source: SourceProjectOverride}, nil
		}
	}

	if req.ClientID != nil {
		rec, err := r.findEffective(ctx, tenantID, *req.ClientID, TypeClientDefault, req)
		if err != nil {
			return Resolution{}, err
		}
		if rec != nil {
			return Resolution{RateCents: rec.RateCents, Source: SourceClientDefault}, nil
		}
	}

	rec, err := r.findEffective(ctx, tenantID, req.UserID, TypeUserDefault, req)
	if err != nil {
		return Resolution{}, err
	}
	if rec != nil {
		return Resolution{RateCents: rec.RateCents, Source: SourceUserDefault}, nil
	}

	r.logger.Warn("no rate configured",
		"tenant_id", tenantID,
		"user_id", req.UserID,
		"at", req.At,
	)
	return Resolution{RateCents: 0, Source: SourceNone, Warning: WarningNoRateConfigured}, nil
}

func (r *Resolver) findEffective(ctx context.Context, tenantID, subjectID string, t Type, req ResolveRequest) (*Record, error) {
	rec, err := r.rates.FindEffective(ctx, tenantID, subjectID, t, req.At)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding effective %s rate: %w", t, err)
	}
	return rec, nil
}
