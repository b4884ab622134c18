package retainer

import (
	"context"
	"time"
)

// Repository provides persistence for retainer blocks.
type Repository interface {
	Create(ctx context.Context, tenantID string, b *Block) error
	Get(ctx context.Context, tenantID, id string) (*Block, error)
	List(ctx context.Context, tenantID string, clientID *string) ([]Block, error)
	// FindActive returns the earliest-expiring active block whose validity
	// window contains at, for the client and (when given) project.
	FindActive(ctx context.Context, tenantID, clientID string, projectID *string, at time.Time) (*Block, error)
	// ApplyDebit adds minutes to minutes_used, clamped to minutes_purchased,
	// and flips status to exhausted in the same statement when the block
	// fills. Returns repository.ErrConflict when expectedVersion is stale.
	ApplyDebit(ctx context.Context, tenantID, id string, minutes, expectedVersion int64) (*Block, error)
	// ExpireOutdated marks active blocks whose end date has passed as
	// expired and returns how many were flipped.
	ExpireOutdated(ctx context.Context, asOf time.Time) (int64, error)
}
