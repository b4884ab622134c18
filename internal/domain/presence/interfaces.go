package presence

import (
	"context"
	"time"
)

// Store provides persistence for presence rows. Implementations exist for
// sqlite and redis; both are caches that can be rebuilt from the event log.
type Store interface {
	Get(ctx context.Context, tenantID, userID string) (*Presence, error)
	Upsert(ctx context.Context, tenantID string, p *Presence) error
	// MarkIdle flips users not seen since the deadline to away and records
	// idle_since. Returns how many users were flipped.
	MarkIdle(ctx context.Context, notSeenSince, now time.Time) (int64, error)
}
