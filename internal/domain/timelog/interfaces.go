package timelog

import (
	"context"
	"time"

	"github.com/tallyhq/tally/internal/domain/presence"
	"github.com/tallyhq/tally/internal/domain/rate"
	"github.com/tallyhq/tally/internal/domain/retainer"
	"github.com/tallyhq/tally/internal/domain/task"
)

// TimerRepository provides the append-only event log and the transactional
// commit of a timer action.
type TimerRepository interface {
	// LastEvent returns the user's most recent event of any kind, or
	// repository.ErrNotFound.
	LastEvent(ctx context.Context, tenantID, userID string) (*Event, error)
	// LastTimerEvent returns the user's most recent non-adjustment event,
	// which determines whether an interval is open.
	LastTimerEvent(ctx context.Context, tenantID, userID string) (*Event, error)
	// EventsSince returns up to limit events with Seq > afterSeq, ordered
	// by sequence.
	EventsSince(ctx context.Context, tenantID, userID string, afterSeq int64, limit int) ([]Event, error)
	// ListUserEvents returns a user's full ordered event sequence.
	ListUserEvents(ctx context.Context, tenantID, userID string) ([]Event, error)
	// CommitTimer applies a commit atomically. Returns
	// repository.ErrConflict when the debit's version check fails.
	CommitTimer(ctx context.Context, tenantID string, c *Commit) error
}

// TaskRepository provides task reads for timer validation.
type TaskRepository interface {
	Get(ctx context.Context, tenantID, id string) (*task.Task, error)
	GetMicro(ctx context.Context, tenantID, id string) (*task.MicroTask, error)
}

// RateResolver resolves the hourly rate for an interval's opening timestamp.
type RateResolver interface {
	Resolve(ctx context.Context, tenantID string, req rate.ResolveRequest) (rate.Resolution, error)
}

// RetainerLedger locates the retainer block active for a billing context.
type RetainerLedger interface {
	FindActiveBlock(ctx context.Context, tenantID, clientID string, projectID *string, at time.Time) (*retainer.Block, error)
}

// PresenceMonitor receives best-effort timer state updates.
type PresenceMonitor interface {
	TimerChanged(ctx context.Context, tenantID, userID string, update presence.TimerUpdate)
}

// EventPublisher fans appended events out to observers, best effort.
type EventPublisher interface {
	Publish(tenantID string, ev *Event)
}
