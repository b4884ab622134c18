package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tallyhq/tally/internal/domain/presence"
	"github.com/tallyhq/tally/internal/repository"
)

// PresenceStore implements presence.Store for SQLite
type PresenceStore struct {
	db *DB
}

// NewPresenceStore creates a new PresenceStore
func NewPresenceStore(db *DB) *PresenceStore {
	return &PresenceStore{db: db}
}

// Get retrieves a user's presence row
func (s *PresenceStore) Get(ctx context.Context, tenantID, userID string) (*presence.Presence, error) {
	query := `
		SELECT
			tenant_id, user_id, online, status, current_task_id,
			timer_status, timer_started_at_ms, idle_since_ms, last_seen_ms
		FROM user_presence
		WHERE tenant_id = ? AND user_id = ?
	`

	var (
		p                presence.Presence
		currentTaskID    sql.NullString
		timerStartedAtMs sql.NullInt64
		idleSinceMs      sql.NullInt64
		lastSeenMs       int64
	)
	err := s.db.QueryRowContext(ctx, query, tenantID, userID).Scan(
		&p.TenantID,
		&p.UserID,
		&p.Online,
		&p.Status,
		&currentTaskID,
		&p.TimerStatus,
		&timerStartedAtMs,
		&idleSinceMs,
		&lastSeenMs,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}

	p.CurrentTaskID = stringPtr(currentTaskID)
	p.TimerStartedAt = fromMillisPtr(timerStartedAtMs)
	p.IdleSince = fromMillisPtr(idleSinceMs)
	p.LastSeenAt = fromMillis(lastSeenMs)
	return &p, nil
}

// Upsert writes a user's presence row, replacing any existing one
func (s *PresenceStore) Upsert(ctx context.Context, tenantID string, p *presence.Presence) error {
	query := `
		INSERT INTO user_presence (
			tenant_id, user_id, online, status, current_task_id,
			timer_status, timer_started_at_ms, idle_since_ms, last_seen_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET
			online = excluded.online,
			status = excluded.status,
			current_task_id = excluded.current_task_id,
			timer_status = excluded.timer_status,
			timer_started_at_ms = excluded.timer_started_at_ms,
			idle_since_ms = excluded.idle_since_ms,
			last_seen_ms = excluded.last_seen_ms
	`
	_, err := s.db.ExecContext(ctx, query,
		tenantID,
		p.UserID,
		p.Online,
		p.Status,
		nullString(p.CurrentTaskID),
		p.TimerStatus,
		toMillisPtr(p.TimerStartedAt),
		toMillisPtr(p.IdleSince),
		toMillis(p.LastSeenAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert presence: %w", err)
	}
	return nil
}

// MarkIdle flips online users not seen since the threshold to away and
// returns how many rows changed
func (s *PresenceStore) MarkIdle(ctx context.Context, notSeenSince, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_presence
		SET status = 'away', idle_since_ms = ?
		WHERE online = 1 AND status = 'online' AND last_seen_ms < ?
	`, toMillis(now), toMillis(notSeenSince))
	if err != nil {
		return 0, fmt.Errorf("failed to mark idle presence: %w", err)
	}
	return result.RowsAffected()
}
