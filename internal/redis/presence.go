// Package redis provides a Redis-backed presence store. Rows live under a
// per-tenant key prefix with a TTL, so users whose process disappears fall
// off without a sweeper pass.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tallyhq/tally/internal/domain/presence"
	"github.com/tallyhq/tally/internal/repository"
)

const keyPrefix = "presence:"

// PresenceStore implements presence.Store on Redis
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewPresenceStore creates a new PresenceStore. ttl bounds how long a row
// outlives its last write; zero means rows never expire.
func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	return &PresenceStore{client: client, ttl: ttl}
}

func key(tenantID, userID string) string {
	return keyPrefix + tenantID + ":" + userID
}

// Get retrieves a user's presence row
func (s *PresenceStore) Get(ctx context.Context, tenantID, userID string) (*presence.Presence, error) {
	raw, err := s.client.Get(ctx, key(tenantID, userID)).Bytes()
	if err == goredis.Nil {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}

	var p presence.Presence
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode presence: %w", err)
	}
	return &p, nil
}

// Upsert writes a user's presence row, replacing any existing one
func (s *PresenceStore) Upsert(ctx context.Context, tenantID string, p *presence.Presence) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode presence: %w", err)
	}
	if err := s.client.Set(ctx, key(tenantID, p.UserID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to upsert presence: %w", err)
	}
	return nil
}

// MarkIdle scans all presence rows and flips online users not seen since the
// deadline to away. The scan is incremental; a large keyspace is walked in
// batches rather than blocking the server.
func (s *PresenceStore) MarkIdle(ctx context.Context, notSeenSince, now time.Time) (int64, error) {
	var flipped int64

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		raw, err := s.client.Get(ctx, k).Bytes()
		if err == goredis.Nil {
			continue
		}
		if err != nil {
			return flipped, fmt.Errorf("failed to get presence: %w", err)
		}

		var p presence.Presence
		if err := json.Unmarshal(raw, &p); err != nil {
			return flipped, fmt.Errorf("failed to decode presence: %w", err)
		}
		if !p.Online || p.Status != presence.StatusOnline || !p.LastSeenAt.Before(notSeenSince) {
			continue
		}

		idle := now
		p.Status = presence.StatusAway
		p.IdleSince = &idle
		updated, err := json.Marshal(&p)
		if err != nil {
			return flipped, fmt.Errorf("failed to encode presence: %w", err)
		}
		if err := s.client.Set(ctx, k, updated, goredis.KeepTTL).Err(); err != nil {
			return flipped, fmt.Errorf("failed to mark idle presence: %w", err)
		}
		flipped++
	}
	if err := iter.Err(); err != nil {
		return flipped, fmt.Errorf("failed to scan presence keys: %w", err)
	}
	return flipped, nil
}
