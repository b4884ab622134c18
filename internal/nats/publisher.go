// Package nats fans appended time log events out over NATS. Publishing is
// best effort: the event log is the source of truth and observers that miss
// a message can re-read from a cursor.
package nats

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tallyhq/tally/internal/domain/timelog"
)

// Connect dials the NATS server with reconnect handling
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// Publisher implements timelog.EventPublisher on a NATS connection
type Publisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewPublisher creates a new Publisher
func NewPublisher(nc *nats.Conn, logger *slog.Logger) *Publisher {
	return &Publisher{nc: nc, logger: logger}
}

// Subject returns the subject an event for the tenant and user goes out on
func Subject(tenantID, userID string) string {
	return "timelog." + tenantID + "." + userID
}

// Publish sends the event to the tenant's subject. Failures are logged and
// swallowed; a timer action never fails because an observer is unreachable.
func (p *Publisher) Publish(tenantID string, ev *timelog.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to encode event for publish", "error", err, "event_id", ev.ID)
		return
	}
	if err := p.nc.Publish(Subject(tenantID, ev.UserID), payload); err != nil {
		p.logger.Error("failed to publish event", "error", err, "event_id", ev.ID, "kind", ev.Kind)
	}
}
