package retainer

import "time"

// Status represents the lifecycle status of a retainer block
type Status string

const (
	StatusActive    Status = "active"
	StatusExhausted Status = "exhausted"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Block represents a prepaid hours agreement. Balances are kept in integer
// minutes; hours appear only at the API boundary. MinutesUsed is monotonic
// and never exceeds MinutesPurchased. Version backs the optimistic
// read-modify-write on debits.
type Block struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenant_id"`
	ClientID         string     `json:"client_id"`
	ProjectID        *string    `json:"project_id,omitempty"`
	MinutesPurchased int64      `json:"minutes_purchased"`
	MinutesUsed      int64      `json:"minutes_used"`
	RateCents        int64      `json:"rate_cents"`
	StartDate        time.Time  `json:"start_date"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	Status           Status     `json:"status"`
	Version          int64      `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// RemainingMinutes returns the prepaid minutes still available.
func (b *Block) RemainingMinutes() int64 {
	remaining := b.MinutesPurchased - b.MinutesUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Covers reports whether the block's validity window contains the instant.
func (b *Block) Covers(at time.Time) bool {
	if at.Before(b.StartDate) {
		return false
	}
	if b.EndDate != nil && at.After(*b.EndDate) {
		return false
	}
	return true
}
