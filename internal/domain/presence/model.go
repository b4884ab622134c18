package presence

import "time"

// Status represents a user's presence status
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// TimerStatus represents the presence view of a user's timer
type TimerStatus string

const (
	TimerRunning TimerStatus = "running"
	TimerPaused  TimerStatus = "paused"
	TimerStopped TimerStatus = "stopped"
)

// Presence is the single liveness row per user. It is entirely derived state,
// rebuildable from timer events plus heartbeats, and never the source of
// truth for anything billed.
type Presence struct {
	UserID         string      `json:"user_id"`
	TenantID       string      `json:"tenant_id"`
	Online         bool        `json:"online"`
	Status         Status      `json:"status"`
	CurrentTaskID  *string     `json:"current_task_id,omitempty"`
	TimerStatus    TimerStatus `json:"timer_status"`
	TimerStartedAt *time.Time  `json:"timer_started_at,omitempty"`
	IdleSince      *time.Time  `json:"idle_since,omitempty"`
	LastSeenAt     time.Time   `json:"last_seen_at"`
}

// TimerUpdate carries the timer state change a time log append produces.
type TimerUpdate struct {
	TimerStatus    TimerStatus
	CurrentTaskID  *string
	TimerStartedAt *time.Time
	At             time.Time
}
