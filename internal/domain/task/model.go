package task

import "time"

// Status represents the lifecycle status of a macro task
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed from the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Priority represents task priority
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// StepStatus represents the lifecycle status of a micro task
type StepStatus string

const (
	StepNotStarted StepStatus = "not_started"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
)

// Task represents a unit of billable or non-billable work assigned to a user.
// The actual/billable/earnings fields are caches derived from the time log.
type Task struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	UserID            string     `json:"user_id"`
	ProjectID         *string    `json:"project_id,omitempty"`
	ClientID          *string    `json:"client_id,omitempty"`
	Title             string     `json:"title"`
	Priority          Priority   `json:"priority"`
	Status            Status     `json:"status"`
	Billable          bool       `json:"billable"`
	RateOverrideCents *int64     `json:"rate_override_cents,omitempty"`
	EstimatedMinutes  int64      `json:"estimated_minutes"`
	ActualMinutes     int64      `json:"actual_minutes"`
	BillableMinutes   int64      `json:"billable_minutes"`
	EarningsCents     int64      `json:"earnings_cents"`
	PausedAt          *time.Time `json:"paused_at,omitempty"`
	PauseReason       *string    `json:"pause_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// MicroTask represents an ordered sub-step of a macro task. Order indices are
// kept dense and unique per parent by the mutating operations. Break state is
// internal: it never changes the visible status but blocks duration accrual.
type MicroTask struct {
	ID               string     `json:"id"`
	TenantID         string     `json:"tenant_id"`
	TaskID           string     `json:"task_id"`
	OrderIndex       int        `json:"order_index"`
	Title            string     `json:"title"`
	Status           StepStatus `json:"status"`
	EstimatedMinutes int64      `json:"estimated_minutes"`
	ActualMinutes    int64      `json:"actual_minutes"`
	BreakStartedAt   *time.Time `json:"break_started_at,omitempty"`
	BreakMinutes     int64      `json:"break_minutes"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// OnBreak reports whether the micro task currently has an open break.
func (m *MicroTask) OnBreak() bool {
	return m.BreakStartedAt != nil
}
