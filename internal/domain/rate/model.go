package rate

import "time"

// Type represents the kind of subject a rate record applies to
type Type string

const (
	TypeUserDefault     Type = "user_default"
	TypeProjectOverride Type = "project_override"
	TypeClientDefault   Type = "client_default"
)

// Record represents a historical rate assignment. Multiple records may exist
// per (subject, type); at most one is active (nil end date) at a time, which
// the service enforces when creating records.
type Record struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	SubjectID     string     `json:"subject_id"`
	Type          Type       `json:"rate_type"`
	RateCents     int64      `json:"rate_cents"`
	EffectiveDate time.Time  `json:"effective_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	CreatedBy     string     `json:"created_by"`
	Reason        *string    `json:"reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Source identifies which precedence level produced a resolution
type Source string

const (
	SourceTaskOverride    Source = "task_override"
	SourceProjectOverride Source = "project_override"
	SourceClientDefault   Source = "client_default"
	SourceUserDefault     Source = "user_default"
	SourceNone            Source = "none"
)

// WarningNoRateConfigured is attached to a resolution when no rate record
// matched at any precedence level. The zero rate is returned rather than an
// error; non-billable and internal work is valid.
const WarningNoRateConfigured = "no_rate_configured"

// Resolution is the outcome of resolving the rate effective for a subject at
// a point in time.
type Resolution struct {
	RateCents int64  `json:"rate_cents"`
	Source    Source `json:"source"`
	Warning   string `json:"warning,omitempty"`
}

// ResolveRequest describes a rate lookup. TaskOverrideCents carries the
// per-task override, which wins over every record-based level.
type ResolveRequest struct {
	UserID            string
	ProjectID         *string
	ClientID          *string
	TaskOverrideCents *int64
	At                time.Time
}
