package timelog

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Kind represents the type of a time log event
type Kind string

const (
	KindStart      Kind = "start"
	KindPause      Kind = "pause"
	KindResume     Kind = "resume"
	KindBreakStart Kind = "break_start"
	KindBreakEnd   Kind = "break_end"
	KindComplete   Kind = "complete"
	KindCancel     Kind = "cancel"
	KindSwitchTask Kind = "switch_task"
	// KindAdjustment is a compensating correction append. Events are never
	// updated or deleted; corrections are new events.
	KindAdjustment Kind = "adjustment"
)

// Opens reports whether the event kind opens a work interval. A switch_task
// event opens an interval for the task it references.
func (k Kind) Opens() bool {
	switch k {
	case KindStart, KindResume, KindBreakEnd, KindSwitchTask:
		return true
	}
	return false
}

// Closes reports whether the event kind closes a work interval. A switch_task
// event closes the interval of the previous task it references.
func (k Kind) Closes() bool {
	switch k {
	case KindPause, KindBreakStart, KindComplete, KindCancel, KindSwitchTask:
		return true
	}
	return false
}

// Event is an immutable, append-only record of a timer action. Timestamps are
// server-assigned and strictly increasing per user. DurationMinutes is set at
// write time on events that close an interval (for break_end, the length of
// the break). RateCents and Billable snapshot the billing context of the
// closed interval and are never recomputed.
type Event struct {
	ID              string    `json:"id"`
	Seq             int64     `json:"-"`
	TenantID        string    `json:"tenant_id"`
	UserID          string    `json:"user_id"`
	TaskID          *string   `json:"task_id,omitempty"`
	MicroTaskID     *string   `json:"micro_task_id,omitempty"`
	Kind            Kind      `json:"kind"`
	Timestamp       time.Time `json:"timestamp"`
	DurationMinutes *int64    `json:"duration_minutes,omitempty"`
	RateCents       *int64    `json:"rate_cents,omitempty"`
	Billable        bool      `json:"billable"`
	Note            *string   `json:"note,omitempty"`
	PreviousTaskID  *string   `json:"previous_task_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// IntervalTaskID returns the task the event's closed interval belongs to: the
// previous task for switch_task, the referenced task otherwise.
func (e *Event) IntervalTaskID() *string {
	if e.Kind == KindSwitchTask {
		return e.PreviousTaskID
	}
	return e.TaskID
}

// EncodeCursor encodes an event sequence number as an opaque cursor. Cursors
// are positions, not stream handles; a scan can restart from any of them.
func EncodeCursor(seq int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(seq, 10)))
}

// DecodeCursor decodes an opaque cursor. An empty cursor means the start of
// the log.
func DecodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	seq, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || seq < 0 {
		return 0, ErrInvalidCursor
	}
	return seq, nil
}
