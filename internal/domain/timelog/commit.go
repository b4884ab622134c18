package timelog

import (
	"time"

	"github.com/tallyhq/tally/internal/domain/task"
)

// TaskDelta describes the cached-aggregate and status change a timer action
// applies to one macro task.
type TaskDelta struct {
	TaskID          string
	NewStatus       task.Status
	ActualMinutes   int64
	BillableMinutes int64
	EarningsCents   int64
	PausedAt        *time.Time
	PauseReason     *string
	ClearPause      bool
}

// MicroDelta describes the change a timer action applies to a micro task.
type MicroDelta struct {
	MicroTaskID    string
	NewStatus      *task.StepStatus
	ActualMinutes  int64
	BreakStartedAt *time.Time
	ClearBreak     bool
	BreakMinutes   int64
}

// Debit instructs the commit to consume retainer minutes with an optimistic
// version check.
type Debit struct {
	BlockID         string
	Minutes         int64
	ExpectedVersion int64
}

// Commit bundles everything a timer action writes: the appended event, task
// and micro task updates and an optional retainer debit. The repository
// applies the whole commit in one transaction; either all of it lands or
// none of it does.
type Commit struct {
	Event      *Event
	TaskDeltas []TaskDelta
	MicroDelta *MicroDelta
	Debit      *Debit
}
