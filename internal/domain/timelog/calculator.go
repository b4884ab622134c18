package timelog

import (
	"fmt"
	"time"
)

// All duration math is integer minutes; money is integer cents computed once
// per closed interval with a single half-up rounding. No floating point.

// IntervalMinutes returns the whole minutes between open and close.
func IntervalMinutes(open, close time.Time) (int64, error) {
	if close.Before(open) {
		return 0, fmt.Errorf("interval closes before it opens: %s < %s", close, open)
	}
	return int64(close.Sub(open) / time.Minute), nil
}

// EarningsCents computes minutes at an hourly rate, rounded half up to the
// cent.
func EarningsCents(minutes, rateCents int64) int64 {
	if minutes <= 0 || rateCents <= 0 {
		return 0
	}
	return (minutes*rateCents + 30) / 60
}

// SplitRetainer divides billable minutes between the remaining retainer
// balance and direct billing. The retainer share never exceeds the balance;
// the excess is never dropped.
func SplitRetainer(minutes, remainingMinutes int64) (fromRetainer, direct int64) {
	if minutes <= 0 {
		return 0, 0
	}
	if remainingMinutes <= 0 {
		return 0, minutes
	}
	if minutes <= remainingMinutes {
		return minutes, 0
	}
	return remainingMinutes, minutes - remainingMinutes
}

// Totals are the cached per-task aggregates derived from the event log.
type Totals struct {
	ActualMinutes   int64 `json:"actual_minutes"`
	BillableMinutes int64 `json:"billable_minutes"`
	EarningsCents   int64 `json:"earnings_cents"`
}

// Replay folds a user's ordered event sequence into per-task totals. The fold
// is deterministic: replaying a full log from empty state reproduces exactly
// what incremental folding accumulated. Break sub-intervals never count as
// work because work intervals close at break_start and reopen at break_end.
func Replay(events []Event) map[string]Totals {
	totals := make(map[string]Totals)
	for i := range events {
		ev := &events[i]
		if !ev.Kind.Closes() {
			continue
		}
		taskID := ev.IntervalTaskID()
		if taskID == nil || ev.DurationMinutes == nil {
			continue
		}
		minutes := *ev.DurationMinutes
		t := totals[*taskID]
		t.ActualMinutes += minutes
		if ev.Billable {
			t.BillableMinutes += minutes
			if ev.RateCents != nil {
				t.EarningsCents += EarningsCents(minutes, *ev.RateCents)
			}
		}
		totals[*taskID] = t
	}
	return totals
}
