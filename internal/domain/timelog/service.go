package timelog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/domain/presence"
	"github.com/tallyhq/tally/internal/domain/rate"
	"github.com/tallyhq/tally/internal/domain/task"
	"github.com/tallyhq/tally/internal/repository"
)

const commitAttempts = 3

// Service is the choke point for every timer action. It validates the action
// against the task state machine, appends exactly one event, settles the
// closed interval through the calculator and commits event, aggregates and
// retainer debit in one transaction. Elapsed time always comes from event
// timestamps, never from an in-memory clock.
type Service struct {
	events    TimerRepository
	tasks     TaskRepository
	rates     RateResolver
	retainers RetainerLedger
	monitor   PresenceMonitor
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewService creates a new timer service. monitor and publisher may be nil.
func NewService(
	events TimerRepository,
	tasks TaskRepository,
	rates RateResolver,
	retainers RetainerLedger,
	monitor PresenceMonitor,
	publisher EventPublisher,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		events:    events,
		tasks:     tasks,
		rates:     rates,
		retainers: retainers,
		monitor:   monitor,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		userLocks: make(map[string]*sync.Mutex),
	}
}

// Result is the outcome of a timer action: the appended event and the
// updated task aggregates.
type Result struct {
	Event           *Event     `json:"event"`
	Task            *task.Task `json:"task"`
	PreviousTask    *task.Task `json:"previous_task,omitempty"`
	Warning         string     `json:"warning,omitempty"`
	RetainerMinutes int64      `json:"retainer_minutes,omitempty"`
	DirectMinutes   int64      `json:"direct_minutes,omitempty"`
}

// StartRequest opens a work interval on a task.
type StartRequest struct {
	UserID      string
	TaskID      string
	MicroTaskID *string
	Note        *string
}

// PauseRequest closes the open interval and pauses the task.
type PauseRequest struct {
	UserID string
	TaskID string
	Reason *string
}

// ResumeRequest reopens a work interval on a paused task.
type ResumeRequest struct {
	UserID      string
	TaskID      string
	MicroTaskID *string
}

// StopRequest closes the open interval and completes the task.
type StopRequest struct {
	UserID string
	TaskID string
	Note   *string
}

// CancelRequest cancels the task, closing any open interval through the full
// calculator so no work time is lost from the audit trail.
type CancelRequest struct {
	UserID string
	TaskID string
	Reason *string
}

// SwitchRequest atomically closes the source task's interval and opens one on
// the target task with a single switch_task event.
type SwitchRequest struct {
	UserID     string
	FromTaskID string
	ToTaskID   string
}

// BreakRequest starts or ends a break on the task's open interval.
type BreakRequest struct {
	UserID string
	TaskID string
}

// Start opens a work interval. Starting while another task runs is rejected;
// the caller must switch explicitly.
func (s *Service) Start(ctx context.Context, tenantID string, req StartRequest) (*Result, error) {
	unlock := s.lockUser(tenantID, req.UserID)
	defer unlock()

	t, err := s.ownedTask(ctx, tenantID, req.UserID, req.TaskID)
	if err != nil {
		return nil, err
	}
	if _, err := task.Next(t.ID, t.Status, task.ActionStart); err != nil {
		return nil, err
	}
	if active, err := s.activeEvent(ctx, tenantID, req.UserID); err != nil {
		return nil, err
	} else if active != nil {
		return nil, ErrConflictingTimer
	}

	microDelta, err := s.microStartDelta(ctx, tenantID, t.ID, req.MicroTaskID)
	if err != nil {
		return nil, err
	}

	ts, err := s.stamp(ctx, tenantID, req.UserID)
	if err != nil {
		return nil, err
	}

	ev := s.newEvent(tenantID, req.UserID, KindStart, ts)
	ev.TaskID = &t.ID
	ev.MicroTaskID = req.MicroTaskID
	ev.Billable = t.Billable
	ev.Note = req.Note

	commit := &Commit{
		Event: ev,
		TaskDeltas: []TaskDelta{{
			TaskID:     t.ID,
			NewStatus:  task.StatusInProgress,
			ClearPause: true,
		}},
		MicroDelta: microDelta,
	}
	if err := s.events.CommitTimer(ctx, tenantID, commit); err != nil {
		return nil, fmt.Errorf("committing start: %w", err)
	}

	s.afterCommit(ctx, tenantID, req.UserID, ev, presence.TimerUpdate{
		TimerStatus:    presence.TimerRunning,
		CurrentTaskID:  &t.ID,
		TimerStartedAt: &ts,
		At:             ts,
	})
	return s.result(ctx, tenantID, ev, t.ID, nil)
}

// Resume reopens a work interval on a paused task.
func (s *Service) Resume(ctx context.Context, tenantID string, req ResumeRequest) (*Result, error) {
	unlock := s.lockUser(tenantID, req.UserID)
	defer unlock()

	t, err := s.ownedTask(ctx, tenantID, req.UserID, req.TaskID)
	if err != nil {
		return nil, err
	}
	if _, err := task.Next(t.ID, t.Status, task.ActionResume); err != nil {
		return nil, err
	}
	if active, err := s.activeEvent(ctx, tenantID, req.UserID); err != nil {
		return nil, err
	} else if active != nil {
		return nil, ErrConflictingTimer
	}

	microDelta, err := s.microStartDelta(ctx, tenantID, t.ID, req.MicroTaskID)
	if err != nil {
		return nil, err
	}

	ts, err := s.stamp(ctx, tenantID, req.UserID)
	if err != nil {
		return nil, err
	}

	ev := s.newEvent(tenantID, req.UserID, KindResume, ts)
	ev.TaskID = &t.ID
	ev.MicroTaskID = req.MicroTaskID
	ev.Billable = t.Billable

	commit := &Commit{
		Event: ev,
		TaskDeltas: []TaskDelta{{
			TaskID:     t.ID,
			NewStatus:  task.StatusInProgress,
			ClearPause: true,
		}},
		MicroDelta: microDelta,
	}
	if err := s.events.CommitTimer(ctx, tenantID, commit); err != nil {
		return nil, fmt.Errorf("committing resume: %w", err)
	}

	s.afterCommit(ctx, tenantID, req.UserID, ev, presence.TimerUpdate{
		TimerStatus:    presence.TimerRunning,
		CurrentTaskID:  &t.ID,
		TimerStartedAt: &ts,
		At:             ts,
	})
	return s.result(ctx, tenantID, ev, t.ID, nil)
}

// Pause closes the open interval and pauses the task.
func (s *Service) Pause(ctx context.Context, tenantID string, req PauseRequest) (*Result, error) {
	unlock := s.lockUser(tenantID, req.UserID)
	defer unlock()

	t, err := s.ownedTask(ctx, tenantID, req.UserID, req.TaskID)
	if err != nil {
		return nil, err
	}
	if _, err := task.Next(t.ID, t.Status, task.ActionPause); err != nil {
		return nil, err
	}
	open, err := s.openIntervalFor(ctx, tenantID, req.UserID, t.ID)
	if err != nil {
		return nil, err
	}

	ts, err := s.stamp(ctx, tenantID, req.UserID)
	if err != nil {
		return nil, err
	}

	return s.closeInterval(ctx, tenantID, t, open, closeSpec{
		kind:        KindPause,
		at:          ts,
		newStatus:   task.StatusPaused,
		pausedAt:    &ts,
		pauseReason: req.Reason,
		note:        req.Reason,
		presence: presence.TimerUpdate{
			TimerStatus:   presence.TimerPaused,
			CurrentTaskID: &t.ID,
			At:            ts,
		},
	})
}

// Stop closes the open interval and completes the task, locking its billable
// cache from further accrual.
func (s *Service) Stop(ctx context.Context, tenantID string, req StopRequest) (*Result, error) {
	unlock := s.lockUser(tenantID, req.UserID)
	defer unlock()

	t, err := s.ownedTask(ctx, tenantID, req.UserID, req.TaskID)
	if err != nil {
		return nil, err
	}
	if _, err := task.Next(t.ID, t.Status, task.ActionComplete); err != nil {
		return nil, err
	}
	open, err := s.openIntervalFor(ctx, tenantID, req.UserID, t.ID)
	if err != nil {
		return nil, err
	}

	ts, err := s.stamp(ctx, tenantID, req.UserID)
	if err != nil {
		return nil, err
	}

	completed := task.StepCompleted
	var microDelta *MicroDelta
	if open.MicroTaskID != nil {
		microDelta = &MicroDelta{
			MicroTaskID: *open.MicroTaskID,
			NewStatus:   &completed,
		}
	}

	return s.closeInterval(ctx, tenantID, t, open, closeSpec{
		kind:       KindComplete,
		at:         ts,
		newStatus:  task.StatusCompleted,
		note:       req.Note,
		microDelta: microDelta,
		presence: presence.TimerUpdate{
			TimerStatus: presence.TimerStopped,
			At:          ts,
		},
	})
}

// Cancel transitions the task to cancelled. An open interval still runs
// through the full calculator; a cancellation is an event, not a deletion.
func (s *Service) Cancel(ctx context.Context, tenantID string, req CancelRequest) (*Result, error) {
	unlock := s.lockUser(tenantID, req.UserID)
	defer unlock()

	t, err := s.ownedTask(ctx, tenantID, req.UserID, req.TaskID)
	if err != nil {
		return nil, err
	}
	if _, err := task.Next(t.ID, t.Status, task.ActionCancel); err != nil {
		return nil, err
	}

	last, err := s.lastTimerEvent(ctx, tenantID, req.UserID)
	if err != nil {
		return nil, err
	}
	ts, err := s.stamp(ctx, tenantID, req.UserID)
	if err != nil {
		return nil, err
	}

	if open := openOf(last); open != nil && open.TaskID != nil && *open.TaskID == t.ID {
		// Open work interval: settle it like any other closer.
		return s.closeInterval(ctx, tenantID, t, open, closeSpec{
			kind:      KindCancel,
			at:        ts,
			newStatus: task.StatusCancelled,
			note:      req.Reason,
			presence: presence.TimerUpdate{
				TimerStatus: presence.TimerStopped,
				At:          ts,
			},
		})
	}

	ev := s.newEvent(tenantID, req.UserID, KindCancel, ts)
	ev.TaskID = &t.ID
	ev.Billable = t.Billable
	ev.Note = req.Reason

	var microDelta *MicroDelta
	if last != nil && last.Kind == KindBreakStart && last.TaskID != nil && *last.TaskID == t.ID && last.MicroTaskID != nil {
		// Cancelling while on break closes the break on the micro task.
		breakMinutes, err := IntervalMinutes(last.Timestamp, ts)
		if err != nil {
			return nil, err
		}
		microDelta = &MicroDelta{
			MicroTaskID:  *last.MicroTaskID,
			ClearBreak:   true,
			BreakMinutes: breakMinutes,
		}
	}

	commit := &Commit{
		Event: ev,
		TaskDeltas: []TaskDelta{{
			TaskID:    t.ID,
			NewStatus: task.StatusCancelled,
		}},
		MicroDelta: microDelta,
	}
	if err := s.events.CommitTimer(ctx, tenantID, commit); err != nil {
		return nil, fmt.Errorf("committing cancel: %w", err)
	}

	s.afterCommit(ctx, tenantID, req.UserID, ev, presence.TimerUpdate{
		TimerStatus: presence.TimerStopped,
		At:          ts,
	})
	return s.result(ctx, tenantID, ev, t.ID, nil)
}

// Switch atomically closes the running task's interval and opens one on the
// target task, appending exactly one switch_task event referencing both.
func (s *Service) Switch(ctx context.Context, tenantID string, req SwitchRequest) (*Result, error) {
	if req.FromTaskID == req.ToTaskID {
		return nil, ErrSameTask
	}

	unlock := s.lockUser(tenantID, req.UserID)
	defer unlock()

	from, err := s.ownedTask(ctx, tenantID, req.UserID, req.FromTaskID)
	if err != nil {
		return nil, err
	}
	to, err := s.ownedTask(ctx, tenantID, req.UserID, req.ToTaskID)
	if err != nil {
		return nil, err
	}

	if _, err := task.Next(from.ID, from.Status, task.ActionPause); err != nil {
		return nil, err
	}
	toAction := task.ActionStart
	if to.Status == task.StatusPaused {
		toAction = task.ActionResume
	}
	if _, err := task.Next(to.ID, to.Status, toAction); err != nil {
		return nil, err
	}

	open, err := s.openIntervalFor(ctx, tenantID, req.UserID, from.ID)
	if err != nil {
		return nil, err
	}
	ts, err := s.stamp(ctx, tenantID, req.UserID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		settled, err := s.settle(ctx, tenantID, from, open.Timestamp, ts)
		if err != nil {
			return nil, err
		}

		ev := s.newEvent(tenantID, req.UserID, KindSwitchTask, ts)
		ev.TaskID = &to.ID
		ev.PreviousTaskID = &from.ID
		ev.DurationMinutes = &settled.minutes
		ev.RateCents = settled.rateCents
		ev.Billable = from.Billable

		switchReason := "switched task"
		commit := &Commit{
			Event: ev,
			TaskDeltas: []TaskDelta{
				{
					TaskID:          from.ID,
					NewStatus:       task.StatusPaused,
					ActualMinutes:   settled.minutes,
					BillableMinutes: settled.billableMinutes,
					EarningsCents:   settled.earningsCents,
					PausedAt:        &ts,
					PauseReason:     &switchReason,
				},
				{
					TaskID:     to.ID,
					NewStatus:  task.StatusInProgress,
					ClearPause: true,
				},
			},
			MicroDelta: microAccrual(open, settled.minutes),
			Debit:      settled.debit,
		}

		err = s.events.CommitTimer(ctx, tenantID, commit)
		if errors.Is(err, repository.ErrConflict) && attempt < commitAttempts-1 {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("committing switch: %w", err)
		}

		s.afterCommit(ctx, tenantID, req.UserID, ev, presence.TimerUpdate{
			TimerStatus:    presence.TimerRunning,
			CurrentTaskID:  &to.ID,
			TimerStartedAt: &ts,
			At:             ts,
		})

		res, err := s.result(ctx, tenantID, ev, to.ID, settled)
		if err != nil {
			return nil, err
		}
		prev, err := s.tasks.Get(ctx, tenantID, from.ID)
		if err != nil {
			return nil, fmt.Errorf("reloading previous task: %w", err)
		}
		res.PreviousTask = prev
		return res, nil
	}
}

// BreakStart closes the open work interval; break time never accrues as work.
func (s *Service) BreakStart(ctx context.Context, tenantID string, req BreakRequest) (*Result, error) {
	unlock := s.lockUser(tenantID, req.UserID)
	defer unlock()

	t, err := s.ownedTask(ctx, tenantID, req.UserID, req.TaskID)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusInProgress {
		return nil, &task.InvalidTransitionError{
			TaskID: t.ID, From: t.Status, Action: "break_start", Allowed: task.Allowed(t.Status),
		}
	}
	open, err := s.openIntervalFor(ctx, tenantID, req.UserID, t.ID)
	if err != nil {
		return nil, err
	}

	ts, err := s.stamp(ctx, tenantID, req.UserID)
	if err != nil {
		return nil, err
	}

	var microDelta *MicroDelta
	if open.MicroTaskID != nil {
		microDelta = &MicroDelta{
			MicroTaskID:    *open.MicroTaskID,
			BreakStartedAt: &ts,
		}
	}

	return s.closeInterval(ctx, tenantID, t, open, closeSpec{
		kind:       KindBreakStart,
		at:         ts,
		newStatus:  t.Status,
		microDelta: microDelta,
		presence: presence.TimerUpdate{
			TimerStatus:   presence.TimerPaused,
			CurrentTaskID: &t.ID,
			At:            ts,
		},
	})
}

// BreakEnd reopens the work interval after a break and records the break
// length on the micro task.
func (s *Service) BreakEnd(ctx context.Context, tenantID string, req BreakRequest) (*Result, error) {
	unlock := s.lockUser(tenantID, req.UserID)
	defer unlock()

	t, err := s.ownedTask(ctx, tenantID, req.UserID, req.TaskID)
	if err != nil {
		return nil, err
	}

	last, err := s.lastTimerEvent(ctx, tenantID, req.UserID)
	if err != nil {
		return nil, err
	}
	if last == nil || last.Kind != KindBreakStart || last.TaskID == nil || *last.TaskID != t.ID {
		return nil, ErrNotOnBreak
	}

	ts, err := s.stamp(ctx, tenantID, req.UserID)
	if err != nil {
		return nil, err
	}
	breakMinutes, err := IntervalMinutes(last.Timestamp, ts)
	if err != nil {
		return nil, err
	}

	ev := s.newEvent(tenantID, req.UserID, KindBreakEnd, ts)
	ev.TaskID = &t.ID
	ev.MicroTaskID = last.MicroTaskID
	ev.DurationMinutes = &breakMinutes
	ev.Billable = t.Billable

	var microDelta *MicroDelta
	if last.MicroTaskID != nil {
		microDelta = &MicroDelta{
			MicroTaskID:  *last.MicroTaskID,
			ClearBreak:   true,
			BreakMinutes: breakMinutes,
		}
	}

	commit := &Commit{
		Event: ev,
		TaskDeltas: []TaskDelta{{
			TaskID:    t.ID,
			NewStatus: t.Status,
		}},
		MicroDelta: microDelta,
	}
	if err := s.events.CommitTimer(ctx, tenantID, commit); err != nil {
		return nil, fmt.Errorf("committing break end: %w", err)
	}

	s.afterCommit(ctx, tenantID, req.UserID, ev, presence.TimerUpdate{
		TimerStatus:    presence.TimerRunning,
		CurrentTaskID:  &t.ID,
		TimerStartedAt: &ts,
		At:             ts,
	})
	return s.result(ctx, tenantID, ev, t.ID, nil)
}

// EventsSince returns a page of a user's events after an opaque cursor.
func (s *Service) EventsSince(ctx context.Context, tenantID, userID, cursor string, limit int) ([]Event, string, error) {
	afterSeq, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	events, err := s.events.EventsSince(ctx, tenantID, userID, afterSeq, limit)
	if err != nil {
		return nil, "", fmt.Errorf("reading events: %w", err)
	}

	next := cursor
	if len(events) > 0 {
		next = EncodeCursor(events[len(events)-1].Seq)
	}
	return events, next, nil
}

// ReplayTotals folds a user's full event log from empty state. Used to verify
// or rebuild the cached aggregates; the fold is deterministic.
func (s *Service) ReplayTotals(ctx context.Context, tenantID, userID string) (map[string]Totals, error) {
	events, err := s.events.ListUserEvents(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	return Replay(events), nil
}

// closeSpec describes how a closing action settles.
type closeSpec struct {
	kind        Kind
	at          time.Time
	newStatus   task.Status
	pausedAt    *time.Time
	pauseReason *string
	note        *string
	microDelta  *MicroDelta
	presence    presence.TimerUpdate
}

// settlement is the calculator's output for one closed interval.
type settlement struct {
	minutes         int64
	rateCents       *int64
	billableMinutes int64
	earningsCents   int64
	retainerMinutes int64
	directMinutes   int64
	warning         string
	debit           *Debit
}

// closeInterval settles the open interval and commits, retrying when a
// concurrent retainer debit invalidates the optimistic version.
func (s *Service) closeInterval(ctx context.Context, tenantID string, t *task.Task, open *Event, spec closeSpec) (*Result, error) {
	for attempt := 0; ; attempt++ {
		settled, err := s.settle(ctx, tenantID, t, open.Timestamp, spec.at)
		if err != nil {
			return nil, err
		}

		ev := s.newEvent(tenantID, open.UserID, spec.kind, spec.at)
		ev.TaskID = &t.ID
		ev.MicroTaskID = open.MicroTaskID
		ev.DurationMinutes = &settled.minutes
		ev.RateCents = settled.rateCents
		ev.Billable = t.Billable
		ev.Note = spec.note

		delta := TaskDelta{
			TaskID:          t.ID,
			NewStatus:       spec.newStatus,
			ActualMinutes:   settled.minutes,
			BillableMinutes: settled.billableMinutes,
			EarningsCents:   settled.earningsCents,
			PausedAt:        spec.pausedAt,
			PauseReason:     spec.pauseReason,
		}

		microDelta := spec.microDelta
		if accrual := microAccrual(open, settled.minutes); accrual != nil {
			if microDelta == nil {
				microDelta = accrual
			} else {
				microDelta.ActualMinutes += accrual.ActualMinutes
			}
		}

		commit := &Commit{
			Event:      ev,
			TaskDeltas: []TaskDelta{delta},
			MicroDelta: microDelta,
			Debit:      settled.debit,
		}

		err = s.events.CommitTimer(ctx, tenantID, commit)
		if errors.Is(err, repository.ErrConflict) && attempt < commitAttempts-1 {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("committing %s: %w", spec.kind, err)
		}

		s.afterCommit(ctx, tenantID, open.UserID, ev, spec.presence)
		return s.result(ctx, tenantID, ev, t.ID, settled)
	}
}

// settle runs the duration and earnings calculation for a closed interval.
// The rate resolves at the opening timestamp and holds for the whole
// interval; a mid-interval rate change never splits it.
func (s *Service) settle(ctx context.Context, tenantID string, t *task.Task, openTS, closeTS time.Time) (*settlement, error) {
	minutes, err := IntervalMinutes(openTS, closeTS)
	if err != nil {
		return nil, err
	}

	settled := &settlement{minutes: minutes}
	if !t.Billable {
		return settled, nil
	}

	resolution, err := s.rates.Resolve(ctx, tenantID, rate.ResolveRequest{
		UserID:            t.UserID,
		ProjectID:         t.ProjectID,
		ClientID:          t.ClientID,
		TaskOverrideCents: t.RateOverrideCents,
		At:                openTS,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving rate: %w", err)
	}

	rateCents := resolution.RateCents
	settled.rateCents = &rateCents
	settled.warning = resolution.Warning
	settled.billableMinutes = minutes
	settled.earningsCents = EarningsCents(minutes, rateCents)
	settled.directMinutes = minutes

	if t.ClientID != nil && minutes > 0 {
		block, err := s.retainers.FindActiveBlock(ctx, tenantID, *t.ClientID, t.ProjectID, openTS)
		if err != nil {
			return nil, err
		}
		if block != nil {
			fromRetainer, direct := SplitRetainer(minutes, block.RemainingMinutes())
			settled.retainerMinutes = fromRetainer
			settled.directMinutes = direct
			if fromRetainer > 0 {
				settled.debit = &Debit{
					BlockID:         block.ID,
					Minutes:         fromRetainer,
					ExpectedVersion: block.Version,
				}
			}
		}
	}

	return settled, nil
}

// microAccrual attributes the closed interval's minutes to the interval's
// micro task, skipping accrual while that micro task is on a break.
func microAccrual(open *Event, minutes int64) *MicroDelta {
	if open == nil || open.MicroTaskID == nil || minutes == 0 {
		return nil
	}
	inProgress := task.StepInProgress
	return &MicroDelta{
		MicroTaskID:   *open.MicroTaskID,
		NewStatus:     &inProgress,
		ActualMinutes: minutes,
	}
}

func (s *Service) microStartDelta(ctx context.Context, tenantID, taskID string, microID *string) (*MicroDelta, error) {
	if microID == nil {
		return nil, nil
	}
	m, err := s.tasks.GetMicro(ctx, tenantID, *microID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, task.ErrMicroTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting micro task: %w", err)
	}
	if m.TaskID != taskID {
		return nil, ErrInvalidInput
	}
	switch m.Status {
	case task.StepNotStarted:
		next, err := task.NextStep(m.ID, m.Status, task.ActionStart)
		if err != nil {
			return nil, err
		}
		return &MicroDelta{MicroTaskID: m.ID, NewStatus: &next}, nil
	case task.StepInProgress:
		return nil, nil
	default:
		_, err := task.NextStep(m.ID, m.Status, task.ActionStart)
		return nil, err
	}
}

func (s *Service) ownedTask(ctx context.Context, tenantID, userID, taskID string) (*task.Task, error) {
	t, err := s.tasks.Get(ctx, tenantID, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, task.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}
	if t.UserID != userID {
		return nil, task.ErrNotOwner
	}
	return t, nil
}

// stamp assigns the server timestamp, clamping to last+1ms when the clock
// reads at or before the user's last event so the log stays strictly ordered
// without rejecting legitimate concurrent requests.
func (s *Service) stamp(ctx context.Context, tenantID, userID string) (time.Time, error) {
	now := s.now()
	last, err := s.events.LastEvent(ctx, tenantID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return now, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading last event: %w", err)
	}
	if !now.After(last.Timestamp) {
		clamped := last.Timestamp.Add(time.Millisecond)
		s.logger.Info("clock skew clamped",
			"user_id", userID,
			"skew_ms", last.Timestamp.Sub(now).Milliseconds(),
		)
		return clamped, nil
	}
	return now, nil
}

func (s *Service) lastTimerEvent(ctx context.Context, tenantID, userID string) (*Event, error) {
	last, err := s.events.LastTimerEvent(ctx, tenantID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last timer event: %w", err)
	}
	return last, nil
}

// activeEvent returns the user's last timer event while a timer is still
// active: an open interval, or an unfinished break. A break closes the work
// interval but the timer stays claimed until break_end, so opening another
// task must go through break/end or switch.
func (s *Service) activeEvent(ctx context.Context, tenantID, userID string) (*Event, error) {
	last, err := s.lastTimerEvent(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if last != nil && last.Kind == KindBreakStart {
		return last, nil
	}
	return openOf(last), nil
}

func openOf(last *Event) *Event {
	if last != nil && last.Kind.Opens() {
		return last
	}
	return nil
}

// openIntervalFor returns the open interval for the task, distinguishing "on
// break" from "nothing open".
func (s *Service) openIntervalFor(ctx context.Context, tenantID, userID, taskID string) (*Event, error) {
	last, err := s.lastTimerEvent(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	open := openOf(last)
	if open == nil {
		if last != nil && last.Kind == KindBreakStart && last.TaskID != nil && *last.TaskID == taskID {
			return nil, ErrOnBreak
		}
		return nil, ErrNoOpenInterval
	}
	if open.TaskID == nil || *open.TaskID != taskID {
		return nil, ErrNoOpenInterval
	}
	return open, nil
}

func (s *Service) newEvent(tenantID, userID string, kind Kind, ts time.Time) *Event {
	return &Event{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		UserID:    userID,
		Kind:      kind,
		Timestamp: ts,
		CreatedAt: s.now(),
	}
}

func (s *Service) afterCommit(ctx context.Context, tenantID, userID string, ev *Event, update presence.TimerUpdate) {
	if s.monitor != nil {
		s.monitor.TimerChanged(ctx, tenantID, userID, update)
	}
	if s.publisher != nil {
		s.publisher.Publish(tenantID, ev)
	}
}

func (s *Service) result(ctx context.Context, tenantID string, ev *Event, taskID string, settled *settlement) (*Result, error) {
	t, err := s.tasks.Get(ctx, tenantID, taskID)
	if err != nil {
		return nil, fmt.Errorf("reloading task: %w", err)
	}
	res := &Result{Event: ev, Task: t}
	if settled != nil {
		res.Warning = settled.warning
		res.RetainerMinutes = settled.retainerMinutes
		res.DirectMinutes = settled.directMinutes
	}
	return res, nil
}

// lockUser serializes timer actions per user, upholding the one-open-interval
// and monotonic-timestamp invariants under concurrent requests.
func (s *Service) lockUser(tenantID, userID string) func() {
	key := tenantID + "/" + userID
	s.mu.Lock()
	lock, ok := s.userLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[key] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
