package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tallyhq/tally/internal/domain/presence"
	"github.com/tallyhq/tally/internal/domain/rate"
	"github.com/tallyhq/tally/internal/domain/retainer"
	"github.com/tallyhq/tally/internal/domain/task"
	"github.com/tallyhq/tally/internal/domain/timelog"
)

// TaskRepository is a mock for task.Repository.
type TaskRepository struct {
	mock.Mock
}

func (m *TaskRepository) Create(ctx context.Context, tenantID string, t *task.Task) error {
	args := m.Called(ctx, tenantID, t)
	return args.Error(0)
}

func (m *TaskRepository) Get(ctx context.Context, tenantID, id string) (*task.Task, error) {
	args := m.Called(ctx, tenantID, id)
	if t, ok := args.Get(0).(*task.Task); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) Delete(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *TaskRepository) CreateMicro(ctx context.Context, tenantID string, mt *task.MicroTask) error {
	args := m.Called(ctx, tenantID, mt)
	return args.Error(0)
}

func (m *TaskRepository) GetMicro(ctx context.Context, tenantID, id string) (*task.MicroTask, error) {
	args := m.Called(ctx, tenantID, id)
	if mt, ok := args.Get(0).(*task.MicroTask); ok {
		return mt, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) ListMicro(ctx context.Context, tenantID, taskID string) ([]task.MicroTask, error) {
	args := m.Called(ctx, tenantID, taskID)
	if list, ok := args.Get(0).([]task.MicroTask); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TaskRepository) DeleteMicro(ctx context.Context, tenantID, id string) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *TaskRepository) ShiftOrderIndices(ctx context.Context, tenantID, taskID string, fromIndex, delta int) error {
	args := m.Called(ctx, tenantID, taskID, fromIndex, delta)
	return args.Error(0)
}

func (m *TaskRepository) Renumber(ctx context.Context, tenantID, taskID string) error {
	args := m.Called(ctx, tenantID, taskID)
	return args.Error(0)
}

// TimerRepository is a mock for timelog.TimerRepository.
type TimerRepository struct {
	mock.Mock
}

func (m *TimerRepository) LastEvent(ctx context.Context, tenantID, userID string) (*timelog.Event, error) {
	args := m.Called(ctx, tenantID, userID)
	if ev, ok := args.Get(0).(*timelog.Event); ok {
		return ev, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TimerRepository) LastTimerEvent(ctx context.Context, tenantID, userID string) (*timelog.Event, error) {
	args := m.Called(ctx, tenantID, userID)
	if ev, ok := args.Get(0).(*timelog.Event); ok {
		return ev, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TimerRepository) EventsSince(ctx context.Context, tenantID, userID string, afterSeq int64, limit int) ([]timelog.Event, error) {
	args := m.Called(ctx, tenantID, userID, afterSeq, limit)
	if list, ok := args.Get(0).([]timelog.Event); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TimerRepository) ListUserEvents(ctx context.Context, tenantID, userID string) ([]timelog.Event, error) {
	args := m.Called(ctx, tenantID, userID)
	if list, ok := args.Get(0).([]timelog.Event); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TimerRepository) CommitTimer(ctx context.Context, tenantID string, c *timelog.Commit) error {
	args := m.Called(ctx, tenantID, c)
	return args.Error(0)
}

// RateRepository is a mock for rate.Repository.
type RateRepository struct {
	mock.Mock
}

func (m *RateRepository) Create(ctx context.Context, tenantID string, rec *rate.Record) error {
	args := m.Called(ctx, tenantID, rec)
	return args.Error(0)
}

func (m *RateRepository) FindEffective(ctx context.Context, tenantID, subjectID string, t rate.Type, at time.Time) (*rate.Record, error) {
	args := m.Called(ctx, tenantID, subjectID, t, at)
	if rec, ok := args.Get(0).(*rate.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RateRepository) List(ctx context.Context, tenantID, subjectID string, t *rate.Type) ([]rate.Record, error) {
	args := m.Called(ctx, tenantID, subjectID, t)
	if list, ok := args.Get(0).([]rate.Record); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// RetainerRepository is a mock for retainer.Repository.
type RetainerRepository struct {
	mock.Mock
}

func (m *RetainerRepository) Create(ctx context.Context, tenantID string, b *retainer.Block) error {
	args := m.Called(ctx, tenantID, b)
	return args.Error(0)
}

func (m *RetainerRepository) Get(ctx context.Context, tenantID, id string) (*retainer.Block, error) {
	args := m.Called(ctx, tenantID, id)
	if b, ok := args.Get(0).(*retainer.Block); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RetainerRepository) List(ctx context.Context, tenantID string, clientID *string) ([]retainer.Block, error) {
	args := m.Called(ctx, tenantID, clientID)
	if list, ok := args.Get(0).([]retainer.Block); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RetainerRepository) FindActive(ctx context.Context, tenantID, clientID string, projectID *string, at time.Time) (*retainer.Block, error) {
	args := m.Called(ctx, tenantID, clientID, projectID, at)
	if b, ok := args.Get(0).(*retainer.Block); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RetainerRepository) ApplyDebit(ctx context.Context, tenantID, id string, minutes, expectedVersion int64) (*retainer.Block, error) {
	args := m.Called(ctx, tenantID, id, minutes, expectedVersion)
	if b, ok := args.Get(0).(*retainer.Block); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RetainerRepository) ExpireOutdated(ctx context.Context, asOf time.Time) (int64, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).(int64), args.Error(1)
}

// PresenceStore is a mock for presence.Store.
type PresenceStore struct {
	mock.Mock
}

func (m *PresenceStore) Get(ctx context.Context, tenantID, userID string) (*presence.Presence, error) {
	args := m.Called(ctx, tenantID, userID)
	if p, ok := args.Get(0).(*presence.Presence); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PresenceStore) Upsert(ctx context.Context, tenantID string, p *presence.Presence) error {
	args := m.Called(ctx, tenantID, p)
	return args.Error(0)
}

func (m *PresenceStore) MarkIdle(ctx context.Context, notSeenSince, now time.Time) (int64, error) {
	args := m.Called(ctx, notSeenSince, now)
	return args.Get(0).(int64), args.Error(1)
}

// RateResolver is a mock for timelog.RateResolver.
type RateResolver struct {
	mock.Mock
}

func (m *RateResolver) Resolve(ctx context.Context, tenantID string, req rate.ResolveRequest) (rate.Resolution, error) {
	args := m.Called(ctx, tenantID, req)
	return args.Get(0).(rate.Resolution), args.Error(1)
}

// RetainerLedger is a mock for timelog.RetainerLedger.
type RetainerLedger struct {
	mock.Mock
}

func (m *RetainerLedger) FindActiveBlock(ctx context.Context, tenantID, clientID string, projectID *string, at time.Time) (*retainer.Block, error) {
	args := m.Called(ctx, tenantID, clientID, projectID, at)
	if b, ok := args.Get(0).(*retainer.Block); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}
