package presence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/domain/presence"
	"github.com/tallyhq/tally/internal/repository"
	"github.com/tallyhq/tally/internal/repository/mocks"
)

func TestPresenceService_Get_DefaultsOffline(t *testing.T) {
	ctx := context.Background()
	store := &mocks.PresenceStore{}
	store.On("Get", ctx, "tenant1", "u1").Return(nil, repository.ErrNotFound)

	svc := presence.NewService(store, nil)
	p, err := svc.Get(ctx, "tenant1", "u1")
	require.NoError(t, err, "an unknown user is offline, not an error")
	require.Equal(t, presence.StatusOffline, p.Status)
	require.Equal(t, presence.TimerStopped, p.TimerStatus)
	require.False(t, p.Online)
}

func TestPresenceService_Heartbeat_BringsOnline(t *testing.T) {
	ctx := context.Background()
	store := &mocks.PresenceStore{}
	store.On("Get", ctx, "tenant1", "u1").Return(nil, repository.ErrNotFound)

	var saved *presence.Presence
	store.On("Upsert", ctx, "tenant1", mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(2).(*presence.Presence) }).
		Return(nil)

	svc := presence.NewService(store, nil)
	require.NoError(t, svc.Heartbeat(ctx, "tenant1", "u1", nil))

	require.True(t, saved.Online)
	require.Equal(t, presence.StatusOnline, saved.Status)
	require.Nil(t, saved.IdleSince)
	require.False(t, saved.LastSeenAt.IsZero())
}

func TestPresenceService_Heartbeat_KeepsExplicitStatus(t *testing.T) {
	ctx := context.Background()
	store := &mocks.PresenceStore{}
	store.On("Get", ctx, "tenant1", "u1").Return(&presence.Presence{
		UserID: "u1", TenantID: "tenant1", Online: true, Status: presence.StatusBusy,
	}, nil)

	var saved *presence.Presence
	store.On("Upsert", ctx, "tenant1", mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(2).(*presence.Presence) }).
		Return(nil)

	svc := presence.NewService(store, nil)

	// No explicit status: busy stays busy.
	require.NoError(t, svc.Heartbeat(ctx, "tenant1", "u1", nil))
	require.Equal(t, presence.StatusBusy, saved.Status)

	// Explicit status wins.
	away := presence.StatusAway
	require.NoError(t, svc.Heartbeat(ctx, "tenant1", "u1", &away))
	require.Equal(t, presence.StatusAway, saved.Status)
}

func TestPresenceService_Heartbeat_WakesAwayUser(t *testing.T) {
	ctx := context.Background()
	idle := time.Now().UTC().Add(-time.Hour)
	store := &mocks.PresenceStore{}
	store.On("Get", ctx, "tenant1", "u1").Return(&presence.Presence{
		UserID: "u1", TenantID: "tenant1", Online: true,
		Status: presence.StatusAway, IdleSince: &idle,
	}, nil)

	var saved *presence.Presence
	store.On("Upsert", ctx, "tenant1", mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(2).(*presence.Presence) }).
		Return(nil)

	svc := presence.NewService(store, nil)
	require.NoError(t, svc.Heartbeat(ctx, "tenant1", "u1", nil))
	require.Equal(t, presence.StatusOnline, saved.Status)
	require.Nil(t, saved.IdleSince)
}

func TestPresenceService_TimerChanged_SwallowsStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := &mocks.PresenceStore{}
	store.On("Get", ctx, "tenant1", "u1").Return(nil, repository.ErrNotFound)
	store.On("Upsert", ctx, "tenant1", mock.Anything).Return(errors.New("store down"))

	svc := presence.NewService(store, nil)

	taskID := "t1"
	now := time.Now().UTC()
	// Must not panic or surface the error: presence is best-effort.
	svc.TimerChanged(ctx, "tenant1", "u1", presence.TimerUpdate{
		TimerStatus:    presence.TimerRunning,
		CurrentTaskID:  &taskID,
		TimerStartedAt: &now,
		At:             now,
	})
	store.AssertExpectations(t)
}

func TestPresenceService_TimerChanged_ProjectsTimerState(t *testing.T) {
	ctx := context.Background()
	store := &mocks.PresenceStore{}
	store.On("Get", ctx, "tenant1", "u1").Return(nil, repository.ErrNotFound)

	var saved *presence.Presence
	store.On("Upsert", ctx, "tenant1", mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(2).(*presence.Presence) }).
		Return(nil)

	svc := presence.NewService(store, nil)

	taskID := "t1"
	now := time.Now().UTC()
	svc.TimerChanged(ctx, "tenant1", "u1", presence.TimerUpdate{
		TimerStatus:    presence.TimerRunning,
		CurrentTaskID:  &taskID,
		TimerStartedAt: &now,
		At:             now,
	})

	require.Equal(t, presence.TimerRunning, saved.TimerStatus)
	require.Equal(t, "t1", *saved.CurrentTaskID)
	require.Equal(t, now, saved.LastSeenAt)
	require.True(t, saved.Online)
}

func TestPresenceService_SweepIdle(t *testing.T) {
	ctx := context.Background()
	store := &mocks.PresenceStore{}
	store.On("MarkIdle", ctx, mock.Anything, mock.Anything).Return(int64(3), nil)

	svc := presence.NewService(store, nil)
	n, err := svc.SweepIdle(ctx, 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	// The cutoff passed to the store is now minus the threshold.
	call := store.Calls[0]
	cutoff := call.Arguments.Get(1).(time.Time)
	now := call.Arguments.Get(2).(time.Time)
	require.Equal(t, 10*time.Minute, now.Sub(cutoff))
}
