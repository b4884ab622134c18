package task_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/domain/task"
	"github.com/tallyhq/tally/internal/repository"
	"github.com/tallyhq/tally/internal/repository/mocks"
)

func TestTaskService_Create(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TaskRepository{}
	repo.On("Create", ctx, "tenant1", mock.Anything).Return(nil)

	svc := task.NewService(repo, nil)
	created, err := svc.Create(ctx, "tenant1", task.CreateRequest{
		UserID:           "u1",
		Title:            "Write report",
		Billable:         true,
		EstimatedMinutes: 60,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, task.StatusNotStarted, created.Status)
	require.Equal(t, task.PriorityMedium, created.Priority, "priority defaults to medium")
	require.Equal(t, "tenant1", created.TenantID)
}

func TestTaskService_Create_Validation(t *testing.T) {
	ctx := context.Background()
	svc := task.NewService(&mocks.TaskRepository{}, nil)

	cases := []task.CreateRequest{
		{UserID: "", Title: "x"},
		{UserID: "u1", Title: "  "},
		{UserID: "u1", Title: "x", EstimatedMinutes: -1},
		{UserID: "u1", Title: "x", Priority: "immediately"},
	}
	for _, req := range cases {
		_, err := svc.Create(ctx, "tenant1", req)
		require.ErrorIs(t, err, task.ErrInvalidInput)
	}

	negative := int64(-100)
	_, err := svc.Create(ctx, "tenant1", task.CreateRequest{
		UserID: "u1", Title: "x", RateOverrideCents: &negative,
	})
	require.ErrorIs(t, err, task.ErrInvalidInput)
}

func TestTaskService_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TaskRepository{}
	repo.On("Get", ctx, "tenant1", "missing").Return(nil, repository.ErrNotFound)

	svc := task.NewService(repo, nil)
	_, err := svc.Get(ctx, "tenant1", "missing")
	require.ErrorIs(t, err, task.ErrTaskNotFound)
}

func TestTaskService_Delete_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TaskRepository{}
	repo.On("Get", ctx, "tenant1", "t1").Return(&task.Task{ID: "t1", UserID: "u1"}, nil)

	svc := task.NewService(repo, nil)
	err := svc.Delete(ctx, "tenant1", "u2", "t1")
	require.ErrorIs(t, err, task.ErrNotOwner)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskService_AddStep_Append(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TaskRepository{}
	repo.On("Get", ctx, "tenant1", "t1").Return(&task.Task{ID: "t1", UserID: "u1"}, nil)
	repo.On("ListMicro", ctx, "tenant1", "t1").Return([]task.MicroTask{
		{ID: "m0", OrderIndex: 0},
		{ID: "m1", OrderIndex: 1},
	}, nil)
	repo.On("CreateMicro", ctx, "tenant1", mock.Anything).Return(nil)

	svc := task.NewService(repo, nil)
	m, err := svc.AddStep(ctx, "tenant1", task.AddStepRequest{TaskID: "t1", Title: "third"})
	require.NoError(t, err)
	require.Equal(t, 2, m.OrderIndex, "appends after the last step")
	require.Equal(t, task.StepNotStarted, m.Status)
	repo.AssertNotCalled(t, "ShiftOrderIndices", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskService_AddStep_InsertShifts(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TaskRepository{}
	repo.On("Get", ctx, "tenant1", "t1").Return(&task.Task{ID: "t1", UserID: "u1"}, nil)
	repo.On("ListMicro", ctx, "tenant1", "t1").Return([]task.MicroTask{
		{ID: "m0", OrderIndex: 0},
		{ID: "m1", OrderIndex: 1},
	}, nil)
	repo.On("ShiftOrderIndices", ctx, "tenant1", "t1", 1, 1).Return(nil)
	repo.On("CreateMicro", ctx, "tenant1", mock.Anything).Return(nil)

	svc := task.NewService(repo, nil)
	index := 1
	m, err := svc.AddStep(ctx, "tenant1", task.AddStepRequest{
		TaskID: "t1", Title: "middle", OrderIndex: &index,
	})
	require.NoError(t, err)
	require.Equal(t, 1, m.OrderIndex)
	repo.AssertExpectations(t)
}

func TestTaskService_AddStep_IndexOutOfRange(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TaskRepository{}
	repo.On("Get", ctx, "tenant1", "t1").Return(&task.Task{ID: "t1", UserID: "u1"}, nil)
	repo.On("ListMicro", ctx, "tenant1", "t1").Return([]task.MicroTask{}, nil)

	svc := task.NewService(repo, nil)
	index := 5
	_, err := svc.AddStep(ctx, "tenant1", task.AddStepRequest{
		TaskID: "t1", Title: "x", OrderIndex: &index,
	})
	require.ErrorIs(t, err, task.ErrInvalidInput)
}

func TestTaskService_RemoveStep_Renumbers(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TaskRepository{}
	repo.On("GetMicro", ctx, "tenant1", "m1").Return(&task.MicroTask{ID: "m1", TaskID: "t1"}, nil)
	repo.On("DeleteMicro", ctx, "tenant1", "m1").Return(nil)
	repo.On("Renumber", ctx, "tenant1", "t1").Return(nil)

	svc := task.NewService(repo, nil)
	require.NoError(t, svc.RemoveStep(ctx, "tenant1", "m1"))
	repo.AssertExpectations(t)
}

func TestTaskService_NextStep(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TaskRepository{}
	repo.On("Get", ctx, "tenant1", "t1").Return(&task.Task{ID: "t1", UserID: "u1"}, nil)
	repo.On("ListMicro", ctx, "tenant1", "t1").Return([]task.MicroTask{
		{ID: "m0", OrderIndex: 0, Status: task.StepCompleted},
		{ID: "m1", OrderIndex: 1, Status: task.StepInProgress},
		{ID: "m2", OrderIndex: 2, Status: task.StepNotStarted},
	}, nil)

	svc := task.NewService(repo, nil)
	next, err := svc.NextStep(ctx, "tenant1", "t1")
	require.NoError(t, err)
	require.Equal(t, "m1", next.ID, "first not-completed step by order index")
}

func TestTaskService_NextStep_AllDone(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TaskRepository{}
	repo.On("Get", ctx, "tenant1", "t1").Return(&task.Task{ID: "t1", UserID: "u1"}, nil)
	repo.On("ListMicro", ctx, "tenant1", "t1").Return([]task.MicroTask{
		{ID: "m0", OrderIndex: 0, Status: task.StepCompleted},
	}, nil)

	svc := task.NewService(repo, nil)
	next, err := svc.NextStep(ctx, "tenant1", "t1")
	require.NoError(t, err)
	require.Nil(t, next)
}
