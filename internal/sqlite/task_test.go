package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/domain/task"
	"github.com/tallyhq/tally/internal/repository"
)

func TestTaskRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewTaskRepository(db)
	now := time.Now().UTC()
	override := int64(7500)
	projectID := "proj-1"
	tk := &task.Task{
		ID:                "t1",
		TenantID:          "tenant1",
		UserID:            "u1",
		ProjectID:         &projectID,
		Title:             "Write report",
		Priority:          task.PriorityHigh,
		Status:            task.StatusNotStarted,
		Billable:          true,
		RateOverrideCents: &override,
		EstimatedMinutes:  120,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	require.NoError(t, repo.Create(ctx, "tenant1", tk))

	loaded, err := repo.Get(ctx, "tenant1", "t1")
	require.NoError(t, err)
	require.Equal(t, "tenant1", loaded.TenantID)
	require.Equal(t, tk.Title, loaded.Title)
	require.Equal(t, task.StatusNotStarted, loaded.Status)
	require.NotNil(t, loaded.RateOverrideCents)
	require.Equal(t, int64(7500), *loaded.RateOverrideCents)
	require.Nil(t, loaded.ClientID)
	require.Nil(t, loaded.PausedAt)
}

func TestTaskRepository_TenantIsolation(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertTask(t, db, "t1", "tenant1", "u1")

	repo := NewTaskRepository(db)
	_, err := repo.Get(ctx, "tenant2", "t1")
	require.Equal(t, repository.ErrNotFound, err)

	err = repo.Delete(ctx, "tenant2", "t1")
	require.Equal(t, repository.ErrNotFound, err)
}

func TestTaskRepository_DeleteCascadesMicro(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertTask(t, db, "t1", "tenant1", "u1")

	repo := NewTaskRepository(db)
	now := time.Now().UTC()
	require.NoError(t, repo.CreateMicro(ctx, "tenant1", &task.MicroTask{
		ID:        "m1",
		TenantID:  "tenant1",
		TaskID:    "t1",
		Title:     "Step one",
		Status:    task.StepNotStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	require.NoError(t, repo.Delete(ctx, "tenant1", "t1"))

	_, err := repo.GetMicro(ctx, "tenant1", "m1")
	require.Equal(t, repository.ErrNotFound, err)
}

func TestTaskRepository_MicroOrderMaintenance(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertTask(t, db, "t1", "tenant1", "u1")

	repo := NewTaskRepository(db)
	now := time.Now().UTC()
	for i, id := range []string{"m0", "m1", "m2"} {
		require.NoError(t, repo.CreateMicro(ctx, "tenant1", &task.MicroTask{
			ID:         id,
			TenantID:   "tenant1",
			TaskID:     "t1",
			OrderIndex: i,
			Title:      "Step " + id,
			Status:     task.StepNotStarted,
			CreatedAt:  now,
			UpdatedAt:  now,
		}))
	}

	// Insert at position 1: shift m1 and m2 up, then add the new step.
	require.NoError(t, repo.ShiftOrderIndices(ctx, "tenant1", "t1", 1, 1))
	require.NoError(t, repo.CreateMicro(ctx, "tenant1", &task.MicroTask{
		ID:         "mNew",
		TenantID:   "tenant1",
		TaskID:     "t1",
		OrderIndex: 1,
		Title:      "Inserted step",
		Status:     task.StepNotStarted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))

	micros, err := repo.ListMicro(ctx, "tenant1", "t1")
	require.NoError(t, err)
	require.Len(t, micros, 4)
	require.Equal(t, []string{"m0", "mNew", "m1", "m2"}, microIDs(micros))

	// Remove from the middle and renumber back to dense 0..n-1.
	require.NoError(t, repo.DeleteMicro(ctx, "tenant1", "mNew"))
	require.NoError(t, repo.Renumber(ctx, "tenant1", "t1"))

	micros, err = repo.ListMicro(ctx, "tenant1", "t1")
	require.NoError(t, err)
	require.Len(t, micros, 3)
	for i := range micros {
		require.Equal(t, i, micros[i].OrderIndex)
	}
}

func TestTaskRepository_MicroRequiresParent(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewTaskRepository(db)
	now := time.Now().UTC()
	err := repo.CreateMicro(ctx, "tenant1", &task.MicroTask{
		ID:        "m1",
		TenantID:  "tenant1",
		TaskID:    "missing",
		Title:     "Orphan",
		Status:    task.StepNotStarted,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.Equal(t, repository.ErrForeignKeyViolation, err)
}

func microIDs(micros []task.MicroTask) []string {
	ids := make([]string, len(micros))
	for i := range micros {
		ids[i] = micros[i].ID
	}
	return ids
}
