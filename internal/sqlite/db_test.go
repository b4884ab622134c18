package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/domain/task"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	// Verify all tables were created
	tables := []string{
		"tasks",
		"micro_tasks",
		"time_log_events",
		"rate_records",
		"retainer_blocks",
		"user_presence",
	}

	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}
}

// TestForeignKeys verifies that foreign key constraints are enabled
func TestForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	require.NoError(t, err)
	require.Equal(t, 1, enabled, "foreign keys not enabled")
}

// insertTask seeds a minimal macro task row for tests that need one
func insertTask(t *testing.T, db *DB, id, tenantID, userID string) {
	t.Helper()

	repo := NewTaskRepository(db)
	now := time.Now().UTC()
	err := repo.Create(context.Background(), tenantID, &task.Task{
		ID:        id,
		TenantID:  tenantID,
		UserID:    userID,
		Title:     "Task " + id,
		Priority:  task.PriorityMedium,
		Status:    task.StatusNotStarted,
		Billable:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
}
