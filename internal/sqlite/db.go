package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema. Instants are stored as integer unix
// milliseconds so range comparisons in SQL are exact.
func (db *DB) RunMigrations() error {
	migration := `
-- Macro tasks. actual/billable/earnings columns are caches derived from the
-- time log; the log is the source of truth.
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    project_id TEXT,
    client_id TEXT,
    title TEXT NOT NULL,
    priority TEXT NOT NULL CHECK(priority IN ('low', 'medium', 'high', 'urgent')),
    status TEXT NOT NULL CHECK(status IN ('not_started', 'in_progress', 'paused', 'completed', 'cancelled')),
    billable INTEGER NOT NULL DEFAULT 0,
    rate_override_cents INTEGER,
    estimated_minutes INTEGER NOT NULL DEFAULT 0,
    actual_minutes INTEGER NOT NULL DEFAULT 0,
    billable_minutes INTEGER NOT NULL DEFAULT 0,
    earnings_cents INTEGER NOT NULL DEFAULT 0,
    paused_at_ms INTEGER,
    pause_reason TEXT,
    created_at_ms INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tenant_tasks ON tasks(tenant_id);
CREATE INDEX IF NOT EXISTS idx_user_tasks ON tasks(tenant_id, user_id);

-- Micro tasks. Order indices are kept dense by the mutating operations, not
-- by a stored constraint.
CREATE TABLE IF NOT EXISTS micro_tasks (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    task_id TEXT NOT NULL,
    order_index INTEGER NOT NULL,
    title TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('not_started', 'in_progress', 'completed')),
    estimated_minutes INTEGER NOT NULL DEFAULT 0,
    actual_minutes INTEGER NOT NULL DEFAULT 0,
    break_started_at_ms INTEGER,
    break_minutes INTEGER NOT NULL DEFAULT 0,
    created_at_ms INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL,
    FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_task_micro ON micro_tasks(task_id, order_index);

-- Append-only time log. Rows are never updated or deleted; corrections are
-- compensating events. seq is the per-store total order.
CREATE TABLE IF NOT EXISTS time_log_events (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    task_id TEXT,
    micro_task_id TEXT,
    kind TEXT NOT NULL CHECK(kind IN ('start', 'pause', 'resume', 'break_start', 'break_end', 'complete', 'cancel', 'switch_task', 'adjustment')),
    timestamp_ms INTEGER NOT NULL,
    duration_minutes INTEGER,
    rate_cents INTEGER,
    billable INTEGER NOT NULL DEFAULT 0,
    note TEXT,
    previous_task_id TEXT,
    created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_events ON time_log_events(tenant_id, user_id, seq);

-- Rate history. At most one record per (subject, type) has a null end_date;
-- the rate service enforces that on create, not a storage constraint.
CREATE TABLE IF NOT EXISTS rate_records (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    subject_id TEXT NOT NULL,
    rate_type TEXT NOT NULL CHECK(rate_type IN ('user_default', 'project_override', 'client_default')),
    rate_cents INTEGER NOT NULL,
    effective_ms INTEGER NOT NULL,
    end_ms INTEGER,
    created_by TEXT NOT NULL,
    reason TEXT,
    created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rate_subject ON rate_records(tenant_id, subject_id, rate_type);

-- Prepaid retainer blocks. version backs the optimistic debit.
CREATE TABLE IF NOT EXISTS retainer_blocks (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    client_id TEXT NOT NULL,
    project_id TEXT,
    minutes_purchased INTEGER NOT NULL,
    minutes_used INTEGER NOT NULL DEFAULT 0,
    rate_cents INTEGER NOT NULL,
    start_ms INTEGER NOT NULL,
    end_ms INTEGER,
    status TEXT NOT NULL CHECK(status IN ('active', 'exhausted', 'expired', 'cancelled')),
    version INTEGER NOT NULL DEFAULT 0,
    created_at_ms INTEGER NOT NULL,
    updated_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_client_blocks ON retainer_blocks(tenant_id, client_id, status);

-- Presence projection. One row per user; rebuildable from the event log.
CREATE TABLE IF NOT EXISTS user_presence (
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    online INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL CHECK(status IN ('online', 'away', 'busy', 'offline')),
    current_task_id TEXT,
    timer_status TEXT NOT NULL CHECK(timer_status IN ('running', 'paused', 'stopped')),
    timer_started_at_ms INTEGER,
    idle_since_ms INTEGER,
    last_seen_ms INTEGER NOT NULL,
    PRIMARY KEY (tenant_id, user_id)
);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
