package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tallyhq/tally/internal/domain/task"
	"github.com/tallyhq/tally/internal/repository"
)

// TaskRepository implements task.Repository for SQLite
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create creates a new macro task
func (r *TaskRepository) Create(ctx context.Context, tenantID string, t *task.Task) error {
	query := `
		INSERT INTO tasks (
			id, tenant_id, user_id, project_id, client_id, title, priority,
			status, billable, rate_override_cents, estimated_minutes,
			actual_minutes, billable_minutes, earnings_cents,
			paused_at_ms, pause_reason, created_at_ms, updated_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		t.ID,
		tenantID,
		t.UserID,
		nullString(t.ProjectID),
		nullString(t.ClientID),
		t.Title,
		t.Priority,
		t.Status,
		t.Billable,
		nullInt64(t.RateOverrideCents),
		t.EstimatedMinutes,
		t.ActualMinutes,
		t.BillableMinutes,
		t.EarningsCents,
		toMillisPtr(t.PausedAt),
		nullString(t.PauseReason),
		toMillis(t.CreatedAt),
		toMillis(t.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Get retrieves a task by ID
func (r *TaskRepository) Get(ctx context.Context, tenantID, id string) (*task.Task, error) {
	query := `
		SELECT
			id, tenant_id, user_id, project_id, client_id, title, priority,
			status, billable, rate_override_cents, estimated_minutes,
			actual_minutes, billable_minutes, earnings_cents,
			paused_at_ms, pause_reason, created_at_ms, updated_at_ms
		FROM tasks
		WHERE id = ? AND tenant_id = ?
	`
	return r.scanTask(r.db.QueryRowContext(ctx, query, id, tenantID))
}

func (r *TaskRepository) scanTask(row *sql.Row) (*task.Task, error) {
	var (
		t                 task.Task
		projectID         sql.NullString
		clientID          sql.NullString
		rateOverrideCents sql.NullInt64
		pausedAtMs        sql.NullInt64
		pauseReason       sql.NullString
		createdAtMs       int64
		updatedAtMs       int64
	)
	err := row.Scan(
		&t.ID,
		&t.TenantID,
		&t.UserID,
		&projectID,
		&clientID,
		&t.Title,
		&t.Priority,
		&t.Status,
		&t.Billable,
		&rateOverrideCents,
		&t.EstimatedMinutes,
		&t.ActualMinutes,
		&t.BillableMinutes,
		&t.EarningsCents,
		&pausedAtMs,
		&pauseReason,
		&createdAtMs,
		&updatedAtMs,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	t.ProjectID = stringPtr(projectID)
	t.ClientID = stringPtr(clientID)
	t.RateOverrideCents = int64Ptr(rateOverrideCents)
	t.PausedAt = fromMillisPtr(pausedAtMs)
	t.PauseReason = stringPtr(pauseReason)
	t.CreatedAt = fromMillis(createdAtMs)
	t.UpdatedAt = fromMillis(updatedAtMs)
	return &t, nil
}

// Delete deletes a task; micro tasks cascade
func (r *TaskRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateMicro creates a new micro task
func (r *TaskRepository) CreateMicro(ctx context.Context, tenantID string, m *task.MicroTask) error {
	query := `
		INSERT INTO micro_tasks (
			id, tenant_id, task_id, order_index, title, status,
			estimated_minutes, actual_minutes, break_started_at_ms,
			break_minutes, created_at_ms, updated_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		tenantID,
		m.TaskID,
		m.OrderIndex,
		m.Title,
		m.Status,
		m.EstimatedMinutes,
		m.ActualMinutes,
		toMillisPtr(m.BreakStartedAt),
		m.BreakMinutes,
		toMillis(m.CreatedAt),
		toMillis(m.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create micro task: %w", err)
	}
	return nil
}

// GetMicro retrieves a micro task by ID
func (r *TaskRepository) GetMicro(ctx context.Context, tenantID, id string) (*task.MicroTask, error) {
	query := `
		SELECT
			id, tenant_id, task_id, order_index, title, status,
			estimated_minutes, actual_minutes, break_started_at_ms,
			break_minutes, created_at_ms, updated_at_ms
		FROM micro_tasks
		WHERE id = ? AND tenant_id = ?
	`

	var (
		m                task.MicroTask
		breakStartedAtMs sql.NullInt64
		createdAtMs      int64
		updatedAtMs      int64
	)
	err := r.db.QueryRowContext(ctx, query, id, tenantID).Scan(
		&m.ID,
		&m.TenantID,
		&m.TaskID,
		&m.OrderIndex,
		&m.Title,
		&m.Status,
		&m.EstimatedMinutes,
		&m.ActualMinutes,
		&breakStartedAtMs,
		&m.BreakMinutes,
		&createdAtMs,
		&updatedAtMs,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get micro task: %w", err)
	}

	m.BreakStartedAt = fromMillisPtr(breakStartedAtMs)
	m.CreatedAt = fromMillis(createdAtMs)
	m.UpdatedAt = fromMillis(updatedAtMs)
	return &m, nil
}

// ListMicro returns a task's micro tasks ordered by order index
func (r *TaskRepository) ListMicro(ctx context.Context, tenantID, taskID string) ([]task.MicroTask, error) {
	query := `
		SELECT
			id, tenant_id, task_id, order_index, title, status,
			estimated_minutes, actual_minutes, break_started_at_ms,
			break_minutes, created_at_ms, updated_at_ms
		FROM micro_tasks
		WHERE task_id = ? AND tenant_id = ?
		ORDER BY order_index
	`

	rows, err := r.db.QueryContext(ctx, query, taskID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list micro tasks: %w", err)
	}
	defer rows.Close()

	var micros []task.MicroTask
	for rows.Next() {
		var (
			m                task.MicroTask
			breakStartedAtMs sql.NullInt64
			createdAtMs      int64
			updatedAtMs      int64
		)
		if err := rows.Scan(
			&m.ID,
			&m.TenantID,
			&m.TaskID,
			&m.OrderIndex,
			&m.Title,
			&m.Status,
			&m.EstimatedMinutes,
			&m.ActualMinutes,
			&breakStartedAtMs,
			&m.BreakMinutes,
			&createdAtMs,
			&updatedAtMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan micro task: %w", err)
		}
		m.BreakStartedAt = fromMillisPtr(breakStartedAtMs)
		m.CreatedAt = fromMillis(createdAtMs)
		m.UpdatedAt = fromMillis(updatedAtMs)
		micros = append(micros, m)
	}
	return micros, rows.Err()
}

// DeleteMicro deletes a micro task
func (r *TaskRepository) DeleteMicro(ctx context.Context, tenantID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM micro_tasks WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete micro task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ShiftOrderIndices moves order indices >= fromIndex by delta
func (r *TaskRepository) ShiftOrderIndices(ctx context.Context, tenantID, taskID string, fromIndex, delta int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE micro_tasks
		SET order_index = order_index + ?
		WHERE task_id = ? AND tenant_id = ? AND order_index >= ?
	`, delta, taskID, tenantID, fromIndex)
	if err != nil {
		return fmt.Errorf("failed to shift order indices: %w", err)
	}
	return nil
}

// Renumber compacts a task's order indices to 0..n-1 preserving order
func (r *TaskRepository) Renumber(ctx context.Context, tenantID, taskID string) error {
	micros, err := r.ListMicro(ctx, tenantID, taskID)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin renumber: %w", err)
	}
	defer tx.Rollback()

	for i := range micros {
		if micros[i].OrderIndex == i {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE micro_tasks SET order_index = ? WHERE id = ? AND tenant_id = ?
		`, i, micros[i].ID, tenantID); err != nil {
			return fmt.Errorf("failed to renumber micro task: %w", err)
		}
	}
	return tx.Commit()
}
