package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tallyhq/tally/internal/domain/timelog"
	"github.com/tallyhq/tally/internal/repository"
)

// TimerRepository implements timelog.TimerRepository for SQLite
type TimerRepository struct {
	db *DB
}

// NewTimerRepository creates a new TimerRepository
func NewTimerRepository(db *DB) *TimerRepository {
	return &TimerRepository{db: db}
}

const eventColumns = `
	seq, id, tenant_id, user_id, task_id, micro_task_id, kind,
	timestamp_ms, duration_minutes, rate_cents, billable, note,
	previous_task_id, created_at_ms
`

// LastEvent returns the user's most recent event of any kind
func (r *TimerRepository) LastEvent(ctx context.Context, tenantID, userID string) (*timelog.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM time_log_events
		WHERE tenant_id = ? AND user_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`
	return scanEvent(r.db.QueryRowContext(ctx, query, tenantID, userID))
}

// LastTimerEvent returns the user's most recent non-adjustment event
func (r *TimerRepository) LastTimerEvent(ctx context.Context, tenantID, userID string) (*timelog.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM time_log_events
		WHERE tenant_id = ? AND user_id = ? AND kind != 'adjustment'
		ORDER BY seq DESC
		LIMIT 1
	`
	return scanEvent(r.db.QueryRowContext(ctx, query, tenantID, userID))
}

// EventsSince returns up to limit events after a sequence position, ordered
// by sequence (timestamp order with insertion order as tie-break)
func (r *TimerRepository) EventsSince(ctx context.Context, tenantID, userID string, afterSeq int64, limit int) ([]timelog.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM time_log_events
		WHERE tenant_id = ? AND user_id = ? AND seq > ?
		ORDER BY seq
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, userID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListUserEvents returns a user's full ordered event sequence
func (r *TimerRepository) ListUserEvents(ctx context.Context, tenantID, userID string) ([]timelog.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM time_log_events
		WHERE tenant_id = ? AND user_id = ?
		ORDER BY seq
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// CommitTimer appends the event and applies task, micro task and retainer
// updates in one transaction. Either all of it lands or none of it does.
func (r *TimerRepository) CommitTimer(ctx context.Context, tenantID string, c *timelog.Commit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin timer commit: %w", err)
	}
	defer tx.Rollback()

	ev := c.Event
	result, err := tx.ExecContext(ctx, `
		INSERT INTO time_log_events (
			id, tenant_id, user_id, task_id, micro_task_id, kind,
			timestamp_ms, duration_minutes, rate_cents, billable, note,
			previous_task_id, created_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		tenantID,
		ev.UserID,
		nullString(ev.TaskID),
		nullString(ev.MicroTaskID),
		ev.Kind,
		toMillis(ev.Timestamp),
		nullInt64(ev.DurationMinutes),
		nullInt64(ev.RateCents),
		ev.Billable,
		nullString(ev.Note),
		nullString(ev.PreviousTaskID),
		toMillis(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	if seq, err := result.LastInsertId(); err == nil {
		ev.Seq = seq
	}

	for _, delta := range c.TaskDeltas {
		if err := applyTaskDelta(ctx, tx, tenantID, delta, ev); err != nil {
			return err
		}
	}

	if c.MicroDelta != nil {
		if err := applyMicroDelta(ctx, tx, tenantID, *c.MicroDelta, ev); err != nil {
			return err
		}
	}

	if c.Debit != nil {
		if err := applyDebitTx(ctx, tx, tenantID, c.Debit.BlockID, c.Debit.Minutes, c.Debit.ExpectedVersion, toMillis(ev.Timestamp)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func applyTaskDelta(ctx context.Context, tx *sql.Tx, tenantID string, delta timelog.TaskDelta, ev *timelog.Event) error {
	pausedAt := toMillisPtr(delta.PausedAt)
	pauseReason := nullString(delta.PauseReason)
	if delta.ClearPause {
		pausedAt = sql.NullInt64{}
		pauseReason = sql.NullString{}
	}

	query := `
		UPDATE tasks
		SET status = ?,
		    actual_minutes = actual_minutes + ?,
		    billable_minutes = billable_minutes + ?,
		    earnings_cents = earnings_cents + ?,
		    updated_at_ms = ?
	`
	args := []any{
		delta.NewStatus,
		delta.ActualMinutes,
		delta.BillableMinutes,
		delta.EarningsCents,
		toMillis(ev.Timestamp),
	}
	if delta.ClearPause || delta.PausedAt != nil || delta.PauseReason != nil {
		query += `, paused_at_ms = ?, pause_reason = ?`
		args = append(args, pausedAt, pauseReason)
	}
	query += ` WHERE id = ? AND tenant_id = ?`
	args = append(args, delta.TaskID, tenantID)

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to apply task delta: %w", err)
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

func applyMicroDelta(ctx context.Context, tx *sql.Tx, tenantID string, delta timelog.MicroDelta, ev *timelog.Event) error {
	query := `
		UPDATE micro_tasks
		SET actual_minutes = actual_minutes + ?,
		    break_minutes = break_minutes + ?,
		    updated_at_ms = ?
	`
	args := []any{delta.ActualMinutes, delta.BreakMinutes, toMillis(ev.Timestamp)}

	if delta.NewStatus != nil {
		query += `, status = ?`
		args = append(args, *delta.NewStatus)
	}
	if delta.BreakStartedAt != nil {
		query += `, break_started_at_ms = ?`
		args = append(args, toMillis(*delta.BreakStartedAt))
	}
	if delta.ClearBreak {
		query += `, break_started_at_ms = NULL`
	}
	query += ` WHERE id = ? AND tenant_id = ?`
	args = append(args, delta.MicroTaskID, tenantID)

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to apply micro task delta: %w", err)
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

func scanEvent(row *sql.Row) (*timelog.Event, error) {
	var (
		ev              timelog.Event
		taskID          sql.NullString
		microTaskID     sql.NullString
		timestampMs     int64
		durationMinutes sql.NullInt64
		rateCents       sql.NullInt64
		note            sql.NullString
		previousTaskID  sql.NullString
		createdAtMs     int64
	)
	err := row.Scan(
		&ev.Seq,
		&ev.ID,
		&ev.TenantID,
		&ev.UserID,
		&taskID,
		&microTaskID,
		&ev.Kind,
		&timestampMs,
		&durationMinutes,
		&rateCents,
		&ev.Billable,
		&note,
		&previousTaskID,
		&createdAtMs,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	ev.TaskID = stringPtr(taskID)
	ev.MicroTaskID = stringPtr(microTaskID)
	ev.Timestamp = fromMillis(timestampMs)
	ev.DurationMinutes = int64Ptr(durationMinutes)
	ev.RateCents = int64Ptr(rateCents)
	ev.Note = stringPtr(note)
	ev.PreviousTaskID = stringPtr(previousTaskID)
	ev.CreatedAt = fromMillis(createdAtMs)
	return &ev, nil
}

func collectEvents(rows *sql.Rows) ([]timelog.Event, error) {
	var events []timelog.Event
	for rows.Next() {
		var (
			ev              timelog.Event
			taskID          sql.NullString
			microTaskID     sql.NullString
			timestampMs     int64
			durationMinutes sql.NullInt64
			rateCents       sql.NullInt64
			note            sql.NullString
			previousTaskID  sql.NullString
			createdAtMs     int64
		)
		if err := rows.Scan(
			&ev.Seq,
			&ev.ID,
			&ev.TenantID,
			&ev.UserID,
			&taskID,
			&microTaskID,
			&ev.Kind,
			&timestampMs,
			&durationMinutes,
			&rateCents,
			&ev.Billable,
			&note,
			&previousTaskID,
			&createdAtMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.TaskID = stringPtr(taskID)
		ev.MicroTaskID = stringPtr(microTaskID)
		ev.Timestamp = fromMillis(timestampMs)
		ev.DurationMinutes = int64Ptr(durationMinutes)
		ev.RateCents = int64Ptr(rateCents)
		ev.Note = stringPtr(note)
		ev.PreviousTaskID = stringPtr(previousTaskID)
		ev.CreatedAt = fromMillis(createdAtMs)
		events = append(events, ev)
	}
	return events, rows.Err()
}
