package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tallyhq/tally/internal/domain/retainer"
	"github.com/tallyhq/tally/internal/repository"
)

// RetainerRepository implements retainer.Repository for SQLite
type RetainerRepository struct {
	db *DB
}

// NewRetainerRepository creates a new RetainerRepository
func NewRetainerRepository(db *DB) *RetainerRepository {
	return &RetainerRepository{db: db}
}

const blockColumns = `
	id, tenant_id, client_id, project_id, minutes_purchased, minutes_used,
	rate_cents, start_ms, end_ms, status, version, created_at_ms, updated_at_ms
`

// Create creates a new retainer block
func (r *RetainerRepository) Create(ctx context.Context, tenantID string, b *retainer.Block) error {
	query := `
		INSERT INTO retainer_blocks (` + blockColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		b.ID,
		tenantID,
		b.ClientID,
		nullString(b.ProjectID),
		b.MinutesPurchased,
		b.MinutesUsed,
		b.RateCents,
		toMillis(b.StartDate),
		toMillisPtr(b.EndDate),
		b.Status,
		b.Version,
		toMillis(b.CreatedAt),
		toMillis(b.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create retainer block: %w", err)
	}
	return nil
}

// Get retrieves a retainer block by ID
func (r *RetainerRepository) Get(ctx context.Context, tenantID, id string) (*retainer.Block, error) {
	query := `
		SELECT ` + blockColumns + `
		FROM retainer_blocks
		WHERE id = ? AND tenant_id = ?
	`
	return scanBlock(r.db.QueryRowContext(ctx, query, id, tenantID))
}

// List returns a tenant's blocks, optionally filtered by client
func (r *RetainerRepository) List(ctx context.Context, tenantID string, clientID *string) ([]retainer.Block, error) {
	query := `
		SELECT ` + blockColumns + `
		FROM retainer_blocks
		WHERE tenant_id = ?
	`
	args := []any{tenantID}
	if clientID != nil {
		query += ` AND client_id = ?`
		args = append(args, *clientID)
	}
	query += ` ORDER BY start_ms DESC, created_at_ms DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list retainer blocks: %w", err)
	}
	defer rows.Close()

	var blocks []retainer.Block
	for rows.Next() {
		var (
			b           retainer.Block
			projectID   sql.NullString
			startMs     int64
			endMs       sql.NullInt64
			createdAtMs int64
			updatedAtMs int64
		)
		if err := rows.Scan(
			&b.ID,
			&b.TenantID,
			&b.ClientID,
			&projectID,
			&b.MinutesPurchased,
			&b.MinutesUsed,
			&b.RateCents,
			&startMs,
			&endMs,
			&b.Status,
			&b.Version,
			&createdAtMs,
			&updatedAtMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan retainer block: %w", err)
		}
		b.ProjectID = stringPtr(projectID)
		b.StartDate = fromMillis(startMs)
		b.EndDate = fromMillisPtr(endMs)
		b.CreatedAt = fromMillis(createdAtMs)
		b.UpdatedAt = fromMillis(updatedAtMs)
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// FindActive returns the earliest-expiring active block covering the instant.
// Blocks without an end date sort last so bounded blocks drain first.
func (r *RetainerRepository) FindActive(ctx context.Context, tenantID, clientID string, projectID *string, at time.Time) (*retainer.Block, error) {
	query := `
		SELECT ` + blockColumns + `
		FROM retainer_blocks
		WHERE tenant_id = ? AND client_id = ? AND status = 'active'
		  AND start_ms <= ?
		  AND (end_ms IS NULL OR end_ms >= ?)
	`
	atMs := toMillis(at)
	args := []any{tenantID, clientID, atMs, atMs}
	if projectID != nil {
		query += ` AND (project_id IS NULL OR project_id = ?)`
		args = append(args, *projectID)
	} else {
		query += ` AND project_id IS NULL`
	}
	query += ` ORDER BY end_ms IS NULL, end_ms ASC, created_at_ms ASC LIMIT 1`

	return scanBlock(r.db.QueryRowContext(ctx, query, args...))
}

// ApplyDebit applies an optimistic debit against the block's version
func (r *RetainerRepository) ApplyDebit(ctx context.Context, tenantID, id string, minutes, expectedVersion int64) (*retainer.Block, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin debit: %w", err)
	}
	defer tx.Rollback()

	if err := applyDebitTx(ctx, tx, tenantID, id, minutes, expectedVersion, time.Now().UnixMilli()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit debit: %w", err)
	}
	return r.Get(ctx, tenantID, id)
}

// applyDebitTx adds minutes to minutes_used, clamped to minutes_purchased,
// flipping the block to exhausted in the same statement when it fills.
// Rows affected of zero means either the block is gone or the version is
// stale; both surface as ErrConflict so callers re-read and retry.
func applyDebitTx(ctx context.Context, tx *sql.Tx, tenantID, id string, minutes, expectedVersion, nowMs int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE retainer_blocks
		SET minutes_used = MIN(minutes_purchased, minutes_used + ?),
		    status = CASE
		        WHEN minutes_used + ? >= minutes_purchased THEN 'exhausted'
		        ELSE status
		    END,
		    version = version + 1,
		    updated_at_ms = ?
		WHERE id = ? AND tenant_id = ? AND version = ?
	`, minutes, minutes, nowMs, id, tenantID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to apply debit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrConflict
	}
	return nil
}

// ExpireOutdated flips active blocks whose end date has passed to expired
func (r *RetainerRepository) ExpireOutdated(ctx context.Context, asOf time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE retainer_blocks
		SET status = 'expired', version = version + 1, updated_at_ms = ?
		WHERE status = 'active' AND end_ms IS NOT NULL AND end_ms < ?
	`, toMillis(asOf), toMillis(asOf))
	if err != nil {
		return 0, fmt.Errorf("failed to expire retainer blocks: %w", err)
	}
	return result.RowsAffected()
}

func scanBlock(row *sql.Row) (*retainer.Block, error) {
	var (
		b           retainer.Block
		projectID   sql.NullString
		startMs     int64
		endMs       sql.NullInt64
		createdAtMs int64
		updatedAtMs int64
	)
	err := row.Scan(
		&b.ID,
		&b.TenantID,
		&b.ClientID,
		&projectID,
		&b.MinutesPurchased,
		&b.MinutesUsed,
		&b.RateCents,
		&startMs,
		&endMs,
		&b.Status,
		&b.Version,
		&createdAtMs,
		&updatedAtMs,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get retainer block: %w", err)
	}

	b.ProjectID = stringPtr(projectID)
	b.StartDate = fromMillis(startMs)
	b.EndDate = fromMillisPtr(endMs)
	b.CreatedAt = fromMillis(createdAtMs)
	b.UpdatedAt = fromMillis(updatedAtMs)
	return &b, nil
}
