package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tallyhq/tally/internal/domain/rate"
	"github.com/tallyhq/tally/internal/repository"
)

// RateRepository implements rate.Repository for SQLite
type RateRepository struct {
	db *DB
}

// NewRateRepository creates a new RateRepository
func NewRateRepository(db *DB) *RateRepository {
	return &RateRepository{db: db}
}

// Create inserts a record and closes the previously active record for the
// same (subject, type), both inside one transaction
func (r *RateRepository) Create(ctx context.Context, tenantID string, rec *rate.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rate create: %w", err)
	}
	defer tx.Rollback()

	// Close the open record at the instant the new one takes effect.
	if _, err := tx.ExecContext(ctx, `
		UPDATE rate_records
		SET end_ms = ?
		WHERE tenant_id = ? AND subject_id = ? AND rate_type = ? AND end_ms IS NULL
	`, toMillis(rec.EffectiveDate), tenantID, rec.SubjectID, rec.Type); err != nil {
		return fmt.Errorf("failed to close active rate record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rate_records (
			id, tenant_id, subject_id, rate_type, rate_cents,
			effective_ms, end_ms, created_by, reason, created_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		tenantID,
		rec.SubjectID,
		rec.Type,
		rec.RateCents,
		toMillis(rec.EffectiveDate),
		toMillisPtr(rec.EndDate),
		rec.CreatedBy,
		nullString(rec.Reason),
		toMillis(rec.CreatedAt),
	); err != nil {
		return fmt.Errorf("failed to create rate record: %w", err)
	}

	return tx.Commit()
}

// FindEffective returns the record in effect for (subject, type) at an instant
func (r *RateRepository) FindEffective(ctx context.Context, tenantID, subjectID string, t rate.Type, at time.Time) (*rate.Record, error) {
	query := `
		SELECT
			id, tenant_id, subject_id, rate_type, rate_cents,
			effective_ms, end_ms, created_by, reason, created_at_ms
		FROM rate_records
		WHERE tenant_id = ? AND subject_id = ? AND rate_type = ?
		  AND effective_ms <= ?
		  AND (end_ms IS NULL OR end_ms >= ?)
		ORDER BY effective_ms DESC, created_at_ms DESC
		LIMIT 1
	`
	atMs := toMillis(at)
	return scanRateRecord(r.db.QueryRowContext(ctx, query, tenantID, subjectID, t, atMs, atMs))
}

// List returns a subject's rate history, newest effective date first
func (r *RateRepository) List(ctx context.Context, tenantID, subjectID string, t *rate.Type) ([]rate.Record, error) {
	query := `
		SELECT
			id, tenant_id, subject_id, rate_type, rate_cents,
			effective_ms, end_ms, created_by, reason, created_at_ms
		FROM rate_records
		WHERE tenant_id = ? AND subject_id = ?
	`
	args := []any{tenantID, subjectID}
	if t != nil {
		query += ` AND rate_type = ?`
		args = append(args, *t)
	}
	query += ` ORDER BY effective_ms DESC, created_at_ms DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rate records: %w", err)
	}
	defer rows.Close()

	var records []rate.Record
	for rows.Next() {
		var (
			rec         rate.Record
			effectiveMs int64
			endMs       sql.NullInt64
			reason      sql.NullString
			createdAtMs int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.TenantID,
			&rec.SubjectID,
			&rec.Type,
			&rec.RateCents,
			&effectiveMs,
			&endMs,
			&rec.CreatedBy,
			&reason,
			&createdAtMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rate record: %w", err)
		}
		rec.EffectiveDate = fromMillis(effectiveMs)
		rec.EndDate = fromMillisPtr(endMs)
		rec.Reason = stringPtr(reason)
		rec.CreatedAt = fromMillis(createdAtMs)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRateRecord(row *sql.Row) (*rate.Record, error) {
	var (
		rec         rate.Record
		effectiveMs int64
		endMs       sql.NullInt64
		reason      sql.NullString
		createdAtMs int64
	)
	err := row.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.SubjectID,
		&rec.Type,
		&rec.RateCents,
		&effectiveMs,
		&endMs,
		&rec.CreatedBy,
		&reason,
		&createdAtMs,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rate record: %w", err)
	}

	rec.EffectiveDate = fromMillis(effectiveMs)
	rec.EndDate = fromMillisPtr(endMs)
	rec.Reason = stringPtr(reason)
	rec.CreatedAt = fromMillis(createdAtMs)
	return &rec, nil
}
