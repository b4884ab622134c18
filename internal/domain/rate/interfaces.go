package rate

import (
	"context"
	"time"
)

// Repository provides persistence for rate records.
type Repository interface {
	// Create inserts a record and closes any previously active record for
	// the same (subject, type) in the same transaction, so at most one
	// record per pair has a nil end date.
	Create(ctx context.Context, tenantID string, rec *Record) error
	// FindEffective returns the record for (subject, type) with the latest
	// effective date <= at whose end date is nil or >= at. Ties on
	// effective date are broken by most recently created.
	FindEffective(ctx context.Context, tenantID, subjectID string, t Type, at time.Time) (*Record, error)
	List(ctx context.Context, tenantID, subjectID string, t *Type) ([]Record, error)
}
