package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/domain/rate"
	"github.com/tallyhq/tally/internal/repository"
)

func newRateRecord(id, subjectID string, t rate.Type, cents int64, effective time.Time) *rate.Record {
	return &rate.Record{
		ID:            id,
		TenantID:      "tenant1",
		SubjectID:     subjectID,
		Type:          t,
		RateCents:     cents,
		EffectiveDate: effective,
		CreatedBy:     "admin",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestRateRepository_CreateClosesPrior(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRateRepository(db)

	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, "tenant1", newRateRecord("r1", "u1", rate.TypeUserDefault, 5000, jan)))
	require.NoError(t, repo.Create(ctx, "tenant1", newRateRecord("r2", "u1", rate.TypeUserDefault, 6000, mar)))

	records, err := repo.List(ctx, "tenant1", "u1", nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first; the older record is closed at the newer one's effective date.
	require.Equal(t, "r2", records[0].ID)
	require.Nil(t, records[0].EndDate)
	require.Equal(t, "r1", records[1].ID)
	require.NotNil(t, records[1].EndDate)
	require.True(t, records[1].EndDate.Equal(mar))
}

func TestRateRepository_FindEffectiveHistorical(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRateRepository(db)

	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, "tenant1", newRateRecord("r1", "u1", rate.TypeUserDefault, 5000, jan)))
	require.NoError(t, repo.Create(ctx, "tenant1", newRateRecord("r2", "u1", rate.TypeUserDefault, 6000, mar)))

	// A February lookup still resolves the January rate: rate changes are
	// never retroactive.
	feb := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	rec, err := repo.FindEffective(ctx, "tenant1", "u1", rate.TypeUserDefault, feb)
	require.NoError(t, err)
	require.Equal(t, "r1", rec.ID)
	require.Equal(t, int64(5000), rec.RateCents)

	apr := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	rec, err = repo.FindEffective(ctx, "tenant1", "u1", rate.TypeUserDefault, apr)
	require.NoError(t, err)
	require.Equal(t, "r2", rec.ID)

	// Before any record took effect there is nothing to find.
	dec := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	_, err = repo.FindEffective(ctx, "tenant1", "u1", rate.TypeUserDefault, dec)
	require.Equal(t, repository.ErrNotFound, err)
}

func TestRateRepository_TypesAreIndependent(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRateRepository(db)

	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, "tenant1", newRateRecord("r1", "p1", rate.TypeProjectOverride, 8000, jan)))
	require.NoError(t, repo.Create(ctx, "tenant1", newRateRecord("r2", "p1", rate.TypeClientDefault, 4000, jan)))

	// Creating a client_default must not close the project_override.
	records, err := repo.List(ctx, "tenant1", "p1", nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		require.Nil(t, rec.EndDate)
	}

	typ := rate.TypeProjectOverride
	filtered, err := repo.List(ctx, "tenant1", "p1", &typ)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, "r1", filtered[0].ID)
}
