package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRepository(db)
}

func TestSaveAndQueryAudits(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	audits := []PredictionAudit{
		{Endpoint: "predict", InputHash: "aaa", Prediction: 1, Probability: 0.82, RiskLevel: "High", DurationMS: 4},
		{Endpoint: "explain", InputHash: "bbb", Prediction: 0, Probability: 0.21, RiskLevel: "Low", DurationMS: 120},
		{Endpoint: "explain", InputHash: "ccc", Prediction: 1, Probability: 0.55, RiskLevel: "Medium", DurationMS: 98, CacheHit: true},
	}
	for _, a := range audits {
		require.NoError(t, repo.SaveAudit(ctx, a))
	}

	t.Run("recent audits are returned with generated ids", func(t *testing.T) {
		got, err := repo.RecentAudits(ctx, 10)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for _, a := range got {
			assert.NotEmpty(t, a.ID)
			assert.False(t, a.CreatedAt.IsZero())
		}
	})

	t.Run("limit is clamped to a sane default", func(t *testing.T) {
		got, err := repo.RecentAudits(ctx, -5)
		require.NoError(t, err)
		assert.Len(t, got, 3)

		got, err = repo.RecentAudits(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("counts group by risk tier", func(t *testing.T) {
		counts, err := repo.CountByRiskLevel(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts["High"])
		assert.Equal(t, int64(1), counts["Medium"])
		assert.Equal(t, int64(1), counts["Low"])
	})
}
