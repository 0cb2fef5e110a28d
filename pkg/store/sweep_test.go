package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/eventharness/pkg/models"
	testutil "github.com/codeready-toolchain/eventharness/test/util"
)

func TestDeleteExpiredRuns_RemovesOnlyRunsPastCutoff(t *testing.T) {
	cl := testutil.SetupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	expired := models.RunMeta{
		RunID:       "it-sweep-expired",
		ServiceName: "checkout",
		Status:      models.RunStatusTimeout,
		StartedAt:   now.Add(-2 * time.Hour),
		TimeoutAt:   now.Add(-90 * time.Minute),
	}
	fresh := models.RunMeta{
		RunID:       "it-sweep-fresh",
		ServiceName: "checkout",
		Status:      models.RunStatusRunning,
		StartedAt:   now,
		TimeoutAt:   now.Add(15 * time.Minute),
	}
	require.NoError(t, cl.CreateRunMeta(ctx, expired))
	require.NoError(t, cl.CreateRunMeta(ctx, fresh))

	cutoff := now.Add(-1 * time.Hour)
	removed, err := cl.DeleteExpiredRuns(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = cl.GetRunMeta(ctx, "it-sweep-expired")
	assert.Error(t, err)

	got, err := cl.GetRunMeta(ctx, "it-sweep-fresh")
	require.NoError(t, err)
	assert.Equal(t, "it-sweep-fresh", got.RunID)
}
