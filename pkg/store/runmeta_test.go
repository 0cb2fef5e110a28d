package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/eventharness/pkg/models"
	"github.com/codeready-toolchain/eventharness/pkg/store"
	testutil "github.com/codeready-toolchain/eventharness/test/util"
)

func newRunMeta(runID string) models.RunMeta {
	now := time.Now().UTC()
	return models.RunMeta{
		RunID:       runID,
		ServiceName: "checkout",
		Status:      models.RunStatusRunning,
		StartedAt:   now,
		TimeoutAt:   now.Add(15 * time.Minute),
	}
}

func TestCreateAndGetRunMeta(t *testing.T) {
	cl := testutil.SetupTestStore(t)
	ctx := context.Background()

	meta := newRunMeta("it-rm-1")
	require.NoError(t, cl.CreateRunMeta(ctx, meta))

	got, err := cl.GetRunMeta(ctx, "it-rm-1")
	require.NoError(t, err)
	assert.Equal(t, "checkout", got.ServiceName)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.EqualValues(t, 0, got.ObservedCount)
}

func TestCreateRunMeta_DuplicateFails(t *testing.T) {
	cl := testutil.SetupTestStore(t)
	ctx := context.Background()

	meta := newRunMeta("it-rm-dup")
	require.NoError(t, cl.CreateRunMeta(ctx, meta))

	err := cl.CreateRunMeta(ctx, meta)
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestGetRunMeta_NotFound(t *testing.T) {
	cl := testutil.SetupTestStore(t)
	_, err := cl.GetRunMeta(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIncrementObservedCount_NoReadModifyWrite(t *testing.T) {
	cl := testutil.SetupTestStore(t)
	ctx := context.Background()
	require.NoError(t, cl.CreateRunMeta(ctx, newRunMeta("it-rm-inc")))

	n, err := cl.IncrementObservedCount(ctx, "it-rm-inc")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = cl.IncrementObservedCount(ctx, "it-rm-inc")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestTransitionStatus_IdempotentNoOpOnRepeat(t *testing.T) {
	cl := testutil.SetupTestStore(t)
	ctx := context.Background()
	require.NoError(t, cl.CreateRunMeta(ctx, newRunMeta("it-rm-trans")))

	changed, err := cl.TransitionStatus(ctx, "it-rm-trans", models.RunStatusTimeout)
	require.NoError(t, err)
	assert.True(t, changed)

	// Repeating the identical transition is a no-op (spec §5 hazard 2).
	changed, err = cl.TransitionStatus(ctx, "it-rm-trans", models.RunStatusTimeout)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := cl.GetRunMeta(ctx, "it-rm-trans")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusTimeout, got.Status)
}

func TestSetReportLocation(t *testing.T) {
	cl := testutil.SetupTestStore(t)
	ctx := context.Background()
	require.NoError(t, cl.CreateRunMeta(ctx, newRunMeta("it-rm-report")))

	require.NoError(t, cl.SetReportLocation(ctx, "it-rm-report", "reports/testruns/checkout/it-rm-report.html"))

	got, err := cl.GetRunMeta(ctx, "it-rm-report")
	require.NoError(t, err)
	assert.Equal(t, "reports/testruns/checkout/it-rm-report.html", got.ReportLocation)
}
