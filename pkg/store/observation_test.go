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

func newObservation(runID, eventID, source, detailType string, receivedAt time.Time) models.Observation {
	return models.Observation{
		RunID:       runID,
		EventID:     eventID,
		DetailType:  detailType,
		Source:      source,
		ReceivedAt:  receivedAt,
		PayloadHash: "deadbeef",
		ArchiveKey:  "events/testruns/" + runID + "/x.json",
		Status:      models.ObservationStatusNew,
		SortKey:     store.ObservationSortKey(receivedAt.UTC().Format("20060102T150405.000"), eventID),
	}
}

func TestPutObservation_UpsertByEventID(t *testing.T) {
	cl := testutil.SetupTestStore(t)
	ctx := context.Background()
	require.NoError(t, cl.CreateRunMeta(ctx, newRunMeta("it-obs-upsert")))

	now := time.Now().UTC()
	obs := newObservation("it-obs-upsert", "evt-1", "svc.a", "Started", now)
	require.NoError(t, cl.PutObservation(ctx, obs))

	// Redelivery of the identical event (same sort key) upserts, not
	// duplicates.
	require.NoError(t, cl.PutObservation(ctx, obs))

	all, err := cl.ListObservationsByRun(ctx, "it-obs-upsert")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListObservationsByRun_ArrivalOrder(t *testing.T) {
	cl := testutil.SetupTestStore(t)
	ctx := context.Background()
	require.NoError(t, cl.CreateRunMeta(ctx, newRunMeta("it-obs-order")))

	base := time.Now().UTC()
	later := newObservation("it-obs-order", "evt-2", "svc.a", "Completed", base.Add(time.Second))
	earlier := newObservation("it-obs-order", "evt-1", "svc.a", "Started", base)

	require.NoError(t, cl.PutObservation(ctx, later))
	require.NoError(t, cl.PutObservation(ctx, earlier))

	all, err := cl.ListObservationsByRun(ctx, "it-obs-order")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "evt-1", all[0].EventID)
	assert.Equal(t, "evt-2", all[1].EventID)
}

func TestListObservationsByDetailTypeSource_Filters(t *testing.T) {
	cl := testutil.SetupTestStore(t)
	ctx := context.Background()
	require.NoError(t, cl.CreateRunMeta(ctx, newRunMeta("it-obs-filter")))

	now := time.Now().UTC()
	require.NoError(t, cl.PutObservation(ctx, newObservation("it-obs-filter", "evt-1", "svc.a", "Started", now)))
	require.NoError(t, cl.PutObservation(ctx, newObservation("it-obs-filter", "evt-2", "svc.b", "Started", now)))

	matches, err := cl.ListObservationsByDetailTypeSource(ctx, "it-obs-filter", "svc.a", "Started")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "evt-1", matches[0].EventID)
}

func TestMarkMatched_ThenMarkUnexpected(t *testing.T) {
	cl := testutil.SetupTestStore(t)
	ctx := context.Background()
	require.NoError(t, cl.CreateRunMeta(ctx, newRunMeta("it-obs-mark")))

	now := time.Now().UTC()
	obs := newObservation("it-obs-mark", "evt-1", "svc.a", "Started", now)
	require.NoError(t, cl.PutObservation(ctx, obs))

	require.NoError(t, cl.MarkMatched(ctx, "it-obs-mark", obs.SortKey, 0, now))
	all, err := cl.ListObservationsByRun(ctx, "it-obs-mark")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.ObservationStatusMatched, all[0].Status)
	require.NotNil(t, all[0].MatchedExpectationIndex)
	assert.Equal(t, 0, *all[0].MatchedExpectationIndex)

	err = cl.MarkUnexpected(ctx, "it-obs-mark", "no-such-sort-key", now)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
