package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/eventharness/pkg/models"
	testutil "github.com/codeready-toolchain/eventharness/test/util"
)

func TestPutAndListMissingRecords_IndexOrder(t *testing.T) {
	cl := testutil.SetupTestStore(t)
	ctx := context.Background()
	require.NoError(t, cl.CreateRunMeta(ctx, newRunMeta("it-missing-order")))

	now := time.Now().UTC()
	exp1 := models.Expectation{Source: "svc.a", DetailType: "Started", Detail: json.RawMessage(`{}`)}
	exp2 := models.Expectation{Source: "svc.a", DetailType: "Completed", Detail: json.RawMessage(`{}`)}

	require.NoError(t, cl.PutMissingRecord(ctx, models.MissingRecord{
		RunID: "it-missing-order", Index: 1, ExpectedEvent: exp2, Status: "missing", CheckedAt: now,
	}))
	require.NoError(t, cl.PutMissingRecord(ctx, models.MissingRecord{
		RunID: "it-missing-order", Index: 0, ExpectedEvent: exp1, Status: "missing", CheckedAt: now,
	}))

	records, err := cl.ListMissingRecords(ctx, "it-missing-order")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Started", records[0].ExpectedEvent.DetailType)
	assert.Equal(t, "Completed", records[1].ExpectedEvent.DetailType)
}

func TestDeleteMissingRecords(t *testing.T) {
	cl := testutil.SetupTestStore(t)
	ctx := context.Background()
	require.NoError(t, cl.CreateRunMeta(ctx, newRunMeta("it-missing-del")))

	now := time.Now().UTC()
	require.NoError(t, cl.PutMissingRecord(ctx, models.MissingRecord{
		RunID:         "it-missing-del",
		Index:         0,
		ExpectedEvent: models.Expectation{Source: "svc.a", DetailType: "Started"},
		Status:        "missing",
		CheckedAt:     now,
	}))

	require.NoError(t, cl.DeleteMissingRecords(ctx, "it-missing-del"))

	records, err := cl.ListMissingRecords(ctx, "it-missing-del")
	require.NoError(t, err)
	assert.Empty(t, records)
}
