package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/codeready-toolchain/eventharness/test/util"
)

func TestHealth_ReportsHealthyWithPoolStats(t *testing.T) {
	cl := testutil.SetupTestStore(t)

	status, err := cl.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
	assert.GreaterOrEqual(t, status.MaxConns, int32(1))
}
