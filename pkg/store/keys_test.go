package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunPartition(t *testing.T) {
	assert.Equal(t, "run#it-abc123", RunPartition("it-abc123"))
}

func TestObservationSortKey_PreservesArrivalOrder(t *testing.T) {
	k1 := ObservationSortKey("20260305T100000.000", "evt-1")
	k2 := ObservationSortKey("20260305T100000.500", "evt-2")
	assert.Less(t, k1, k2)
}

func TestObservationSortKey_DistinguishesRedeliveredCopies(t *testing.T) {
	k1 := ObservationSortKey("20260305T100000.000", "evt-1")
	k2 := ObservationSortKey("20260305T100000.001", "evt-1")
	assert.NotEqual(t, k1, k2)
}

func TestMissingSortKey_ZeroPaddedForLexicalOrder(t *testing.T) {
	assert.Equal(t, "expectation#000-missing", MissingSortKey(0))
	assert.Equal(t, "expectation#012-missing", MissingSortKey(12))
	assert.Less(t, MissingSortKey(2), MissingSortKey(10))
}
