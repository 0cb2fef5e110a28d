package scenario

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalHash_KeyOrderInsensitive(t *testing.T) {
	a := json.RawMessage(`{"b":2,"a":1,"c":{"y":true,"x":false}}`)
	b := json.RawMessage(`{"a": 1, "c": {"x": false, "y": true}, "b": 2}`)

	ha, err := CanonicalHash(a)
	require.NoError(t, err)
	hb, err := CanonicalHash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64) // hex-encoded SHA-256
}

func TestCanonicalHash_DifferentPayloadsDiffer(t *testing.T) {
	ha, err := CanonicalHash(json.RawMessage(`{"jobId":"J1"}`))
	require.NoError(t, err)
	hb, err := CanonicalHash(json.RawMessage(`{"jobId":"J2"}`))
	require.NoError(t, err)

	assert.NotEqual(t, ha, hb)
}

func TestCanonicalHash_ArraysPreserveOrder(t *testing.T) {
	ha, err := CanonicalHash(json.RawMessage(`{"items":[1,2,3]}`))
	require.NoError(t, err)
	hb, err := CanonicalHash(json.RawMessage(`{"items":[3,2,1]}`))
	require.NoError(t, err)

	assert.NotEqual(t, ha, hb, "array element order is significant, unlike object key order")
}

func TestCanonicalHash_InvalidJSON(t *testing.T) {
	_, err := CanonicalHash(json.RawMessage(`not json`))
	assert.Error(t, err)
}
