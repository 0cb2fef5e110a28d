package scenario

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractField(t *testing.T) {
	body := json.RawMessage(`{"detail":{"jobId":"J1","nested":{"count":3}}}`)

	val, ok := ExtractField(body, "detail.jobId")
	assert.True(t, ok)
	assert.Equal(t, "J1", val)

	val, ok = ExtractField(body, "detail.nested.count")
	assert.True(t, ok)
	assert.EqualValues(t, 3, val)

	_, ok = ExtractField(body, "detail.missing")
	assert.False(t, ok)

	_, ok = ExtractField(body, "detail.jobId.tooDeep")
	assert.False(t, ok)
}

func TestFieldsEqual(t *testing.T) {
	expected := json.RawMessage(`{"detail":{"jobId":"J1"}}`)
	observedMatch := json.RawMessage(`{"detail":{"jobId":"J1","extra":"metadata"}}`)
	observedMismatch := json.RawMessage(`{"detail":{"jobId":"J2"}}`)
	observedAbsent := json.RawMessage(`{"detail":{}}`)

	assert.True(t, FieldsEqual(expected, observedMatch, "detail.jobId"))
	assert.False(t, FieldsEqual(expected, observedMismatch, "detail.jobId"))
	assert.False(t, FieldsEqual(expected, observedAbsent, "detail.jobId"))

	// Both sides missing the path entirely compares equal (spec §4.4).
	bothAbsent := json.RawMessage(`{}`)
	assert.True(t, FieldsEqual(bothAbsent, bothAbsent, "detail.jobId"))
}

func TestMatchesAll(t *testing.T) {
	expected := json.RawMessage(`{"detail":{"jobId":"J1","region":"us"}}`)
	observed := json.RawMessage(`{"detail":{"jobId":"J1","region":"us","noise":true}}`)

	assert.True(t, MatchesAll(expected, observed, []string{"detail.jobId", "detail.region"}))
	// A path absent from both bodies compares equal (spec §4.4).
	assert.True(t, MatchesAll(expected, observed, []string{"detail.jobId", "detail.missing"}))

	// Empty field set matches unconditionally (spec §8 boundary case).
	assert.True(t, MatchesAll(expected, observed, nil))
}
