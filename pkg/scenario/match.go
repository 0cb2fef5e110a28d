// Package scenario implements the dot-path field matcher and canonical-JSON
// hashing the Verifier uses to reconcile expectations against observations
// (spec §4.4).
package scenario

import (
	"encoding/json"
	"strings"
)

// ExtractField walks body along the dot-path, descending through nested
// JSON objects. Any missing intermediate key yields nil (spec §4.4 "Field
// extraction").
func ExtractField(body json.RawMessage, dotPath string) (any, bool) {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, false
	}

	cur := root
	for _, segment := range strings.Split(dotPath, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		val, present := m[segment]
		if !present {
			return nil, false
		}
		cur = val
	}
	return cur, true
}

// FieldsEqual compares the dot-path value in expected against the dot-path
// value in observed. Two absent values are considered equal (spec §4.4:
// "null ≠ null returns equal" — read literally this is "missing == missing"
// since JSON has no way to assert a field is present-but-null versus
// absent; both collapse to the same "not found" outcome here).
func FieldsEqual(expected, observed json.RawMessage, dotPath string) bool {
	expectedVal, expectedOK := ExtractField(expected, dotPath)
	observedVal, observedOK := ExtractField(observed, dotPath)

	if !expectedOK && !observedOK {
		return true
	}
	if expectedOK != observedOK {
		return false
	}
	return deepEqual(expectedVal, observedVal)
}

// MatchesAll reports whether observed equals expected on every dot-path in
// fields. An empty field set matches unconditionally — the caller is
// expected to have already filtered candidates by source/detail-type
// (spec §8 boundary case: "Expectation with empty match-fields → matches
// the first candidate with equal source and detail-type").
func MatchesAll(expected, observed json.RawMessage, fields []string) bool {
	for _, f := range fields {
		if !FieldsEqual(expected, observed, f) {
			return false
		}
	}
	return true
}

// deepEqual compares two values decoded from JSON (so only the types
// encoding/json produces: nil, bool, float64, string, []any, map[string]any).
func deepEqual(a, b any) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aj) == string(bj)
}
