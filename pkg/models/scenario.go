package models

import "encoding/json"

// ScenarioEvent is one entry of a scenario's ordered event sequence
// (spec §6). The JSON tags accept both the canonical field names and the
// legacy `DetailType`/`Detail` spellings recovered from
// original_source/seeder.py's fixture format.
type ScenarioEvent struct {
	Source           string          `json:"source"`
	DetailType       string          `json:"detail-type"`
	LegacyDetailType string          `json:"DetailType,omitempty"`
	Detail           json.RawMessage `json:"detail"`
	LegacyDetail     json.RawMessage `json:"Detail,omitempty"`
	InjectTestID     bool            `json:"__injectTestId,omitempty"`
}

// ResolvedDetailType returns detail-type, falling back to the legacy
// DetailType spelling (spec §6: "legacy DetailType accepted").
func (e *ScenarioEvent) ResolvedDetailType() string {
	if e.DetailType != "" {
		return e.DetailType
	}
	return e.LegacyDetailType
}

// ResolvedDetail returns the detail payload, preferring the canonical field
// and falling back to the legacy `Detail` spelling.
func (e *ScenarioEvent) ResolvedDetail() json.RawMessage {
	if len(e.Detail) > 0 {
		return e.Detail
	}
	return e.LegacyDetail
}

// MatchSpec selects which dot-paths of an event body an Expectation compares
// (spec §4.4, §6, §9).
type MatchSpec struct {
	Fields []string `json:"fields"`
}

// Expectation is a declarative assertion that an event with certain
// attributes should appear (spec §4.4, GLOSSARY).
type Expectation struct {
	Source     string          `json:"source"`
	DetailType string          `json:"detail-type"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	Match      MatchSpec       `json:"__match"`
}
