package models

import "time"

// ObservationStatus is an Observation's terminal-or-not classification
// (spec §3 invariant 4).
type ObservationStatus string

const (
	ObservationStatusNew        ObservationStatus = "new"
	ObservationStatusMatched    ObservationStatus = "matched"
	ObservationStatusUnexpected ObservationStatus = "unexpected"
)

// Observation is the Collector's record of one event arrival (spec §3).
type Observation struct {
	RunID                   string            `json:"runId"`
	EventID                 string            `json:"eventId"`
	DetailType              string            `json:"detailType"`
	Source                  string            `json:"source"`
	ReceivedAt              time.Time         `json:"receivedAt"`
	PayloadHash             string            `json:"payloadHash"`
	ArchiveKey              string            `json:"archiveKey,omitempty"`
	Status                  ObservationStatus `json:"status"`
	VerifiedAt              *time.Time        `json:"verifiedAt,omitempty"`
	MatchedExpectationIndex *int              `json:"matchedExpectationIndex,omitempty"`

	// SortKey is the Store sort key this row lives under; callers need it to
	// address a specific Observation for an update (spec §6).
	SortKey string `json:"-"`
}

// MissingRecord is written during verify for expectations with no match
// (spec §3).
type MissingRecord struct {
	RunID         string     `json:"runId"`
	Index         int        `json:"index"`
	ExpectedEvent Expectation `json:"expectedEvent"`
	Status        string     `json:"status"`
	CheckedAt     time.Time  `json:"checkedAt"`
}
