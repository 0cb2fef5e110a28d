// Package bus implements the harness's shared event Bus (spec §3, §4.2) on
// top of PostgreSQL LISTEN/NOTIFY, adapted from the teacher's pkg/events
// WebSocket-fanout subsystem: the same pg_notify publishing and
// dedicated-LISTEN-connection patterns, repointed at delivering events from
// a system under test to the Collector instead of to browser clients.
package bus

import (
	"encoding/json"
	"time"
)

// Envelope is one event as it travels over the Bus: the thing a system
// under test publishes, and the thing the Collector receives (spec §4.2).
type Envelope struct {
	RunID      string          `json:"runId"`
	EventID    string          `json:"eventId"`
	Source     string          `json:"source"`
	DetailType string          `json:"detail-type"`
	Detail     json.RawMessage `json:"detail"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// DefaultChannelPrefix namespaces Bus channels so unrelated Postgres NOTIFY traffic
// in the same database never collides with harness traffic. Overridden by
// EVENT_BUS_CHANNEL_PREFIX (SPEC_FULL §1).
const DefaultChannelPrefix = "eventharness"

// ControlChannel returns the single NOTIFY channel the Rule controller
// enables and disables (spec §4.5: "the event-bus rule that routes
// traffic to the Collector"). Every event from the system under test,
// regardless of which run it belongs to, travels over this one channel;
// the Collector itself is what narrows by run (spec §4.2 steps 1-2). A
// per-run channel would make the Rule controller meaningless, since
// enabling collection is a single on/off switch, not one per run.
func ControlChannel(prefix, ruleName string) string {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return prefix + "_rule_" + sanitizeRunID(ruleName)
}

// sanitizeRunID keeps channel names valid Postgres identifiers: NOTIFY
// channel names are unquoted identifiers, so non-alphanumeric characters
// (a UUID's hyphens, say) are folded to underscores.
func sanitizeRunID(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out[i] = c
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
