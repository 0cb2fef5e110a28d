package bus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Publisher broadcasts Envelopes on the harness's single shared bus channel
// via pg_notify. It holds a *sql.DB (not the Store's pgx pool) so
// publishing from an ordinary request handler never contends with the
// dedicated LISTEN connection the Listener opens for itself (same
// separation as the teacher's EventPublisher vs. NotifyListener).
type Publisher struct {
	db      *sql.DB
	channel string
}

// NewPublisher builds a Publisher bound to the given channel — the same
// channel the Rule controller enables and disables (spec §4.5), since every
// event from the system under test travels over that one shared channel
// regardless of which run it belongs to.
func NewPublisher(db *sql.DB, channel string) *Publisher {
	return &Publisher{db: db, channel: channel}
}

// Publish broadcasts env on the shared bus channel. Postgres NOTIFY
// payloads are capped at 8000 bytes; an oversized envelope is truncated to
// its routing fields the same way the teacher's publisher truncates
// oversized WebSocket events, since the Collector's direct-injection
// endpoint (POST /runs/:runId/events) remains the reliable path for large
// payloads — the Bus is a low-latency hint, not the payload's only route.
func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal bus envelope: %w", err)
	}

	notifyPayload, err := truncateIfNeeded(payload, env)
	if err != nil {
		return err
	}

	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", p.channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// truncateIfNeeded returns payload as-is if it fits PostgreSQL's NOTIFY
// limit, otherwise a minimal envelope carrying only the routing fields the
// Collector needs to know an event arrived (and to fetch it directly via
// POST /runs/:runId/events if the caller also sends it there).
func truncateIfNeeded(payload []byte, env Envelope) (string, error) {
	const limit = 7900
	if len(payload) <= limit {
		return string(payload), nil
	}

	truncated := map[string]any{
		"runId":      env.RunID,
		"eventId":    env.EventID,
		"source":     env.Source,
		"detail-type": env.DetailType,
		"truncated":  true,
	}
	out, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated bus envelope: %w", err)
	}
	return string(out), nil
}
