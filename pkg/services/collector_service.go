package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/eventharness/pkg/archive"
	"github.com/codeready-toolchain/eventharness/pkg/bus"
	"github.com/codeready-toolchain/eventharness/pkg/models"
	"github.com/codeready-toolchain/eventharness/pkg/scenario"
	"github.com/codeready-toolchain/eventharness/pkg/store"
)

// CollectorService archives and records every event routed to the harness
// for a known, live run (spec §4.2). It deliberately performs no matching:
// capture is kept idempotent and fast, interpretation is deferred entirely
// to VerifierService.Verify (spec §4.2 "Why no matching here").
type CollectorService struct {
	store    *store.Client
	archiveA archive.Archive
}

// NewCollectorService builds a CollectorService.
func NewCollectorService(st *store.Client, a archive.Archive) *CollectorService {
	return &CollectorService{store: st, archiveA: a}
}

// Handle processes one bus envelope (spec §4.2 steps 1-6).
func (s *CollectorService) Handle(ctx context.Context, env bus.Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// The direct-injection endpoint already knows its runID from the URL
	// path; bus-delivered envelopes carry no such out-of-band context and
	// must self-identify via detail.testRunId (spec §4.2 step 1).
	runID := env.RunID
	if runID == "" {
		extracted, err := extractTestRunID(env.Detail)
		if err != nil || extracted == "" {
			// Not a test event — ignore, not an error.
			return nil
		}
		runID = extracted
	}

	if _, err := s.store.GetRunMeta(ctx, runID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Unknown or expired run (spec §4.2 step 2) — ignore.
			return nil
		}
		return fmt.Errorf("failed to look up run meta: %w", err)
	}

	receivedAt := env.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	archiveKey := s.archiveEnvelope(ctx, runID, env, receivedAt)

	payloadHash, err := scenario.CanonicalHash(env.Detail)
	if err != nil {
		return fmt.Errorf("failed to hash event detail: %w", err)
	}

	sortKey := store.ObservationSortKey(millis(receivedAt), env.EventID)
	obs := models.Observation{
		RunID:       runID,
		EventID:     env.EventID,
		DetailType:  env.DetailType,
		Source:      env.Source,
		ReceivedAt:  receivedAt,
		PayloadHash: payloadHash,
		ArchiveKey:  archiveKey,
		Status:      models.ObservationStatusNew,
		SortKey:     sortKey,
	}
	if err := s.store.PutObservation(ctx, obs); err != nil {
		// Store write failure is fatal for this invocation; the bus will
		// redeliver (spec §4.2 step 6).
		return fmt.Errorf("failed to store observation: %w", err)
	}

	if _, err := s.store.IncrementObservedCount(ctx, runID); err != nil {
		return fmt.Errorf("failed to increment observed count: %w", err)
	}

	return nil
}

// archiveEnvelope writes the full envelope to the Archive. Failure here is
// non-fatal (spec §4.2 step 6): it is logged and the Observation is stored
// with an empty archiveKey.
func (s *CollectorService) archiveEnvelope(ctx context.Context, runID string, env bus.Envelope, receivedAt time.Time) string {
	body, err := json.Marshal(env)
	if err != nil {
		slog.Error("failed to marshal envelope for archive", "runId", runID, "eventId", env.EventID, "error", err)
		return ""
	}

	key := archive.RawEventKey(runID, receivedAt, env.EventID)
	if err := s.archiveA.Put(ctx, key, body, "application/json"); err != nil {
		slog.Warn("failed to archive raw event", "runId", runID, "eventId", env.EventID, "key", key, "error", err)
		return ""
	}
	return key
}

// extractTestRunID pulls testRunId out of an event's detail object
// (spec §4.2 step 1).
func extractTestRunID(detail json.RawMessage) (string, error) {
	if len(detail) == 0 {
		return "", nil
	}
	var m map[string]any
	if err := json.Unmarshal(detail, &m); err != nil {
		return "", fmt.Errorf("detail is not a JSON object: %w", err)
	}
	v, ok := m["testRunId"]
	if !ok {
		return "", nil
	}
	s, _ := v.(string)
	return s, nil
}

func millis(t time.Time) string {
	return t.UTC().Format("20060102T150405.000")
}
