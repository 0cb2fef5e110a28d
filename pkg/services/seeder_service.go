package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/eventharness/pkg/archive"
	"github.com/codeready-toolchain/eventharness/pkg/bus"
	"github.com/codeready-toolchain/eventharness/pkg/models"
	"github.com/codeready-toolchain/eventharness/pkg/scenario"
	"github.com/codeready-toolchain/eventharness/pkg/store"
)

// RunTimeout is how long a run may stay in status=running before a status
// poll marks it timed out (spec §4.1 step 5).
const RunTimeout = 15 * time.Minute

// PublishPause is the delay the Seeder inserts between consecutive scenario
// event publishes to simulate realistic emission (spec §4.1 step 4).
const PublishPause = 1 * time.Second

// SeedResult is the Seeder's contract response (spec §4.1).
type SeedResult struct {
	RunID       string    `json:"runId"`
	ServiceName string    `json:"serviceName"`
	StartedAt   time.Time `json:"startedAt"`
	TimeoutAt   time.Time `json:"timeoutAt"`
}

// SeederService starts a run: it resolves and loads a scenario, publishes
// its events to the Bus, and writes the run's RunMeta (spec §4.1).
type SeederService struct {
	store     *store.Client
	archiveA  archive.Archive
	publisher *bus.Publisher
}

// NewSeederService builds a SeederService.
func NewSeederService(st *store.Client, a archive.Archive, publisher *bus.Publisher) *SeederService {
	return &SeederService{store: st, archiveA: a, publisher: publisher}
}

// Seed runs the full contract of spec §4.1. requestedService is the raw,
// possibly-empty, possibly-mixed-case service name from the caller.
func (s *SeederService) Seed(httpCtx context.Context, requestedService string) (SeedResult, error) {
	ctx, cancel := context.WithTimeout(httpCtx, 30*time.Second)
	defer cancel()

	sc, err := scenario.Resolve(ctx, s.archiveA, requestedService)
	if err != nil {
		return SeedResult{}, fmt.Errorf("failed to resolve scenario: %w", err)
	}

	runID := "it-" + uuid.New().String()

	if err := s.publishAll(ctx, runID, sc); err != nil {
		return SeedResult{}, fmt.Errorf("failed to publish scenario events: %w", err)
	}

	now := time.Now().UTC()
	meta := models.RunMeta{
		RunID:       runID,
		ServiceName: sc.ServiceName,
		Status:      models.RunStatusRunning,
		StartedAt:   now,
		TimeoutAt:   now.Add(RunTimeout),
	}
	if err := s.store.CreateRunMeta(ctx, meta); err != nil {
		return SeedResult{}, fmt.Errorf("failed to write run meta: %w", err)
	}

	return SeedResult{
		RunID:       runID,
		ServiceName: sc.ServiceName,
		StartedAt:   meta.StartedAt,
		TimeoutAt:   meta.TimeoutAt,
	}, nil
}

// publishAll publishes every scenario event in order, pausing PublishPause
// between consecutive publishes. Any single publish failure is fatal for
// the run and RunMeta is never written (spec §4.1 step 4, "Failure
// semantics").
func (s *SeederService) publishAll(ctx context.Context, runID string, sc scenario.Scenario) error {
	for i, evt := range sc.Events {
		detail := evt.ResolvedDetail()
		if evt.InjectTestID {
			enriched, err := injectTestID(detail, runID, sc.ServiceName)
			if err != nil {
				return fmt.Errorf("event %d: %w", i, err)
			}
			detail = enriched
		}

		env := bus.Envelope{
			RunID:      runID,
			EventID:    uuid.New().String(),
			Source:     evt.Source,
			DetailType: evt.ResolvedDetailType(),
			Detail:     detail,
			ReceivedAt: time.Now().UTC(),
		}
		if err := s.publisher.Publish(ctx, env); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		slog.Debug("seeder published event", "runId", runID, "index", i, "source", env.Source, "detailType", env.DetailType)

		if i < len(sc.Events)-1 {
			select {
			case <-time.After(PublishPause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// injectTestID adds testRunId, serviceName, and testMode=true into detail
// (spec §6: "__injectTestId ... adds testRunId, serviceName, testMode=true
// into detail before publishing").
func injectTestID(detail json.RawMessage, runID, serviceName string) (json.RawMessage, error) {
	var m map[string]any
	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &m); err != nil {
			return nil, fmt.Errorf("detail is not a JSON object: %w", err)
		}
	}
	if m == nil {
		m = make(map[string]any)
	}
	m["testRunId"] = runID
	m["serviceName"] = serviceName
	m["testMode"] = true

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal enriched detail: %w", err)
	}
	return out, nil
}
