package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/codeready-toolchain/eventharness/pkg/archive"
	"github.com/codeready-toolchain/eventharness/pkg/models"
	"github.com/codeready-toolchain/eventharness/pkg/scenario"
	"github.com/codeready-toolchain/eventharness/pkg/store"
)

// StatusResult is the Verifier's status-mode contract response
// (spec §4.3). Status is "unknown" when RunMeta is absent.
type StatusResult struct {
	Status        string `json:"status"`
	ObservedCount int64  `json:"observedCount"`
	ExpectedCount int    `json:"expectedCount"`
}

// VerifyResult is the Verifier's verify-mode contract response (spec §4.4),
// plus the recovered informational latency field (SPEC_FULL §4.3/4.4,
// original_source/verifier.py).
type VerifyResult struct {
	RunStatus       string           `json:"runStatus"`
	MatchedCount    int              `json:"matchedCount"`
	MissingCount    int              `json:"missingCount"`
	UnexpectedCount int              `json:"unexpectedCount"`
	TotalExpected   int              `json:"totalExpected"`
	MatchedLatency  map[int]int64    `json:"matchedLatencyMs"`
	Missing         []models.MissingRecord `json:"missing"`
}

// VerifierService computes run readiness and, once a run is terminal,
// reconciles expectations against observations (spec §4.3, §4.4).
type VerifierService struct {
	store    *store.Client
	archiveA archive.Archive
}

// NewVerifierService builds a VerifierService.
func NewVerifierService(st *store.Client, a archive.Archive) *VerifierService {
	return &VerifierService{store: st, archiveA: a}
}

// Status implements spec §4.3: load RunMeta, count observations, and
// conditionally self-heal the status to timeout or ready.
func (s *VerifierService) Status(httpCtx context.Context, runID string) (StatusResult, error) {
	ctx, cancel := context.WithTimeout(httpCtx, 10*time.Second)
	defer cancel()

	meta, err := s.store.GetRunMeta(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return StatusResult{Status: "unknown"}, nil
		}
		return StatusResult{}, fmt.Errorf("failed to load run meta: %w", err)
	}

	sc, err := scenario.Resolve(ctx, s.archiveA, meta.ServiceName)
	if err != nil {
		return StatusResult{}, fmt.Errorf("failed to load expectation set: %w", err)
	}
	expectedCount := len(sc.Expectations)

	observations, err := s.store.ListObservationsByRun(ctx, runID)
	if err != nil {
		return StatusResult{}, fmt.Errorf("failed to count observations: %w", err)
	}
	observedCount := int64(len(observations))

	now := time.Now().UTC()

	// A run already at timeout, passed or failed keeps that status, so a
	// poll never moves it backward (spec §3 invariant 3).
	switch meta.Status {
	case models.RunStatusTimeout, models.RunStatusPassed, models.RunStatusFailed:
		return StatusResult{Status: string(meta.Status), ObservedCount: observedCount, ExpectedCount: expectedCount}, nil
	}

	// Timeout wins over ready (spec §4.3 "Tie-break").
	if !now.Before(meta.TimeoutAt) && meta.Status != models.RunStatusTimeout {
		if _, err := s.store.TransitionStatus(ctx, runID, models.RunStatusTimeout); err != nil {
			return StatusResult{}, fmt.Errorf("failed to transition to timeout: %w", err)
		}
		return StatusResult{Status: string(models.RunStatusTimeout), ObservedCount: observedCount, ExpectedCount: expectedCount}, nil
	}

	if expectedCount > 0 && observedCount >= int64(expectedCount) {
		if _, err := s.store.TransitionStatus(ctx, runID, models.RunStatusReady); err != nil {
			return StatusResult{}, fmt.Errorf("failed to transition to ready: %w", err)
		}
		return StatusResult{Status: string(models.RunStatusReady), ObservedCount: observedCount, ExpectedCount: expectedCount}, nil
	}

	return StatusResult{Status: string(models.RunStatusRunning), ObservedCount: observedCount, ExpectedCount: expectedCount}, nil
}

// Verify implements spec §4.4: greedy first-match reconciliation of
// expectations against observations, in expectation-declared order against
// arrival-ordered candidates.
func (s *VerifierService) Verify(httpCtx context.Context, runID string) (VerifyResult, error) {
	ctx, cancel := context.WithTimeout(httpCtx, 30*time.Second)
	defer cancel()

	meta, err := s.store.GetRunMeta(ctx, runID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("failed to load run meta: %w", err)
	}

	sc, err := scenario.Resolve(ctx, s.archiveA, meta.ServiceName)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("failed to load scenario: %w", err)
	}

	// Re-verify is idempotent: clear any prior MissingRecords before
	// recomputing (spec §5 hazard 4).
	if err := s.store.DeleteMissingRecords(ctx, runID); err != nil {
		return VerifyResult{}, fmt.Errorf("failed to clear prior missing records: %w", err)
	}

	claimed := make(map[string]bool) // observation sort key -> already matched
	result := VerifyResult{
		TotalExpected:  len(sc.Expectations),
		MatchedLatency: make(map[int]int64),
	}

	now := time.Now().UTC()

	for i, exp := range sc.Expectations {
		// Match-field dot-paths (e.g. detail.jobId) are rooted at the event
		// body, so compare the whole expectation against the whole envelope.
		expBody, err := json.Marshal(exp)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("failed to encode expectation %d: %w", i, err)
		}
		candidates, err := s.store.ListObservationsByDetailTypeSource(ctx, runID, exp.Source, exp.DetailType)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("failed to list candidates for expectation %d: %w", i, err)
		}
		// ListObservationsByDetailTypeSource already returns arrival order
		// (sort-key ASC); re-sort defensively in case a caller's fake
		// Archive/Store doesn't guarantee it.
		sort.Slice(candidates, func(a, b int) bool { return candidates[a].SortKey < candidates[b].SortKey })

		matchedIdx := -1
		for ci, cand := range candidates {
			if claimed[cand.SortKey] {
				continue
			}
			body, err := s.fetchBody(ctx, cand)
			if err != nil {
				return VerifyResult{}, fmt.Errorf("failed to fetch observation body for expectation %d: %w", i, err)
			}
			if scenario.MatchesAll(expBody, body, exp.Match.Fields) {
				matchedIdx = ci
				break
			}
		}

		if matchedIdx == -1 {
			if err := s.store.PutMissingRecord(ctx, models.MissingRecord{
				RunID:         runID,
				Index:         i,
				ExpectedEvent: exp,
				Status:        "missed",
				CheckedAt:     now,
			}); err != nil {
				return VerifyResult{}, fmt.Errorf("failed to write missing record for expectation %d: %w", i, err)
			}
			result.MissingCount++
			continue
		}

		cand := candidates[matchedIdx]
		claimed[cand.SortKey] = true
		if err := s.store.MarkMatched(ctx, runID, cand.SortKey, i, now); err != nil {
			return VerifyResult{}, fmt.Errorf("failed to mark observation matched for expectation %d: %w", i, err)
		}
		result.MatchedCount++
		result.MatchedLatency[i] = cand.ReceivedAt.Sub(meta.StartedAt).Milliseconds()
	}

	all, err := s.store.ListObservationsByRun(ctx, runID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("failed to re-scan observations: %w", err)
	}
	for _, o := range all {
		if o.Status == models.ObservationStatusNew {
			if err := s.store.MarkUnexpected(ctx, runID, o.SortKey, now); err != nil {
				return VerifyResult{}, fmt.Errorf("failed to mark observation %s unexpected: %w", o.SortKey, err)
			}
			result.UnexpectedCount++
		}
	}

	missing, err := s.store.ListMissingRecords(ctx, runID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("failed to list missing records: %w", err)
	}
	result.Missing = missing

	var finalStatus models.RunStatus
	switch {
	case meta.Status == models.RunStatusTimeout:
		finalStatus = models.RunStatusFailed
	case result.MissingCount > 0 || result.UnexpectedCount > 0:
		finalStatus = models.RunStatusFailed
	default:
		finalStatus = models.RunStatusPassed
	}
	result.RunStatus = string(finalStatus)

	if err := s.store.SetVerified(ctx, runID, finalStatus, now); err != nil {
		return VerifyResult{}, fmt.Errorf("failed to record verdict: %w", err)
	}

	return result, nil
}

// fetchBody returns the JSON body to match against: the full archived raw
// envelope when an archive key exists, otherwise nothing matches
// (an Observation archived with a null key is treated as fail-open per
// spec §5 "Ordering guarantees" — it simply never satisfies an
// expectation, it is not an error).
func (s *VerifierService) fetchBody(ctx context.Context, o models.Observation) ([]byte, error) {
	if o.ArchiveKey == "" {
		return []byte("{}"), nil
	}
	raw, err := s.archiveA.Get(ctx, o.ArchiveKey)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return []byte("{}"), nil
		}
		return nil, err
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("archived envelope is not valid JSON")
	}
	return raw, nil
}
