package e2e

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/eventharness/pkg/archive"
	"github.com/codeready-toolchain/eventharness/pkg/models"
)

// sceEvent is a table-friendly stand-in for models.ScenarioEvent.
type sceEvent struct {
	Source       string
	DetailType   string
	Detail       string
	InjectTestID bool
}

// sceExpectation is a table-friendly stand-in for models.Expectation.
type sceExpectation struct {
	Source      string
	DetailType  string
	Detail      string
	MatchFields []string
}

// seedScenarioFiles writes a service's events.json and expectations.json
// directly into the test Archive, the same two files the Seeder and
// Verifier resolve via pkg/scenario.Resolve (spec §4.1 step 3, §4.3 step 2).
func seedScenarioFiles(t *testing.T, app *TestApp, serviceName string, events []sceEvent, expectations []sceExpectation) {
	t.Helper()
	ctx := context.Background()

	sceEvents := make([]models.ScenarioEvent, len(events))
	for i, e := range events {
		sceEvents[i] = models.ScenarioEvent{
			Source:       e.Source,
			DetailType:   e.DetailType,
			Detail:       json.RawMessage(e.Detail),
			InjectTestID: e.InjectTestID,
		}
	}
	eventsJSON, err := json.Marshal(sceEvents)
	require.NoError(t, err)
	require.NoError(t, app.Archive.Put(ctx, archive.ScenarioEventsKey(serviceName), eventsJSON, "application/json"))

	sceExpectations := make([]models.Expectation, len(expectations))
	for i, e := range expectations {
		sceExpectations[i] = models.Expectation{
			Source:     e.Source,
			DetailType: e.DetailType,
			Detail:     json.RawMessage(e.Detail),
			Match:      models.MatchSpec{Fields: e.MatchFields},
		}
	}
	expectationsJSON, err := json.Marshal(sceExpectations)
	require.NoError(t, err)
	require.NoError(t, app.Archive.Put(ctx, archive.ScenarioExpectationsKey(serviceName), expectationsJSON, "application/json"))
}

// seedTwoEventScenario seeds the two-expectation scenario spec §8 scenario
// 1 describes: a "Started" then "Completed" event from svc.a sharing a
// jobId match field.
func seedTwoEventScenario(t *testing.T, app *TestApp, serviceName string) {
	t.Helper()
	seedScenarioFiles(t, app, serviceName,
		[]sceEvent{
			{Source: "svc.a", DetailType: "Started", Detail: `{"jobId":"J1"}`},
			{Source: "svc.a", DetailType: "Completed", Detail: `{"jobId":"J1"}`},
		},
		[]sceExpectation{
			{Source: "svc.a", DetailType: "Started", Detail: `{"jobId":"J1"}`, MatchFields: []string{"detail.jobId"}},
			{Source: "svc.a", DetailType: "Completed", Detail: `{"jobId":"J1"}`, MatchFields: []string{"detail.jobId"}},
		},
	)
}
