package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/eventharness/pkg/models"
)

// seedRun creates a RunMeta directly against the Store, bypassing the
// Seeder HTTP endpoint so tests can control timeoutAt precisely (spec §8
// scenario 5 needs an already-elapsed timeout, which the Seeder's real
// 15-minute window makes impractical to wait out in a test).
func seedRun(t *testing.T, app *TestApp, runID string, timeoutAt time.Time) {
	t.Helper()
	err := app.Store.CreateRunMeta(context.Background(), models.RunMeta{
		RunID:       runID,
		ServiceName: "all",
		Status:      models.RunStatusRunning,
		StartedAt:   time.Now().UTC(),
		TimeoutAt:   timeoutAt,
	})
	require.NoError(t, err)
}

// TestScenario1_HappyPathTwoEvents covers spec §8 scenario 1: two matching
// events, both expectations satisfied in order, runStatus=passed.
func TestScenario1_HappyPathTwoEvents(t *testing.T) {
	app := NewTestApp(t)
	runID := "it-scenario-1"
	seedRun(t, app, runID, time.Now().UTC().Add(time.Hour))

	// The built-in fallback scenario ("all") expects a single
	// SmokeTest.Started event with jobId=smoke-001 (pkg/scenario/load.go
	// defaultScenario) — match it exactly, then add a second independent
	// event/expectation pair is unnecessary since Verify only checks
	// against whatever the resolved scenario's expectations are. For a
	// genuine two-expectation happy path we seed the scenario files
	// ourselves instead of relying on the built-in fallback.
	seedTwoEventScenario(t, app, "all")

	app.InjectEvent(t, runID, "svc.a", "Started", map[string]string{"jobId": "J1"})
	app.InjectEvent(t, runID, "svc.a", "Completed", map[string]string{"jobId": "J1"})

	result := app.Verify(t, runID)
	require.Equal(t, "passed", result["runStatus"])
	require.EqualValues(t, 2, result["matchedCount"])
	require.EqualValues(t, 0, result["missingCount"])
	require.EqualValues(t, 0, result["unexpectedCount"])
	require.EqualValues(t, 2, result["totalExpected"])
}

// TestScenario2_MissingEvent covers spec §8 scenario 2: the second
// expected event never arrives.
func TestScenario2_MissingEvent(t *testing.T) {
	app := NewTestApp(t)
	runID := "it-scenario-2"
	seedRun(t, app, runID, time.Now().UTC().Add(time.Hour))
	seedTwoEventScenario(t, app, "all")

	app.InjectEvent(t, runID, "svc.a", "Started", map[string]string{"jobId": "J1"})
	// "Completed" never arrives.

	result := app.Verify(t, runID)
	require.Equal(t, "failed", result["runStatus"])
	require.EqualValues(t, 1, result["matchedCount"])
	require.EqualValues(t, 1, result["missingCount"])
	require.EqualValues(t, 0, result["unexpectedCount"])
}

// TestScenario3_DuplicateDelivery covers spec §8 scenario 3: the bus
// redelivers the first event twice; the second copy becomes unexpected.
func TestScenario3_DuplicateDelivery(t *testing.T) {
	app := NewTestApp(t)
	runID := "it-scenario-3"
	seedRun(t, app, runID, time.Now().UTC().Add(time.Hour))
	seedTwoEventScenario(t, app, "all")

	app.InjectEvent(t, runID, "svc.a", "Started", map[string]string{"jobId": "J1"})
	app.InjectEvent(t, runID, "svc.a", "Started", map[string]string{"jobId": "J1"}) // redelivery
	app.InjectEvent(t, runID, "svc.a", "Completed", map[string]string{"jobId": "J1"})

	result := app.Verify(t, runID)
	require.Equal(t, "failed", result["runStatus"])
	require.EqualValues(t, 2, result["matchedCount"])
	require.EqualValues(t, 0, result["missingCount"])
	require.EqualValues(t, 1, result["unexpectedCount"])
}

// TestScenario4_MatchFieldMismatch covers spec §8 scenario 4: the arriving
// event's match field disagrees with what the expectation demands.
func TestScenario4_MatchFieldMismatch(t *testing.T) {
	app := NewTestApp(t)
	runID := "it-scenario-4"
	seedRun(t, app, runID, time.Now().UTC().Add(time.Hour))
	seedTwoEventScenario(t, app, "all")

	app.InjectEvent(t, runID, "svc.a", "Started", map[string]string{"jobId": "J2"})
	// "Completed" never arrives either, but the point under test is the
	// mismatch on "Started": it cannot satisfy expectation 0, so it falls
	// through to unexpected once re-scanned.

	result := app.Verify(t, runID)
	require.Equal(t, "failed", result["runStatus"])
	require.EqualValues(t, 0, result["matchedCount"])
	require.EqualValues(t, 1, result["missingCount"])
	require.EqualValues(t, 1, result["unexpectedCount"])
}

// TestScenario5_TimeoutDominatesLateArrival covers spec §8 scenario 5: a
// status poll observes timeoutAt has passed and self-heals to timeout;
// every expectation's event does eventually arrive (via "redelivery"), but
// verify still reports failed because timeout dominates (spec §4.4
// "Verdict").
func TestScenario5_TimeoutDominatesLateArrival(t *testing.T) {
	app := NewTestApp(t)
	runID := "it-scenario-5"
	seedRun(t, app, runID, time.Now().UTC().Add(-time.Minute)) // already elapsed
	seedTwoEventScenario(t, app, "all")

	status := app.Status(t, runID)
	require.Equal(t, "timeout", status["status"])

	// Late arrivals after the timeout self-heal still land as Observations.
	app.InjectEvent(t, runID, "svc.a", "Started", map[string]string{"jobId": "J1"})
	app.InjectEvent(t, runID, "svc.a", "Completed", map[string]string{"jobId": "J1"})

	result := app.Verify(t, runID)
	require.Equal(t, "failed", result["runStatus"])
	require.EqualValues(t, 2, result["matchedCount"])
}

// TestScenario6_ZeroExpectationRun covers spec §8 scenario 6: a run with no
// expectations at all still fails if any stray event arrives.
func TestScenario6_ZeroExpectationRun(t *testing.T) {
	app := NewTestApp(t)
	runID := "it-scenario-6"
	seedRun(t, app, runID, time.Now().UTC().Add(time.Hour))
	seedScenarioFiles(t, app, "all", nil, nil)

	app.InjectEvent(t, runID, "svc.x", "Unexpected", map[string]string{"jobId": "nobody-asked"})

	result := app.Verify(t, runID)
	require.Equal(t, "failed", result["runStatus"])
	require.EqualValues(t, 0, result["matchedCount"])
	require.EqualValues(t, 0, result["missingCount"])
	require.EqualValues(t, 1, result["unexpectedCount"])
	require.EqualValues(t, 0, result["totalExpected"])
}

// TestHappyPath_FullPipeline exercises seed (real scenario publish over
// the Bus) through report, the complete worker chain end to end.
func TestHappyPath_FullPipeline(t *testing.T) {
	app := NewTestApp(t)
	seedScenarioFiles(t, app, "checkout",
		[]sceEvent{
			{Source: "checkout.svc", DetailType: "Order.Placed", Detail: `{"orderId":"O1"}`, InjectTestID: true},
		},
		[]sceExpectation{
			{Source: "checkout.svc", DetailType: "Order.Placed", Detail: `{"orderId":"O1"}`, MatchFields: []string{"detail.orderId"}},
		},
	)

	seedResp := app.Seed(t, "checkout")
	runID, _ := seedResp["runId"].(string)
	require.NotEmpty(t, runID)
	require.Equal(t, "checkout", seedResp["serviceName"])

	status := app.WaitForStatus(t, runID, 5*time.Second, "ready", "timeout")
	require.Equal(t, "ready", status)

	result := app.Verify(t, runID)
	require.Equal(t, "passed", result["runStatus"])
	require.EqualValues(t, 1, result["matchedCount"])

	report := app.Report(t, runID)
	require.NotEmpty(t, report["reportLocation"])
}
