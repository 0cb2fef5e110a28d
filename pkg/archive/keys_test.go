package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeServiceName(t *testing.T) {
	assert.Equal(t, "all", NormalizeServiceName(""))
	assert.Equal(t, "checkout", NormalizeServiceName("Checkout"))
	assert.Equal(t, "checkout", NormalizeServiceName("CHECKOUT"))
}

func TestScenarioKeys(t *testing.T) {
	assert.Equal(t, "seed/services/checkout/events.json", ScenarioEventsKey("checkout"))
	assert.Equal(t, "seed/services/checkout/expectations.json", ScenarioExpectationsKey("checkout"))
}

func TestRawEventKey_TimePartitioned(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)
	key := RawEventKey("it-abc", ts, "evt-1")
	assert.Equal(t, "events/testruns/it-abc/2026/03/05/20260305T103000.000Z-evt-1.json", key)
}

func TestReportKey_TimePartitioned(t *testing.T) {
	ts := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	key := ReportKey("checkout", "it-abc", ts)
	assert.Equal(t, "reports/testruns/checkout/2026/12/31/20261231T235959.000Z-it-abc.html", key)
}
