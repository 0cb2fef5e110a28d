package archive

import (
	"fmt"
	"strings"
	"time"
)

// ScenarioEventsKey is the Archive path for a service's ordered event
// sequence (spec §6).
func ScenarioEventsKey(serviceName string) string {
	return fmt.Sprintf("seed/services/%s/events.json", serviceName)
}

// ScenarioExpectationsKey is the Archive path for a service's expectation
// set (spec §6).
func ScenarioExpectationsKey(serviceName string) string {
	return fmt.Sprintf("seed/services/%s/expectations.json", serviceName)
}

// RawEventKey is the Archive path the Collector archives a bus envelope
// under, time-partitioned by UTC date (spec §4.2 step 3, §6).
func RawEventKey(runID string, receivedAt time.Time, eventID string) string {
	t := receivedAt.UTC()
	isoTs := t.Format("20060102T150405.000Z")
	return fmt.Sprintf("events/testruns/%s/%04d/%02d/%02d/%s-%s.json",
		runID, t.Year(), t.Month(), t.Day(), isoTs, eventID)
}

// ReportKey is the Archive path the Report producer uploads a run's
// rendered report to (spec §4.6, §6).
func ReportKey(serviceName, runID string, renderedAt time.Time) string {
	t := renderedAt.UTC()
	isoTs := t.Format("20060102T150405.000Z")
	return fmt.Sprintf("reports/testruns/%s/%04d/%02d/%02d/%s-%s.html",
		serviceName, t.Year(), t.Month(), t.Day(), isoTs, runID)
}

// ReportTemplateKey is the Archive path for the optional HTML report
// template (spec §4.6, §6).
const ReportTemplateKey = "reports/templates/base.html"

// AllServicesFallback is the scenario fallback name the Seeder resolves to
// when a requested service has no scenario files of its own (spec §4.1
// step 2).
const AllServicesFallback = "all"

// NormalizeServiceName lowercases a requested service name, falling back
// to AllServicesFallback for an empty request (spec §4.1 step 2).
func NormalizeServiceName(requested string) string {
	if requested == "" {
		return AllServicesFallback
	}
	return strings.ToLower(requested)
}
