package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"time"

	"github.com/codeready-toolchain/eventharness/pkg/archive"
	"github.com/codeready-toolchain/eventharness/pkg/models"
	"github.com/codeready-toolchain/eventharness/pkg/store"
)

// ReportSink delivers a rendered report artefact somewhere. The only
// implementation in this repository writes it back to the Archive; other
// delivery channels (email, Slack) are out of scope (spec §1, §4.6).
type ReportSink interface {
	Deliver(ctx context.Context, serviceName, runID string, renderedAt time.Time, body []byte) (location string, err error)
}

// ArchiveReportSink uploads the rendered report to the Archive under its
// spec §6 path.
type ArchiveReportSink struct {
	archiveA archive.Archive
}

// NewArchiveReportSink builds an ArchiveReportSink.
func NewArchiveReportSink(a archive.Archive) *ArchiveReportSink {
	return &ArchiveReportSink{archiveA: a}
}

func (s *ArchiveReportSink) Deliver(ctx context.Context, serviceName, runID string, renderedAt time.Time, body []byte) (string, error) {
	key := archive.ReportKey(serviceName, runID, renderedAt)
	if err := s.archiveA.Put(ctx, key, body, "text/html"); err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}
	return key, nil
}

// ReportService reads a run's verdict and materialized observations and
// renders a human artefact (spec §4.6).
type ReportService struct {
	store    *store.Client
	archiveA archive.Archive
	sink     ReportSink
}

// NewReportService builds a ReportService.
func NewReportService(st *store.Client, a archive.Archive, sink ReportSink) *ReportService {
	return &ReportService{store: st, archiveA: a, sink: sink}
}

// Generate renders and delivers the report for runID, then records its
// location on RunMeta (spec §4.6).
func (s *ReportService) Generate(httpCtx context.Context, runID string) (string, error) {
	ctx, cancel := context.WithTimeout(httpCtx, 15*time.Second)
	defer cancel()

	meta, err := s.store.GetRunMeta(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("failed to load run meta: %w", err)
	}

	observations, err := s.store.ListObservationsByRun(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("failed to load observations: %w", err)
	}
	missing, err := s.store.ListMissingRecords(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("failed to load missing records: %w", err)
	}

	tmpl, err := s.loadTemplate(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load report template: %w", err)
	}

	body := []byte(archive.RenderTemplate(tmpl, s.buildTokens(meta, observations, missing)))

	renderedAt := time.Now().UTC()
	location, err := s.sink.Deliver(ctx, meta.ServiceName, runID, renderedAt, body)
	if err != nil {
		return "", err
	}

	if err := s.store.SetReportLocation(ctx, runID, location); err != nil {
		return "", fmt.Errorf("failed to record report location: %w", err)
	}
	return location, nil
}

func (s *ReportService) loadTemplate(ctx context.Context) (string, error) {
	body, err := s.archiveA.Get(ctx, archive.ReportTemplateKey)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return archive.BuiltinReportTemplate, nil
		}
		return "", err
	}
	return string(body), nil
}

func (s *ReportService) buildTokens(meta models.RunMeta, observations []models.Observation, missing []models.MissingRecord) map[string]string {
	matched := filterObservations(observations, models.ObservationStatusMatched)
	sort.Slice(matched, func(i, j int) bool {
		return indexOf(matched[i]) < indexOf(matched[j])
	})

	unexpected := filterObservations(observations, models.ObservationStatusUnexpected)
	sort.Slice(unexpected, func(i, j int) bool { return unexpected[i].ReceivedAt.Before(unexpected[j].ReceivedAt) })

	sort.Slice(missing, func(i, j int) bool { return missing[i].Index < missing[j].Index })

	verifiedAt := ""
	if meta.VerifiedAt != nil {
		verifiedAt = meta.VerifiedAt.Format(time.RFC3339)
	}

	return map[string]string{
		"runId":           html.EscapeString(meta.RunID),
		"serviceName":     html.EscapeString(meta.ServiceName),
		"runStatus":       html.EscapeString(string(meta.Status)),
		"startedAt":       meta.StartedAt.Format(time.RFC3339),
		"verifiedAt":      verifiedAt,
		"matchedCount":    strconv.Itoa(len(matched)),
		"missingCount":    strconv.Itoa(len(missing)),
		"unexpectedCount": strconv.Itoa(len(unexpected)),
		"matchedRows":     renderObservationRows(matched),
		"unexpectedRows":  renderObservationRows(unexpected),
		"missingRows":     renderMissingRows(missing),
	}
}

func filterObservations(all []models.Observation, status models.ObservationStatus) []models.Observation {
	var out []models.Observation
	for _, o := range all {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

func indexOf(o models.Observation) int {
	if o.MatchedExpectationIndex == nil {
		return -1
	}
	return *o.MatchedExpectationIndex
}

func renderObservationRows(observations []models.Observation) string {
	rows := ""
	for _, o := range observations {
		rows += fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(o.Source), html.EscapeString(o.DetailType), html.EscapeString(o.EventID))
	}
	return rows
}

func renderMissingRows(missing []models.MissingRecord) string {
	rows := ""
	for _, m := range missing {
		rows += fmt.Sprintf("<tr><td>%d</td><td>%s</td><td>%s</td></tr>\n",
			m.Index, html.EscapeString(m.ExpectedEvent.Source), html.EscapeString(m.ExpectedEvent.DetailType))
	}
	return rows
}
