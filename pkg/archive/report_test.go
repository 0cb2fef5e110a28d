package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate_SubstitutesKnownTokens(t *testing.T) {
	tmpl := "Run {{ runId }} is {{status}} ({{  unexpectedCount  }})"
	out := RenderTemplate(tmpl, map[string]string{
		"runId":           "it-123",
		"status":          "passed",
		"unexpectedCount": "0",
	})
	assert.Equal(t, "Run it-123 is passed (0)", out)
}

func TestRenderTemplate_LeavesUnknownTokensUntouched(t *testing.T) {
	out := RenderTemplate("{{ runId }} / {{ notProvided }}", map[string]string{"runId": "it-1"})
	assert.Equal(t, "it-1 / {{ notProvided }}", out)
}

func TestRenderTemplate_BuiltinTemplateRenders(t *testing.T) {
	out := RenderTemplate(BuiltinReportTemplate, map[string]string{
		"runId":           "it-1",
		"serviceName":     "checkout",
		"runStatus":       "passed",
		"startedAt":       "2026-01-01T00:00:00Z",
		"verifiedAt":      "2026-01-01T00:05:00Z",
		"matchedCount":    "2",
		"missingCount":    "0",
		"unexpectedCount": "0",
		"matchedRows":     "<tr><td>Started</td></tr>",
		"missingRows":     "",
		"unexpectedRows":  "",
	})
	assert.Contains(t, out, "checkout — passed")
	assert.Contains(t, out, "<tr><td>Started</td></tr>")
	assert.NotContains(t, out, "{{")
}
