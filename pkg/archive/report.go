package archive

import (
	"regexp"
)

// tokenPattern matches {{ token }} placeholders, tolerating surrounding
// whitespace (spec §4.6: "simple `{{ token }}` substitution").
var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// RenderTemplate substitutes every {{ token }} in tmpl with tokens[token],
// leaving unrecognized tokens untouched. This is deliberately not
// html/template: the spec calls for simple substitution, not a
// control-flow templating language, and the report's only caller fully
// controls what ends up inside each token's value.
func RenderTemplate(tmpl string, tokens map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := tokenPattern.FindStringSubmatch(match)[1]
		if v, ok := tokens[key]; ok {
			return v
		}
		return match
	})
}

// BuiltinReportTemplate is used when reports/templates/base.html is absent
// from the Archive (spec §4.6 "falls back to a built-in template").
const BuiltinReportTemplate = `<!DOCTYPE html>
<html>
<head><title>Test run {{ runId }}</title></head>
<body>
<h1>{{ serviceName }} — {{ runStatus }}</h1>
<p>Run {{ runId }}, started {{ startedAt }}, verified {{ verifiedAt }}.</p>
<h2>Matched ({{ matchedCount }})</h2>
{{ matchedRows }}
<h2>Missing ({{ missingCount }})</h2>
{{ missingRows }}
<h2>Unexpected ({{ unexpectedCount }})</h2>
{{ unexpectedRows }}
</body>
</html>
`
