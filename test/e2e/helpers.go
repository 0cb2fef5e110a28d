package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// doGet issues a GET and returns the raw body and status code.
func doGet(url string) ([]byte, int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// doPost issues a POST with a JSON body and returns the raw response body
// and status code. A nil payload sends an empty body.
func doPost(url string, payload interface{}) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(buf)
	}

	resp, err := http.Post(url, "application/json", reader)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// postJSON posts payload and decodes the JSON response into a map,
// failing the test on any non-matching status code.
func (app *TestApp) postJSON(t *testing.T, path string, payload interface{}, expectedStatus int) map[string]interface{} {
	t.Helper()
	body, status, err := doPost(app.BaseURL+path, payload)
	require.NoError(t, err)
	require.Equalf(t, expectedStatus, status, "POST %s: unexpected status, body=%s", path, string(body))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

// getJSON gets path and decodes the JSON response into a map.
func (app *TestApp) getJSON(t *testing.T, path string, expectedStatus int) map[string]interface{} {
	t.Helper()
	body, status, err := doGet(app.BaseURL + path)
	require.NoError(t, err)
	require.Equalf(t, expectedStatus, status, "GET %s: unexpected status, body=%s", path, string(body))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

// Seed calls POST /runs and returns the parsed SeedResult fields.
func (app *TestApp) Seed(t *testing.T, serviceName string) map[string]interface{} {
	t.Helper()
	var payload interface{}
	if serviceName != "" {
		payload = map[string]string{"serviceName": serviceName}
	}
	return app.postJSON(t, "/runs", payload, http.StatusCreated)
}

// InjectEvent calls POST /runs/:runId/events, the synchronous direct-
// injection path used by tests to avoid depending on Bus NOTIFY latency for
// assertions that do not specifically exercise the Bus.
func (app *TestApp) InjectEvent(t *testing.T, runID, source, detailType string, detail interface{}) {
	t.Helper()
	app.postJSON(t, fmt.Sprintf("/runs/%s/events", runID), map[string]interface{}{
		"source":      source,
		"detail-type": detailType,
		"detail":      detail,
	}, http.StatusAccepted)
}

// Status calls POST /runs/:runId/status.
func (app *TestApp) Status(t *testing.T, runID string) map[string]interface{} {
	t.Helper()
	return app.postJSON(t, fmt.Sprintf("/runs/%s/status", runID), nil, http.StatusOK)
}

// Verify calls POST /runs/:runId/verify.
func (app *TestApp) Verify(t *testing.T, runID string) map[string]interface{} {
	t.Helper()
	return app.postJSON(t, fmt.Sprintf("/runs/%s/verify", runID), nil, http.StatusOK)
}

// Report calls POST /runs/:runId/report.
func (app *TestApp) Report(t *testing.T, runID string) map[string]interface{} {
	t.Helper()
	return app.postJSON(t, fmt.Sprintf("/runs/%s/report", runID), nil, http.StatusOK)
}

// WaitForStatus polls Status until it reports one of the wanted values or
// the timeout expires.
func (app *TestApp) WaitForStatus(t *testing.T, runID string, timeout time.Duration, want ...string) string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var last string
	for time.Now().Before(deadline) {
		result := app.Status(t, runID)
		last, _ = result["status"].(string)
		for _, w := range want {
			if last == w {
				return last
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("run %s: timed out waiting for status in %v, last status was %q", runID, want, last)
	return last
}
