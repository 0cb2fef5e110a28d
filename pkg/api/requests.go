package api

import "encoding/json"

// seedRequest is the body of POST /runs (spec §4.1, §6).
type seedRequest struct {
	ServiceName string `json:"serviceName"`
}

// publishRequest is the body of POST /bus/publish, the direct-publish
// testing entry point into the Bus (SPEC_FULL §4.2).
type publishRequest struct {
	RunID      string `json:"runId" binding:"required"`
	EventID    string `json:"eventId"`
	Source     string `json:"source" binding:"required"`
	DetailType string `json:"detail-type" binding:"required"`
	Detail     json.RawMessage `json:"detail"`
}

// injectEventRequest is the body of POST /runs/:runId/events, the
// synchronous direct-injection entry point bypassing the Bus entirely
// (SPEC_FULL §4.2).
type injectEventRequest struct {
	EventID    string `json:"eventId"`
	Source     string `json:"source" binding:"required"`
	DetailType string `json:"detail-type" binding:"required"`
	Detail     json.RawMessage `json:"detail"`
}
