package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/eventharness/pkg/bus"
	"github.com/codeready-toolchain/eventharness/pkg/services"
)

// seedHandler handles POST /runs (spec §4.1).
func (s *Server) seedHandler(c *gin.Context) {
	var req seedRequest
	// A missing or empty body is valid input (spec §4.1 step 2 treats an
	// empty serviceName as "all"), so binding errors here are ignored.
	_ = c.ShouldBindJSON(&req)

	result, err := s.seeder.Seed(c.Request.Context(), req.ServiceName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// statusHandler handles POST /runs/:runId/status (spec §4.3).
func (s *Server) statusHandler(c *gin.Context) {
	runID := c.Param("runId")
	result, err := s.verifier.Status(c.Request.Context(), runID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// verifyHandler handles POST /runs/:runId/verify (spec §4.4).
func (s *Server) verifyHandler(c *gin.Context) {
	runID := c.Param("runId")
	result, err := s.verifier.Verify(c.Request.Context(), runID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// reportHandler handles POST /runs/:runId/report (spec §4.6).
func (s *Server) reportHandler(c *gin.Context) {
	runID := c.Param("runId")
	location, err := s.report.Generate(c.Request.Context(), runID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runId": runID, "reportLocation": location})
}

// ruleHandler handles POST /rule/:action (spec §4.5).
func (s *Server) ruleHandler(c *gin.Context) {
	action := c.Param("action")
	result, err := services.Do(c.Request.Context(), s.rule, action)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// publishHandler handles POST /bus/publish — local testing without a live
// system under test (SPEC_FULL §4.2).
func (s *Server) publishHandler(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eventID := req.EventID
	if eventID == "" {
		eventID = uuid.New().String()
	}

	env := bus.Envelope{
		RunID:      req.RunID,
		EventID:    eventID,
		Source:     req.Source,
		DetailType: req.DetailType,
		Detail:     req.Detail,
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(c.Request.Context(), env); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"eventId": eventID})
}

// injectEventHandler handles POST /runs/:runId/events — synchronous
// direct injection for test harnesses that want to skip the Bus round
// trip (SPEC_FULL §4.2).
func (s *Server) injectEventHandler(c *gin.Context) {
	runID := c.Param("runId")

	var req injectEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eventID := req.EventID
	if eventID == "" {
		eventID = uuid.New().String()
	}

	env := bus.Envelope{
		RunID:      runID,
		EventID:    eventID,
		Source:     req.Source,
		DetailType: req.DetailType,
		Detail:     req.Detail,
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.collector.Handle(c.Request.Context(), env); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"eventId": eventID})
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *gin.Context) {
	health, err := s.store.Health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "store": health, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "store": health})
}
