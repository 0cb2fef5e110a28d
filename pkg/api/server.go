// Package api exposes the harness's five workers as HTTP (and one
// WebSocket) endpoint, following the teacher's cmd/tarsy/main.go gin
// wiring style (SPEC_FULL §0, §6).
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/eventharness/pkg/bus"
	"github.com/codeready-toolchain/eventharness/pkg/services"
	"github.com/codeready-toolchain/eventharness/pkg/store"
)

// Server wires the services layer to HTTP handlers.
type Server struct {
	store     *store.Client
	seeder    *services.SeederService
	collector *services.CollectorService
	verifier  *services.VerifierService
	report    *services.ReportService
	rule      services.RuleController
	publisher *bus.Publisher
	watch     *watchHub

	router *gin.Engine
}

// NewServer builds a Server and registers every route.
func NewServer(
	st *store.Client,
	seeder *services.SeederService,
	collector *services.CollectorService,
	verifier *services.VerifierService,
	report *services.ReportService,
	rule services.RuleController,
	publisher *bus.Publisher,
) *Server {
	s := &Server{
		store:     st,
		seeder:    seeder,
		collector: collector,
		verifier:  verifier,
		report:    report,
		rule:      rule,
		publisher: publisher,
		watch:     newWatchHub(),
		router:    gin.New(),
	}

	s.router.Use(gin.Recovery(), gin.Logger(), securityHeaders())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthHandler)

	s.router.POST("/runs", s.seedHandler)
	s.router.POST("/runs/:runId/status", s.statusHandler)
	s.router.POST("/runs/:runId/verify", s.verifyHandler)
	s.router.POST("/runs/:runId/report", s.reportHandler)
	s.router.POST("/runs/:runId/events", s.injectEventAndNotifyHandler)
	s.router.GET("/runs/:runId/watch", s.watchHandler)

	s.router.POST("/bus/publish", s.publishHandler)
	s.router.POST("/rule/:action", s.ruleHandler)
}

// injectEventAndNotifyHandler wraps injectEventHandler so the watch-hub
// broadcast (SPEC_FULL §6) fires for the synchronous direct-injection path
// too, not just Bus-delivered events (see BusHandler below).
func (s *Server) injectEventAndNotifyHandler(c *gin.Context) {
	runID := c.Param("runId")
	s.injectEventHandler(c)
	if c.Writer.Status() == http.StatusAccepted {
		s.watch.Notify(runID, wsMessage{Type: "observation", RunID: runID})
	}
}

// BusHandler returns the bus.Handler the background Listener should invoke
// per delivered Envelope: forward to the Collector, then fan out a watch
// notification.
func (s *Server) BusHandler() bus.Handler {
	return func(ctx context.Context, env bus.Envelope) {
		if err := s.collector.Handle(ctx, env); err != nil {
			slog.Error("bus-driven collection failed", "runId", env.RunID, "eventId", env.EventID, "error", err)
			return
		}
		if env.RunID != "" {
			s.watch.Notify(env.RunID, wsMessage{Type: "observation", RunID: env.RunID, EventID: env.EventID})
		}
	}
}

// Router exposes the underlying gin engine, e.g. for http.Server wiring or
// tests using httptest.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// SetRule attaches the RuleController once it exists — constructing it
// requires the Server's own BusHandler, so it cannot be supplied to
// NewServer up front (see cmd/harness/main.go).
func (s *Server) SetRule(rule services.RuleController) {
	s.rule = rule
}
