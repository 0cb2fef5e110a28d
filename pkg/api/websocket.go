package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards watching a run may come from anywhere in dev
	},
}

// wsMessage is one event pushed to a watching dashboard (SPEC_FULL §6).
type wsMessage struct {
	Type    string `json:"type"`
	RunID   string `json:"runId,omitempty"`
	EventID string `json:"eventId,omitempty"`
}

// watchHub fans out Observation-arrival notifications to every client
// watching a given run, adapted from the teacher's WSHub for per-run
// instead of per-session broadcast groups.
type watchHub struct {
	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]bool
}

func newWatchHub() *watchHub {
	return &watchHub{clients: make(map[string]map[*websocket.Conn]bool)}
}

func (h *watchHub) register(runID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[runID] == nil {
		h.clients[runID] = make(map[*websocket.Conn]bool)
	}
	h.clients[runID][conn] = true
}

func (h *watchHub) unregister(runID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[runID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.clients, runID)
		}
	}
	_ = conn.Close()
}

// Notify broadcasts a message to every client watching runID. It is
// observability sugar with no effect on the run's state machine
// (SPEC_FULL §6); a write failure is logged, and the client stays
// registered until its read loop in watchHandler ends.
func (h *watchHub) Notify(runID string, msg wsMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients[runID] {
		if err := conn.WriteJSON(msg); err != nil {
			slog.Warn("watch hub: failed to write to client", "runId", runID, "error", err)
		}
	}
}

// watchHandler handles GET /runs/:runId/watch.
func (s *Server) watchHandler(c *gin.Context) {
	runID := c.Param("runId")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("watch: failed to upgrade connection", "runId", runID, "error", err)
		return
	}

	s.watch.register(runID, conn)
	_ = conn.WriteJSON(wsMessage{Type: "connected", RunID: runID})

	go func() {
		defer s.watch.unregister(runID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
