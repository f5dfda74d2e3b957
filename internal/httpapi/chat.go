// ABOUTME: The streaming chat route: one POST maps to one turn and one SSE stream.
// ABOUTME: Envelope frames are written in production order, ending with one terminal frame.

package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/portico-dev/portico/internal/engine"
	"github.com/portico-dev/portico/internal/session"
)

// chatRequest is the JSON request body for POST /chat.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// handleChat validates the request, switches the response to a server-sent
// event stream, and runs one chat turn against the engine. Every envelope is
// written as one event frame whose payload is the JSON-serialized envelope;
// the terminal frame carries the corrected logical session id.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	// Check streaming support before starting the turn (fail fast).
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	turn := engine.TurnRequest{
		Message:    req.Message,
		SessionID:  req.SessionID,
		WorkingDir: s.workDir,
	}

	// The turn is detached from the request context: a client disconnect
	// does not interrupt an in-flight engine call, the remaining writes
	// just become no-ops on the dead connection.
	ctx := context.WithoutCancel(r.Context())

	session.RunTurn(ctx, s.engine, turn, func(env engine.Envelope) {
		s.writeSSEEvent(w, flusher, env)
	})
}

// writeSSEEvent writes a single envelope as an SSE frame and flushes it.
func (s *Server) writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, env engine.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", env.Kind)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
