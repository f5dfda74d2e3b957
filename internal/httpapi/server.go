// ABOUTME: Inbound HTTP transport exposing pairing, streaming chat, and history.
// ABOUTME: All routes are CORS-open; protected routes require the pairing bearer token.

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/portico-dev/portico/internal/engine"
	"github.com/portico-dev/portico/internal/pairing"
)

// defaultListLimit bounds /history/list when the caller omits a limit
// entirely. An explicit limit=0 means "all".
const defaultListLimit = 20

// Server is the inbound HTTP/SSE transport. One HTTP request maps to at most
// one chat turn; there is no multiplexing of turns over a connection.
type Server struct {
	authority *pairing.Authority
	engine    engine.Engine
	workDir   string
	logger    *slog.Logger
}

// Config carries the collaborators the server depends on.
type Config struct {
	Authority *pairing.Authority
	Engine    engine.Engine
	WorkDir   string
	Logger    *slog.Logger
}

// New creates the HTTP transport.
func New(cfg Config) *Server {
	return &Server{
		authority: cfg.Authority,
		engine:    cfg.Engine,
		workDir:   cfg.WorkDir,
		logger:    cfg.Logger,
	}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(corsOpen)

	r.Get("/health", s.handleHealth)
	r.Post("/pair", s.handlePair)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/chat", s.handleChat)
		r.Get("/history/list", s.handleHistoryList)
		r.Get("/history/{sessionID}", s.handleHistoryDetail)
	})

	return r
}

// healthResponse is the JSON response for GET /health.
type healthResponse struct {
	Status string `json:"status"`
	Paired bool   `json:"paired"`
}

// handleHealth reports liveness and whether a client has paired. Open route:
// it leaks nothing beyond the paired flag.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Paired: s.authority.Paired()})
}

// pairRequest is the JSON request body for POST /pair.
type pairRequest struct {
	PairCode string `json:"pairCode"`
}

// pairResponse is the JSON response for a successful pairing.
type pairResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// handlePair validates the pairing code and returns the access token.
// Repeated correct attempts return the same token; wrong codes get a 401
// with no lockout.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, err := s.authority.AttemptPair(req.PairCode)
	if errors.Is(err, pairing.ErrWrongCode) {
		s.logger.Warn("pairing attempt with wrong code", "remote", r.RemoteAddr)
		s.writeError(w, http.StatusUnauthorized, "invalid pairing code")
		return
	}
	if err != nil {
		s.logger.Error("pairing failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("client paired", "remote", r.RemoteAddr)
	s.writeJSON(w, http.StatusOK, pairResponse{Success: true, Token: token})
}

// writeJSON writes a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
