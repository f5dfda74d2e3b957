// ABOUTME: Read-only history routes backed by the engine's on-disk transcripts.
// ABOUTME: Listing is newest-first with an optional limit; detail lookup is by session id.

package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/portico-dev/portico/internal/engine"
)

type historyListResponse struct {
	Conversations []engine.ConversationSummary `json:"conversations"`
	Total         int                          `json:"total"`
	HasMore       bool                         `json:"hasMore"`
}

type historyDetailResponse struct {
	SessionID string           `json:"sessionId"`
	Messages  []engine.Message `json:"messages"`
}

// handleHistoryList returns conversation summaries for the gateway's working
// directory. A missing limit defaults to 20; an explicit limit of 0 returns
// everything.
func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	summaries, total, err := s.engine.ListConversations(r.Context(), s.workDir, limit)
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if summaries == nil {
		summaries = []engine.ConversationSummary{}
	}

	s.writeJSON(w, http.StatusOK, historyListResponse{
		Conversations: summaries,
		Total:         total,
		HasMore:       len(summaries) < total,
	})
}

// handleHistoryDetail returns the full message list for one conversation,
// or 404 when the engine has no transcript for the id in this directory.
func (s *Server) handleHistoryDetail(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conv, err := s.engine.GetConversation(r.Context(), s.workDir, sessionID)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("failed to load conversation", "session_id", sessionID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	messages := conv.Messages
	if messages == nil {
		messages = []engine.Message{}
	}

	s.writeJSON(w, http.StatusOK, historyDetailResponse{
		SessionID: conv.SessionID,
		Messages:  messages,
	})
}
