// ABOUTME: Capability contract shared by the concrete chat engines.
// ABOUTME: Defines turn requests, streamed envelopes, and the history lookup surface.

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound indicates the requested conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Envelope kinds. A turn produces zero or more progress envelopes followed by
// exactly one terminal envelope (done or error), never both.
const (
	KindProgress = "progress"
	KindDone     = "done"
	KindError    = "error"
)

// Envelope is one unit of streamed output from a chat turn.
// Progress envelopes carry an opaque engine payload; terminal envelopes carry
// either the resolved session id (done) or a failure message (error).
type Envelope struct {
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// Progress wraps an opaque engine payload in a progress envelope.
func Progress(payload json.RawMessage) Envelope {
	return Envelope{Kind: KindProgress, Payload: payload}
}

// Done builds the successful terminal envelope for a turn.
func Done(sessionID string) Envelope {
	return Envelope{Kind: KindDone, SessionID: sessionID}
}

// Failure builds the failing terminal envelope for a turn.
func Failure(message string) Envelope {
	return Envelope{Kind: KindError, Message: message}
}

// Terminal reports whether the envelope ends its turn.
func (e Envelope) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

// TurnRequest describes one chat turn. It is immutable once constructed and
// passed by value into the engine.
type TurnRequest struct {
	Message    string
	SessionID  string // optional: resume a prior conversation
	WorkingDir string
}

// EmitFunc receives envelopes in the order the engine produced them.
type EmitFunc func(Envelope)

// ConversationSummary is one entry in a conversation listing, newest first.
type ConversationSummary struct {
	SessionID    string    `json:"sessionId"`
	Preview      string    `json:"preview"`
	MessageCount int       `json:"messageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Message is one entry in a conversation history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Conversation is the full history of one logical session.
type Conversation struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
}

// Engine is the contract both chat backends implement. The relay and HTTP
// transports depend only on this interface.
type Engine interface {
	// Name identifies the engine ("claude", "codex").
	Name() string

	// Available reports whether the engine can execute turns. It never
	// returns an error: any probe failure reads as unavailable.
	Available(ctx context.Context) bool

	// ExecuteTurn runs one chat turn, invoking emit with a progress envelope
	// for every event the backend produces. It blocks until the backend has
	// finished streaming. Implementations emit progress envelopes only; the
	// terminal envelope is appended by the shared turn runner, which owns
	// the exactly-one-terminal invariant.
	ExecuteTurn(ctx context.Context, req TurnRequest, emit EmitFunc) error

	// ListConversations returns up to limit conversation summaries scoped to
	// dir, newest first, along with the true total. A limit <= 0 means
	// unbounded.
	ListConversations(ctx context.Context, dir string, limit int) ([]ConversationSummary, int, error)

	// GetConversation returns the full history for a session id, or
	// ErrNotFound.
	GetConversation(ctx context.Context, dir, id string) (*Conversation, error)
}
