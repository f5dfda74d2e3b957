// ABOUTME: Wire format for the broker relay link: one JSON object per WebSocket text frame.
// ABOUTME: A single tagged union covers registration, heartbeat, pairing, and chat relay.

package relay

import "encoding/json"

// Frame types exchanged with the broker.
const (
	TypeRegister     = "register"
	TypePing         = "ping"
	TypePong         = "pong"
	TypePairSuccess  = "pair_success"
	TypeChat         = "chat"
	TypeChatResponse = "chat_response"
	TypeChatDone     = "chat_done"
	TypeChatError    = "chat_error"
)

// Message is the relay frame. Type selects which fields are meaningful;
// unused fields are omitted from the serialized frame.
type Message struct {
	Type string `json:"type"`

	// register
	DeviceID string `json:"deviceId,omitempty"`
	PairCode string `json:"pairCode,omitempty"`

	// chat and its responses
	RequestID string          `json:"requestId,omitempty"`
	Message   string          `json:"message,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}
