// ABOUTME: Tracks the logical session id for one chat turn across its envelope stream.
// ABOUTME: A system-emitted session id discovered mid-stream overrides the caller's id.

package session

import (
	"encoding/json"

	"github.com/portico-dev/portico/internal/engine"
)

// systemMarker is the envelope payload shape that carries an engine-assigned
// session id. Both engines frame it the same way: a "system"-class event with
// a session_id field.
type systemMarker struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// Correlator resolves the logical session id for a single turn. The caller
// seeds it with the id the client supplied (possibly empty for a brand-new
// conversation); the first system-emitted id observed in the stream becomes
// authoritative and sticks for the rest of the turn.
type Correlator struct {
	seed       string
	discovered string
}

// NewCorrelator creates a correlator seeded with the caller-supplied id.
func NewCorrelator(callerID string) *Correlator {
	return &Correlator{seed: callerID}
}

// Observe inspects one envelope for a system session marker. Non-progress
// envelopes and payloads without the marker are ignored.
func (c *Correlator) Observe(env engine.Envelope) {
	if c.discovered != "" || env.Kind != engine.KindProgress || len(env.Payload) == 0 {
		return
	}

	var m systemMarker
	if err := json.Unmarshal(env.Payload, &m); err != nil {
		return
	}
	if m.Type == "system" && m.SessionID != "" {
		c.discovered = m.SessionID
	}
}

// SessionID returns the resolved logical session id: the discovered id when
// one was observed, otherwise the caller-supplied seed. An empty result is
// valid for a turn that never surfaced a session id.
func (c *Correlator) SessionID() string {
	if c.discovered != "" {
		return c.discovered
	}
	return c.seed
}
