// ABOUTME: Tests for session correlation and the shared turn runner.
// ABOUTME: Verifies the exactly-one-terminal invariant and session id resolution.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portico-dev/portico/internal/engine"
)

// scriptedEngine replays a fixed list of progress payloads, then returns err.
type scriptedEngine struct {
	payloads []string
	err      error
}

func (s *scriptedEngine) Name() string                       { return "scripted" }
func (s *scriptedEngine) Available(ctx context.Context) bool { return true }

func (s *scriptedEngine) ExecuteTurn(ctx context.Context, req engine.TurnRequest, emit engine.EmitFunc) error {
	for _, p := range s.payloads {
		emit(engine.Progress(json.RawMessage(p)))
	}
	return s.err
}

func (s *scriptedEngine) ListConversations(ctx context.Context, dir string, limit int) ([]engine.ConversationSummary, int, error) {
	return nil, 0, nil
}

func (s *scriptedEngine) GetConversation(ctx context.Context, dir, id string) (*engine.Conversation, error) {
	return nil, engine.ErrNotFound
}

func collect(eng engine.Engine, req engine.TurnRequest) []engine.Envelope {
	var got []engine.Envelope
	RunTurn(context.Background(), eng, req, func(env engine.Envelope) {
		got = append(got, env)
	})
	return got
}

func TestCorrelator_DiscoveredOverridesSeed(t *testing.T) {
	c := NewCorrelator("caller-id")
	assert.Equal(t, "caller-id", c.SessionID())

	c.Observe(engine.Progress(json.RawMessage(`{"type":"system","session_id":"engine-id"}`)))
	assert.Equal(t, "engine-id", c.SessionID())
}

func TestCorrelator_FirstDiscoverySticks(t *testing.T) {
	c := NewCorrelator("")
	c.Observe(engine.Progress(json.RawMessage(`{"type":"system","session_id":"first"}`)))
	c.Observe(engine.Progress(json.RawMessage(`{"type":"system","session_id":"second"}`)))
	assert.Equal(t, "first", c.SessionID())
}

func TestCorrelator_IgnoresNonMarkers(t *testing.T) {
	c := NewCorrelator("seed")
	c.Observe(engine.Progress(json.RawMessage(`{"type":"assistant","text":"hi"}`)))
	c.Observe(engine.Progress(json.RawMessage(`{"type":"system"}`)))
	c.Observe(engine.Progress(json.RawMessage(`not json`)))
	c.Observe(engine.Done("other"))
	assert.Equal(t, "seed", c.SessionID())
}

func TestRunTurn_EmitsExactlyOneTerminal(t *testing.T) {
	eng := &scriptedEngine{payloads: []string{
		`{"type":"system","session_id":"s-123"}`,
		`{"type":"assistant","text":"hello"}`,
	}}

	got := collect(eng, engine.TurnRequest{Message: "hi"})
	require.Len(t, got, 3)

	terminals := 0
	for _, env := range got {
		if env.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)

	last := got[len(got)-1]
	assert.Equal(t, engine.KindDone, last.Kind)
	assert.Equal(t, "s-123", last.SessionID)
}

func TestRunTurn_DoneCarriesSeedWhenNothingDiscovered(t *testing.T) {
	eng := &scriptedEngine{payloads: []string{`{"type":"assistant","text":"hi"}`}}

	got := collect(eng, engine.TurnRequest{Message: "hi", SessionID: "resume-me"})
	last := got[len(got)-1]
	assert.Equal(t, engine.KindDone, last.Kind)
	assert.Equal(t, "resume-me", last.SessionID)
}

func TestRunTurn_EmptySessionIDIsValid(t *testing.T) {
	eng := &scriptedEngine{}

	got := collect(eng, engine.TurnRequest{Message: "hi"})
	require.Len(t, got, 1)
	assert.Equal(t, engine.KindDone, got[0].Kind)
	assert.Empty(t, got[0].SessionID)
}

func TestRunTurn_FailureTerminatesWithError(t *testing.T) {
	eng := &scriptedEngine{
		payloads: []string{`{"type":"assistant","text":"partial"}`},
		err:      errors.New("engine crashed"),
	}

	got := collect(eng, engine.TurnRequest{Message: "hi"})
	require.Len(t, got, 2)

	last := got[len(got)-1]
	assert.Equal(t, engine.KindError, last.Kind)
	assert.Equal(t, "engine crashed", last.Message)
	assert.Empty(t, last.SessionID)
}
