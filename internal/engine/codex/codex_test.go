// ABOUTME: Tests for Codex CLI execution framing and rollout history parsing.
// ABOUTME: Uses a stub binary for the event stream and fixture rollout files for history.

package codex

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portico-dev/portico/internal/engine"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return &Engine{
		bin:          DefaultBinary,
		sessionsRoot: t.TempDir(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// stubBinary writes an executable shell script that prints the given lines
// to stdout, standing in for the codex CLI.
func stubBinary(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codex-stub")
	script := "#!/bin/sh\n"
	for _, line := range lines {
		script += "echo '" + line + "'\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeRollout(t *testing.T, e *Engine, name string, lines ...string) string {
	t.Helper()
	dir := filepath.Join(e.sessionsRoot, "2026", "08", "30")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))
	return path
}

func TestExecuteTurn_SynthesizesSessionMarker(t *testing.T) {
	e := testEngine(t)
	e.bin = stubBinary(t,
		`{"type":"thread.started","thread_id":"th-123"}`,
		`{"type":"item.completed","item":{"type":"agent_message","text":"hi"}}`,
	)

	var got []engine.Envelope
	err := e.ExecuteTurn(context.Background(), engine.TurnRequest{Message: "hello", WorkingDir: t.TempDir()}, func(env engine.Envelope) {
		got = append(got, env)
	})
	require.NoError(t, err)

	// thread.started yields the normalized marker first, then the raw event.
	require.Len(t, got, 3)
	for _, env := range got {
		assert.Equal(t, engine.KindProgress, env.Kind)
	}

	var marker struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(got[0].Payload, &marker))
	assert.Equal(t, "system", marker.Type)
	assert.Equal(t, "th-123", marker.SessionID)

	assert.JSONEq(t, `{"type":"thread.started","thread_id":"th-123"}`, string(got[1].Payload))
}

func TestExecuteTurn_BinaryFailure(t *testing.T) {
	e := testEngine(t)
	path := filepath.Join(t.TempDir(), "codex-stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho 'boom: model not found' >&2\nexit 1\n"), 0o755))
	e.bin = path

	err := e.ExecuteTurn(context.Background(), engine.TurnRequest{Message: "hello", WorkingDir: t.TempDir()}, func(engine.Envelope) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "codex exited")
	assert.Contains(t, err.Error(), "boom: model not found")
}

func TestListConversations_ScopedByCwd(t *testing.T) {
	e := testEngine(t)

	writeRollout(t, e, "rollout-a.jsonl",
		`{"timestamp":"2026-08-30T10:00:00Z","type":"session_meta","payload":{"id":"sess-a","cwd":"/home/user/project"}}`,
		`{"timestamp":"2026-08-30T10:00:01Z","type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"hello codex"}]}}`,
		`{"timestamp":"2026-08-30T10:00:05Z","type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"hello"}]}}`,
	)
	writeRollout(t, e, "rollout-b.jsonl",
		`{"timestamp":"2026-08-30T11:00:00Z","type":"session_meta","payload":{"id":"sess-b","cwd":"/somewhere/else"}}`,
		`{"timestamp":"2026-08-30T11:00:01Z","type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"other project"}]}}`,
	)

	summaries, total, err := e.ListConversations(context.Background(), "/home/user/project", 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "sess-a", summaries[0].SessionID)
	assert.Equal(t, "hello codex", summaries[0].Preview)
	assert.Equal(t, 2, summaries[0].MessageCount)
}

func TestListConversations_MissingStore(t *testing.T) {
	e := testEngine(t)
	e.sessionsRoot = filepath.Join(t.TempDir(), "does-not-exist")

	summaries, total, err := e.ListConversations(context.Background(), "/home/user/project", 0)
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.Zero(t, total)
}

func TestGetConversation(t *testing.T) {
	e := testEngine(t)

	writeRollout(t, e, "rollout.jsonl",
		`{"timestamp":"2026-08-30T10:00:00Z","type":"session_meta","payload":{"id":"sess-a","cwd":"/home/user/project"}}`,
		`{"timestamp":"2026-08-30T10:00:01Z","type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"question"}]}}`,
		`{"timestamp":"2026-08-30T10:00:02Z","type":"response_item","payload":{"type":"reasoning","role":"","content":[]}}`,
		`{"timestamp":"2026-08-30T10:00:05Z","type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"answer"}]}}`,
	)

	conv, err := e.GetConversation(context.Background(), "/home/user/project", "sess-a")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "user", conv.Messages[0].Role)
	assert.Equal(t, "question", conv.Messages[0].Content)
	assert.Equal(t, "assistant", conv.Messages[1].Role)
	assert.Equal(t, "answer", conv.Messages[1].Content)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 1, 0, time.UTC), conv.Messages[0].Timestamp.UTC())
}

func TestGetConversation_WrongDir(t *testing.T) {
	e := testEngine(t)

	writeRollout(t, e, "rollout.jsonl",
		`{"timestamp":"2026-08-30T10:00:00Z","type":"session_meta","payload":{"id":"sess-a","cwd":"/home/user/project"}}`,
	)

	_, err := e.GetConversation(context.Background(), "/different/dir", "sess-a")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}
