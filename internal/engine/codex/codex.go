// ABOUTME: Chat engine backed by the Codex CLI's experimental JSON event stream.
// ABOUTME: Normalizes thread events into the same opaque progress envelopes as claude.

package codex

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/portico-dev/portico/internal/engine"
)

// DefaultBinary is the CLI binary probed on PATH.
const DefaultBinary = "codex"

const maxLineSize = 10 * 1024 * 1024

// cliConfig is the subset of ~/.codex/config.toml we consume.
type cliConfig struct {
	Model string `toml:"model"`
}

// Engine runs chat turns through the Codex CLI. Unlike claude, codex does not
// tag its stream with a system/init line; the engine watches for the
// thread-started event and re-frames it as the system session marker the
// correlator expects, so both engines look identical upstream.
type Engine struct {
	bin          string
	model        string
	sessionsRoot string
	logger       *slog.Logger
}

// New creates a codex engine using the given binary name (empty for the
// default). The CLI's own config.toml supplies the model; history is read
// from its session rollout files.
func New(bin string, logger *slog.Logger) *Engine {
	if bin == "" {
		bin = DefaultBinary
	}

	e := &Engine{bin: bin, logger: logger}
	if home, err := os.UserHomeDir(); err == nil {
		codexHome := filepath.Join(home, ".codex")
		e.sessionsRoot = filepath.Join(codexHome, "sessions")

		var cfg cliConfig
		if _, err := toml.DecodeFile(filepath.Join(codexHome, "config.toml"), &cfg); err == nil {
			e.model = cfg.Model
		}
	}
	return e
}

// Name identifies this engine.
func (e *Engine) Name() string { return "codex" }

// Available reports whether the CLI binary is on PATH.
func (e *Engine) Available(ctx context.Context) bool {
	_, err := exec.LookPath(e.bin)
	return err == nil
}

// threadEvent is the minimal shape needed to spot the session id in the
// event stream. Everything else passes through opaquely.
type threadEvent struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id"`
}

// sessionMarker is the normalized system payload emitted when the thread id
// is discovered, matching the marker shape the claude engine produces
// natively.
type sessionMarker struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// ExecuteTurn spawns the CLI for one prompt and emits every event line as a
// progress envelope. The thread-started event additionally produces a
// synthesized system marker carrying the session id.
func (e *Engine) ExecuteTurn(ctx context.Context, req engine.TurnRequest, emit engine.EmitFunc) error {
	args := []string{"exec", "--json", "--skip-git-repo-check"}
	if req.SessionID != "" {
		args = []string{"exec", "resume", req.SessionID, "--json", "--skip-git-repo-check"}
	}
	if e.model != "" {
		args = append(args, "-m", e.model)
	}
	args = append(args, req.Message)

	cmd := exec.CommandContext(ctx, e.bin, args...)
	cmd.Dir = req.WorkingDir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("opening stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", e.bin, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || !json.Valid(line) {
			continue
		}

		var ev threadEvent
		if json.Unmarshal(line, &ev) == nil && ev.Type == "thread.started" && ev.ThreadID != "" {
			marker, _ := json.Marshal(sessionMarker{Type: "system", SessionID: ev.ThreadID})
			emit(engine.Progress(marker))
		}

		payload := make(json.RawMessage, len(line))
		copy(payload, line)
		emit(engine.Progress(payload))
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		msg := stderr.String()
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("codex exited: %s", firstLine(msg))
	}
	if scanErr != nil {
		return fmt.Errorf("reading codex output: %w", scanErr)
	}
	return nil
}

func firstLine(s string) string {
	if i := bytes.IndexByte([]byte(s), '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
