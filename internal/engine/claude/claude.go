// ABOUTME: Chat engine backed by the Claude Code CLI in stream-json mode.
// ABOUTME: Each stdout line becomes one opaque progress envelope.

package claude

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

	"github.com/portico-dev/portico/internal/engine"
)

// DefaultBinary is the CLI binary probed on PATH.
const DefaultBinary = "claude"

// maxLineSize bounds a single stream-json line; tool results can be large.
const maxLineSize = 10 * 1024 * 1024

// Engine runs chat turns through the Claude Code CLI. The CLI streams one
// JSON object per line; the leading system/init line carries the session id
// the correlator discovers.
type Engine struct {
	bin          string
	projectsRoot string
	logger       *slog.Logger
}

// New creates a claude engine using the given binary name (empty for the
// default). History is read from the CLI's own project storage under the
// user's home directory.
func New(bin string, logger *slog.Logger) *Engine {
	if bin == "" {
		bin = DefaultBinary
	}

	root := ""
	if home, err := os.UserHomeDir(); err == nil {
		root = filepath.Join(home, ".claude", "projects")
	}

	return &Engine{bin: bin, projectsRoot: root, logger: logger}
}

// Name identifies this engine.
func (e *Engine) Name() string { return "claude" }

// Available reports whether the CLI binary is on PATH. It never errors; any
// lookup failure reads as unavailable.
func (e *Engine) Available(ctx context.Context) bool {
	_, err := exec.LookPath(e.bin)
	return err == nil
}

// ExecuteTurn spawns the CLI for one prompt and emits every stream-json line
// as a progress envelope. It blocks until the subprocess exits. Lines that
// are not valid JSON are dropped with a warning rather than forwarded.
func (e *Engine) ExecuteTurn(ctx context.Context, req engine.TurnRequest, emit engine.EmitFunc) error {
	args := []string{"-p", "--verbose", "--output-format", "stream-json"}
	if req.SessionID != "" {
		args = append(args, "--resume", req.SessionID)
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
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			e.logger.Warn("dropping malformed stream line", "engine", "claude")
			continue
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
		return fmt.Errorf("claude exited: %s", firstLine(msg))
	}
	if scanErr != nil {
		return fmt.Errorf("reading claude output: %w", scanErr)
	}
	return nil
}

// firstLine trims a multi-line error message down to its first line.
func firstLine(s string) string {
	if i := bytes.IndexByte([]byte(s), '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
