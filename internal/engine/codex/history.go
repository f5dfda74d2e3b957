// ABOUTME: Read-only conversation history from Codex CLI session rollout files.
// ABOUTME: Walks ~/.codex/sessions/**, scoping transcripts by their recorded cwd.

package codex

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/portico-dev/portico/internal/engine"
)

// rolloutLine is one entry in a codex session rollout file. The session_meta
// entry identifies the session and its working directory; response_item
// entries carry the visible messages.
type rolloutLine struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type sessionMeta struct {
	ID  string `json:"id"`
	Cwd string `json:"cwd"`
}

type responseItem struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// ListConversations walks the session store and returns summaries for
// sessions recorded in dir, newest first.
func (e *Engine) ListConversations(ctx context.Context, dir string, limit int) ([]engine.ConversationSummary, int, error) {
	files, err := e.rolloutFiles(ctx)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]engine.ConversationSummary, 0, len(files))
	for _, path := range files {
		meta, messages, err := parseRollout(path)
		if err != nil {
			e.logger.Warn("skipping unreadable rollout", "path", path, "error", err)
			continue
		}
		if meta.ID == "" || meta.Cwd != dir {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		summary := engine.ConversationSummary{
			SessionID:    meta.ID,
			MessageCount: len(messages),
			UpdatedAt:    info.ModTime(),
		}
		for _, m := range messages {
			if m.Role == "user" {
				summary.Preview = preview(m.Content)
				break
			}
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})

	total := len(summaries)
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, total, nil
}

// GetConversation locates the rollout recorded for the given session id in
// dir and returns its messages.
func (e *Engine) GetConversation(ctx context.Context, dir, id string) (*engine.Conversation, error) {
	files, err := e.rolloutFiles(ctx)
	if err != nil {
		return nil, err
	}

	for _, path := range files {
		meta, messages, err := parseRollout(path)
		if err != nil {
			continue
		}
		if meta.ID == id && meta.Cwd == dir {
			return &engine.Conversation{SessionID: id, Messages: messages}, nil
		}
	}
	return nil, engine.ErrNotFound
}

// rolloutFiles lists every rollout file under the session store. A missing
// store means no history yet, not an error.
func (e *Engine) rolloutFiles(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(e.sessionsRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() && strings.HasSuffix(path, ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("walking session store: %w", err)
	}
	return files, nil
}

// parseRollout reads one rollout file, returning its session metadata and
// visible messages. Lines that fail to parse are skipped.
func parseRollout(path string) (sessionMeta, []engine.Message, error) {
	var meta sessionMeta

	f, err := os.Open(path)
	if err != nil {
		return meta, nil, err
	}
	defer f.Close()

	var messages []engine.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		var line rolloutLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}

		switch line.Type {
		case "session_meta":
			var m sessionMeta
			if err := json.Unmarshal(line.Payload, &m); err == nil && meta.ID == "" {
				meta = m
			}
		case "response_item":
			var item responseItem
			if err := json.Unmarshal(line.Payload, &item); err != nil {
				continue
			}
			if item.Type != "message" || (item.Role != "user" && item.Role != "assistant") {
				continue
			}
			content := flattenItem(item)
			if content == "" {
				continue
			}
			messages = append(messages, engine.Message{
				Role:      item.Role,
				Content:   content,
				Timestamp: line.Timestamp,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return meta, nil, fmt.Errorf("reading rollout: %w", err)
	}
	return meta, messages, nil
}

// flattenItem joins the text blocks of one message item.
func flattenItem(item responseItem) string {
	var parts []string
	for _, c := range item.Content {
		switch c.Type {
		case "input_text", "output_text", "text":
			if c.Text != "" {
				parts = append(parts, c.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// preview truncates content for listing display.
func preview(content string) string {
	const max = 120
	content = strings.ReplaceAll(content, "\n", " ")
	if len(content) > max {
		return content[:max] + "…"
	}
	return content
}
