// ABOUTME: Read-only conversation history from the Claude CLI's project storage.
// ABOUTME: Parses ~/.claude/projects/<dir-slug>/<session>.jsonl transcripts.

package claude

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/portico-dev/portico/internal/engine"
)

// transcriptLine is the subset of a CLI transcript entry we surface. Content
// is either a plain string or an array of content blocks; rawContent defers
// that decision to parse time.
type transcriptLine struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Message   struct {
		Role       string          `json:"role"`
		RawContent json.RawMessage `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ListConversations scans the project directory for dir and returns summaries
// newest first. A limit <= 0 returns everything; total is always the full
// count.
func (e *Engine) ListConversations(ctx context.Context, dir string, limit int) ([]engine.ConversationSummary, int, error) {
	projectDir := filepath.Join(e.projectsRoot, projectSlug(dir))

	entries, err := os.ReadDir(projectDir)
	if os.IsNotExist(err) {
		return []engine.ConversationSummary{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("reading project directory: %w", err)
	}

	summaries := make([]engine.ConversationSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}

		path := filepath.Join(projectDir, entry.Name())
		summary, err := summarizeTranscript(path)
		if err != nil {
			e.logger.Warn("skipping unreadable transcript", "path", path, "error", err)
			continue
		}
		summary.SessionID = strings.TrimSuffix(entry.Name(), ".jsonl")
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

// GetConversation returns the parsed transcript for one session id.
func (e *Engine) GetConversation(ctx context.Context, dir, id string) (*engine.Conversation, error) {
	// Session ids are UUIDs; rejecting anything else also blocks path
	// traversal through the id.
	if _, err := uuid.Parse(id); err != nil {
		return nil, engine.ErrNotFound
	}

	path := filepath.Join(e.projectsRoot, projectSlug(dir), id+".jsonl")
	messages, err := parseTranscript(path)
	if os.IsNotExist(err) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &engine.Conversation{SessionID: id, Messages: messages}, nil
}

// projectSlug converts a working directory path into the CLI's storage
// directory name: every non-alphanumeric character becomes a dash.
func projectSlug(dir string) string {
	var b strings.Builder
	for _, r := range dir {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// summarizeTranscript extracts the preview, message count, and last-update
// time from one transcript file.
func summarizeTranscript(path string) (engine.ConversationSummary, error) {
	var summary engine.ConversationSummary

	info, err := os.Stat(path)
	if err != nil {
		return summary, err
	}
	summary.UpdatedAt = info.ModTime()

	messages, err := parseTranscript(path)
	if err != nil {
		return summary, err
	}
	summary.MessageCount = len(messages)
	for _, m := range messages {
		if m.Role == "user" {
			summary.Preview = preview(m.Content)
			break
		}
	}
	return summary, nil
}

// parseTranscript reads every user/assistant line from a transcript file.
// Unparseable lines are skipped; transcripts accumulate tool noise we do not
// surface as history.
func parseTranscript(path string) ([]engine.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var messages []engine.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		var line transcriptLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Type != "user" && line.Type != "assistant" {
			continue
		}

		content := flattenContent(line.Message.RawContent)
		if content == "" {
			continue
		}
		messages = append(messages, engine.Message{
			Role:      line.Type,
			Content:   content,
			Timestamp: line.Timestamp,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	return messages, nil
}

// flattenContent joins the text blocks of a message's content, which is
// either a bare string or an array of typed blocks.
func flattenContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
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
