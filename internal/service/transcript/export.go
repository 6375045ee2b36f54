package transcript

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/gptdeivid/hack-11labs/backend/internal/model/conversation"
)

// ErrEmptyTranscript is returned when there is nothing to export.
var ErrEmptyTranscript = errors.New("transcript is empty")

// Artifact is a rendered transcript ready to be saved or downloaded.
type Artifact struct {
	FileName string
	Content  []byte
	Lines    int
}

// Render formats entries as "timestamp - sender: message" lines.
func Render(entries []conversation.Entry) string {
	var sb strings.Builder
	for i, entry := range entries {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(entry.Timestamp.UTC().Format(time.RFC3339))
		sb.WriteString(" - ")
		sb.WriteString(entry.Sender)
		sb.WriteString(": ")
		sb.WriteString(flattenLine(entry.Message))
	}
	return sb.String()
}

// Export renders the entries into an artifact named after the agent and now.
func Export(entries []conversation.Entry, agentName string, now time.Time) (*Artifact, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTranscript
	}

	return &Artifact{
		FileName: FileName(agentName, now),
		Content:  []byte(Render(entries) + "\n"),
		Lines:    len(entries),
	}, nil
}

// FileName builds conversation-<agent>-<YYYYMMDD-HHMMSS>.txt.
func FileName(agentName string, now time.Time) string {
	return fmt.Sprintf("conversation-%s-%s.txt", slug(agentName), now.UTC().Format("20060102-150405"))
}

// Exporter saves artifacts into a local directory.
type Exporter struct {
	dir string
}

// NewExporter creates an exporter writing under dir.
func NewExporter(dir string) *Exporter {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	return &Exporter{dir: dir}
}

// Dir returns the target directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// Save writes the artifact and returns its path.
func (e *Exporter) Save(_ context.Context, artifact *Artifact) (string, error) {
	if artifact == nil {
		return "", ErrEmptyTranscript
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(e.dir, artifact.FileName)
	if err := os.WriteFile(path, artifact.Content, 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	log.Printf("[transcript] exported %d lines to %s", artifact.Lines, path)
	return path, nil
}

func flattenLine(message string) string {
	message = strings.ReplaceAll(message, "\r\n", " ")
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(message)
}

func slug(name string) string {
	var sb strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash && sb.Len() > 0 {
			sb.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.TrimSuffix(sb.String(), "-")
	if out == "" {
		return "agent"
	}
	return out
}
