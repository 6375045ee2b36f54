package transcript

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gptdeivid/hack-11labs/backend/internal/model/conversation"
)

var linePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z - [^:]+: .*$`)

func TestBufferKeepsArrivalOrder(t *testing.T) {
	buf := NewBuffer()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		// later events may carry earlier clocks; order must stay receipt order
		at := base.Add(time.Duration(25-i) * time.Second)
		buf.Append(conversation.Event{Message: fmt.Sprintf("m%d", i), Source: "ai"}, at)
	}

	entries := buf.Entries()
	require.Len(t, entries, 25)
	assert.Equal(t, 25, buf.Len())
	for i, entry := range entries {
		assert.Equal(t, fmt.Sprintf("m%d", i), entry.Message)
	}
}

func TestExportEmptyProducesNoArtifact(t *testing.T) {
	artifact, err := Export(nil, "Ana", time.Now())
	assert.ErrorIs(t, err, ErrEmptyTranscript)
	assert.Nil(t, artifact)
}

func TestExportRendersOneLinePerEntry(t *testing.T) {
	buf := NewBuffer()
	at := time.Date(2025, 5, 4, 18, 30, 0, 0, time.UTC)
	buf.Append(conversation.Event{Message: "Hola, ¿en qué te ayudo?", Source: "ai"}, at)
	buf.Append(conversation.Event{Message: "quiero\nreservar", Role: "user"}, at.Add(time.Second))
	buf.Append(conversation.Event{Message: "claro"}, at.Add(2*time.Second))

	artifact, err := Export(buf.Entries(), "Ana María", at)
	require.NoError(t, err)
	assert.Equal(t, 3, artifact.Lines)
	assert.Equal(t, "conversation-ana-maría-20250504-183000.txt", artifact.FileName)

	lines := strings.Split(strings.TrimSuffix(string(artifact.Content), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.Regexp(t, linePattern, line)
	}
	assert.Equal(t, "2025-05-04T18:30:00Z - agent: Hola, ¿en qué te ayudo?", lines[0])
	assert.Equal(t, "2025-05-04T18:30:01Z - user: quiero reservar", lines[1])
	assert.Equal(t, "2025-05-04T18:30:02Z - unknown: claro", lines[2])
}

func TestFileNameFallsBackForBlankAgent(t *testing.T) {
	at := time.Date(2025, 5, 4, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, "conversation-agent-20250504-183000.txt", FileName("  ", at))
	assert.Equal(t, "conversation-dr-who-20250504-183000.txt", FileName("Dr. Who!", at))
}

func TestExporterSave(t *testing.T) {
	dir := t.TempDir() + "/nested"
	exporter := NewExporter(dir)

	artifact, err := Export([]conversation.Entry{{Message: "hi", Sender: "user", Timestamp: time.Unix(0, 0)}}, "Ana", time.Unix(0, 0))
	require.NoError(t, err)

	path, err := exporter.Save(context.Background(), artifact)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1970-01-01T00:00:00Z - user: hi\n", string(data))
}
