package transcript

import (
	"sync"
	"time"

	"github.com/gptdeivid/hack-11labs/backend/internal/model/conversation"
)

// Buffer is an append-only, receipt-ordered log of inbound messages.
type Buffer struct {
	mu      sync.RWMutex
	entries []conversation.Entry
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{entries: make([]conversation.Entry, 0, 16)}
}

// Append records one event with the given receipt time.
func (b *Buffer) Append(event conversation.Event, receivedAt time.Time) conversation.Entry {
	entry := conversation.NewEntry(event, receivedAt)

	b.mu.Lock()
	b.entries = append(b.entries, entry)
	b.mu.Unlock()

	return entry
}

// Len returns the number of recorded entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Entries returns a copy of the log.
func (b *Buffer) Entries() []conversation.Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	copied := make([]conversation.Entry, len(b.entries))
	copy(copied, b.entries)
	return copied
}
