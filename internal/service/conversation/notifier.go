package conversation

import (
	"sync"
	"time"
)

// Notification kinds published by a controller.
const (
	KindConnected    = "connected"
	KindDisconnected = "disconnected"
	KindMessage      = "message"
	KindError        = "error"
	KindExported     = "exported"
	KindStatus       = "status"
)

// Notification is a transient user-facing notice.
type Notification struct {
	Kind string         `json:"kind"`
	Text string         `json:"text"`
	Data map[string]any `json:"data,omitempty"`
	At   time.Time      `json:"at"`
}

// Notifier fans notifications out to subscribers. Slow subscribers drop
// notices rather than block the session.
type Notifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Notification
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan Notification)}
}

// Subscribe registers a listener. The returned func unsubscribes and closes
// the channel.
func (n *Notifier) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Notification, buffer)

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(ch)
		}
	}
}

// Publish delivers a notification to every subscriber.
func (n *Notifier) Publish(note Notification) {
	if n == nil {
		return
	}
	if note.At.IsZero() {
		note.At = time.Now().UTC()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ch := range n.subs {
		select {
		case ch <- note:
		default:
		}
	}
}

// CloseAll drops every subscriber.
func (n *Notifier) CloseAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, ch := range n.subs {
		close(ch)
		delete(n.subs, id)
	}
}
