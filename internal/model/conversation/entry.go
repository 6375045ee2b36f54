package conversation

import (
	"strings"
	"time"
)

// DefaultSender labels messages whose event carries no sender information.
const DefaultSender = "unknown"

// Entry is one recorded inbound message.
type Entry struct {
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is the message callback payload of the vendor session. Different
// event kinds populate different sender fields, so all of them are optional.
type Event struct {
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
	Role    string `json:"role,omitempty"`
	Sender  string `json:"sender,omitempty"`
	Speaker string `json:"speaker,omitempty"`
}

// SenderLabel resolves the sender from Source, Role, Sender, Speaker in that
// order. The first non-blank field wins.
func (e Event) SenderLabel() string {
	for _, candidate := range []string{e.Source, e.Role, e.Sender, e.Speaker} {
		if label := normalizeSender(candidate); label != "" {
			return label
		}
	}
	return DefaultSender
}

// NewEntry stamps an event with its receipt time.
func NewEntry(event Event, receivedAt time.Time) Entry {
	return Entry{
		Message:   event.Message,
		Sender:    event.SenderLabel(),
		Timestamp: receivedAt.UTC(),
	}
}

func normalizeSender(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		return ""
	case "ai", "agent", "assistant":
		return "agent"
	case "user", "human":
		return "user"
	default:
		return value
	}
}
