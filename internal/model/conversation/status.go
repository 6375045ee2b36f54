package conversation

// Status is the connection state of a live conversation.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusConnected  Status = "connected"
)

// CanStart reports whether a new session may be opened from this state.
func (s Status) CanStart() bool {
	return s == StatusIdle || s == ""
}
