package agentdetail

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/gptdeivid/hack-11labs/backend/internal/model/agent"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/elevenlabs"
)

const (
	msgLoadFailed = "Failed to load agent details"
	msgUnexpected = "An unexpected error occurred"
	msgNotFound   = "Agent not found"
)

// Phase is the observable state of a load.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseLoaded  Phase = "loaded"
	PhaseFailed  Phase = "failed"
)

// Fetcher retrieves agent metadata.
type Fetcher interface {
	GetAgent(ctx context.Context, agentID string) (agent.Details, error)
}

// State is a snapshot of the loader.
type State struct {
	AgentID string         `json:"agentId"`
	Phase   Phase          `json:"phase"`
	Details *agent.Details `json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Loader fetches details for the selected agent. It never caches: every
// Load re-fetches, and Retry re-issues the last fetch unchanged.
type Loader struct {
	fetcher Fetcher

	mu       sync.Mutex
	state    State
	closed   bool
	attempt  int
	onChange func(State)
}

// New creates a loader. onChange, when set, observes every state change.
func New(fetcher Fetcher, onChange func(State)) *Loader {
	return &Loader{fetcher: fetcher, onChange: onChange, state: State{Phase: PhaseLoading}}
}

// Snapshot returns the current state.
func (l *Loader) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Load fetches the details of agentID.
func (l *Loader) Load(ctx context.Context, agentID string) State {
	agentID = strings.TrimSpace(agentID)

	l.mu.Lock()
	if l.closed {
		state := l.state
		l.mu.Unlock()
		return state
	}
	l.attempt++
	attempt := l.attempt
	prevDetails := l.state.Details
	if l.state.AgentID != agentID {
		prevDetails = nil
	}
	l.state = State{AgentID: agentID, Phase: PhaseLoading, Details: prevDetails}
	l.mu.Unlock()
	l.notify()

	var (
		details agent.Details
		err     error
	)
	if agentID == "" {
		err = elevenlabs.ErrAgentIDRequired
	} else {
		details, err = l.fetcher.GetAgent(ctx, agentID)
	}

	l.mu.Lock()
	if l.closed || attempt != l.attempt {
		// torn down or superseded by a newer selection
		state := l.state
		l.mu.Unlock()
		return state
	}
	if err != nil {
		log.Printf("[agentdetail] failed to load agent %s: %v", agentID, err)
		l.state = State{AgentID: agentID, Phase: PhaseFailed, Details: prevDetails, Error: errorText(err)}
	} else if details.ID == "" && details.Name == "" {
		// loaded, but the registry returned no data
		l.state = State{AgentID: agentID, Phase: PhaseLoaded}
	} else {
		l.state = State{AgentID: agentID, Phase: PhaseLoaded, Details: &details}
	}
	state := l.state
	l.mu.Unlock()
	l.notify()
	return state
}

// Retry re-issues the fetch for the last requested agent.
func (l *Loader) Retry(ctx context.Context) State {
	return l.Load(ctx, l.Snapshot().AgentID)
}

// Close stops state updates. In-flight fetches still run to completion.
func (l *Loader) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

func (l *Loader) notify() {
	if l.onChange == nil {
		return
	}
	l.onChange(l.Snapshot())
}

func errorText(err error) string {
	var apiErr *elevenlabs.APIError
	if errors.As(err, &apiErr) {
		if strings.TrimSpace(apiErr.Message) != "" {
			return apiErr.Message
		}
		return msgLoadFailed
	}
	if errors.Is(err, agent.ErrNotFound) {
		return msgNotFound
	}
	if errors.Is(err, elevenlabs.ErrAgentIDRequired) {
		return msgLoadFailed
	}
	return msgUnexpected
}
