package conversation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gptdeivid/hack-11labs/backend/internal/model/agent"
	"github.com/gptdeivid/hack-11labs/backend/internal/service/transcript"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Handle binds a controller to the agent it was opened for.
type Handle struct {
	ID         string      `json:"id"`
	Agent      agent.Agent `json:"agent"`
	CreatedAt  time.Time   `json:"createdAt"`
	Controller *Controller `json:"-"`

	micDenied atomic.Bool
}

// ReportMicrophone records the permission result the client obtained before
// asking to start.
func (h *Handle) ReportMicrophone(granted bool) {
	h.micDenied.Store(!granted)
}

func (h *Handle) microphone(context.Context) error {
	if h.micDenied.Load() {
		return errors.New("client reported microphone access denied")
	}
	return nil
}

// Manager keeps one controller per page visit.
type Manager struct {
	signer     URLSigner
	dialer     Dialer
	exporter   *transcript.Exporter
	autoExport bool

	mu    sync.RWMutex
	items map[string]*Handle
}

// NewManager creates a manager sharing one URL signer, dialer and exporter.
func NewManager(signer URLSigner, dialer Dialer, exporter *transcript.Exporter, autoExport bool) *Manager {
	return &Manager{
		signer:     signer,
		dialer:     dialer,
		exporter:   exporter,
		autoExport: autoExport,
		items:      make(map[string]*Handle),
	}
}

// Create provisions an idle controller for the agent. With a nil audio input
// the controller relies on the permission reported through the handle.
func (m *Manager) Create(_ context.Context, ref agent.Agent, audio AudioInput) (*Handle, error) {
	if ref.ID == "" {
		return nil, ErrAgentRequired
	}

	handle := &Handle{
		ID:        uuid.NewString(),
		Agent:     ref,
		CreatedAt: time.Now().UTC(),
	}
	if audio == nil {
		audio = AudioFunc(handle.microphone)
	}
	handle.Controller = NewController(Options{
		AgentName:  ref.Name,
		Signer:     m.signer,
		Dialer:     m.dialer,
		Audio:      audio,
		Exporter:   m.exporter,
		AutoExport: m.autoExport,
	})

	m.mu.Lock()
	m.items[handle.ID] = handle
	m.mu.Unlock()
	return handle, nil
}

// Get retrieves a conversation by identifier.
func (m *Manager) Get(id string) (*Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	handle, ok := m.items[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return handle, nil
}

// Release stops the controller and forgets it.
func (m *Manager) Release(ctx context.Context, id string) error {
	m.mu.Lock()
	handle, ok := m.items[id]
	delete(m.items, id)
	m.mu.Unlock()
	if !ok {
		return ErrConversationNotFound
	}

	err := handle.Controller.Stop(ctx)
	handle.Controller.Notifier().CloseAll()
	return err
}

// Shutdown releases every conversation.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.Release(ctx, id)
	}
}
