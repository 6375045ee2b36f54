package directory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/gptdeivid/hack-11labs/backend/internal/model/agent"
)

// Lister fetches the agent registry.
type Lister interface {
	ListAgents(ctx context.Context) ([]agent.Details, error)
}

// Listing is the directory plus the agent selected by default.
type Listing struct {
	Agents    []agent.Agent `json:"agents"`
	DefaultID string        `json:"defaultAgentId,omitempty"`
}

// Provider supplies the agent directory, either fetched from a Lister or
// fixed at construction.
type Provider struct {
	lister    Lister
	defaultID string

	mu    sync.RWMutex
	store *agent.MemoryStore
}

// NewRemote creates a provider backed by the vendor registry.
func NewRemote(lister Lister, defaultID string) *Provider {
	return &Provider{
		lister:    lister,
		defaultID: strings.TrimSpace(defaultID),
		store:     agent.NewMemoryStore(nil),
	}
}

// NewStatic creates a provider over a fixed list.
func NewStatic(items []agent.Details, defaultID string) *Provider {
	return &Provider{
		defaultID: strings.TrimSpace(defaultID),
		store:     agent.NewMemoryStore(items),
	}
}

// Refresh reloads the directory from the lister. Static providers keep their
// list.
func (p *Provider) Refresh(ctx context.Context) error {
	if p.lister == nil {
		return nil
	}
	items, err := p.lister.ListAgents(ctx)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}

	p.mu.Lock()
	p.store = agent.NewMemoryStore(items)
	p.mu.Unlock()

	log.Printf("[directory] loaded %d agents", len(items))
	return nil
}

// List returns the current directory.
func (p *Provider) List() []agent.Agent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store.List()
}

// FindByID looks up a directory entry.
func (p *Provider) FindByID(id string) (agent.Details, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store.FindByID(id)
}

// GetAgent serves details from the directory itself, for deployments without
// registry access.
func (p *Provider) GetAgent(_ context.Context, agentID string) (agent.Details, error) {
	details, ok := p.FindByID(agentID)
	if !ok {
		return agent.Details{}, fmt.Errorf("%w: %s", agent.ErrNotFound, agentID)
	}
	return details, nil
}

// Listing refreshes the directory and resolves the default selection.
func (p *Provider) Listing(ctx context.Context, requested string) (Listing, error) {
	if err := p.Refresh(ctx); err != nil {
		return Listing{}, err
	}
	agents := p.List()
	return Listing{Agents: agents, DefaultID: p.Select(agents, requested)}, nil
}

// Select picks the default agent: an explicit request wins, then the
// configured default, then the first listed agent.
func (p *Provider) Select(agents []agent.Agent, requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	if p.defaultID != "" {
		return p.defaultID
	}
	if len(agents) > 0 {
		return agents[0].ID
	}
	return ""
}
