package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when an agent is not in the directory.
var ErrNotFound = errors.New("agent not found")

// Store exposes agent retrieval for handlers and the directory provider.
type Store interface {
	List() []Agent
	FindByID(id string) (Details, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Details
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied agents.
func NewMemoryStore(items []Details) *MemoryStore {
	return &MemoryStore{items: append([]Details(nil), items...)}
}

// List returns the directory in its original order.
func (s *MemoryStore) List() []Agent {
	out := make([]Agent, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Reference())
	}
	return out
}

// FindByID looks up an agent by identifier.
func (s *MemoryStore) FindByID(id string) (Details, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Details{}, false
}

type directoryFile struct {
	Agents []Details `yaml:"agents" toml:"agents"`
}

// LoadFile reads a static agent directory. Files ending in .toml use
// [[agents]] tables; anything else is parsed as YAML of the form
//
//	agents:
//	  - id: agent_123
//	    name: Ana
func LoadFile(path string) ([]Details, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}

	var doc directoryFile
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err = toml.Decode(string(raw), &doc)
	} else {
		err = yaml.Unmarshal(raw, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse agents file %s: %w", path, err)
	}

	items := make([]Details, 0, len(doc.Agents))
	for i, item := range doc.Agents {
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			return nil, fmt.Errorf("agents file %s: entry %d has no id", path, i)
		}
		if strings.TrimSpace(item.Name) == "" {
			item.Name = item.ID
		}
		items = append(items, item)
	}
	return items, nil
}
