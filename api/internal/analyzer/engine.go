package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Engine is one inference backend.
type Engine interface {
	Name() string
	GetModel() string
	Analyze(ctx context.Context, image []byte, mime string) (Diagnosis, error)
}

// Manager keeps the configured engines and the per-chat choice.
type Manager struct {
	def    Engine
	byName map[string]Engine
	m      sync.Map // chatID -> Engine
}

func NewManager(defaultEngine Engine, engines ...Engine) *Manager {
	mgr := &Manager{def: defaultEngine, byName: map[string]Engine{}}
	if defaultEngine != nil {
		mgr.byName[defaultEngine.Name()] = defaultEngine
	}
	for _, e := range engines {
		if e != nil {
			mgr.byName[e.Name()] = e
		}
	}
	return mgr
}

func (m *Manager) Get(chatID int64) Engine {
	if v, ok := m.m.Load(chatID); ok {
		return v.(Engine)
	}
	return m.def
}

func (m *Manager) Set(chatID int64, e Engine) {
	m.m.Store(chatID, e)
}

// Lookup resolves an engine by name; "openai" is accepted for "gpt".
func (m *Manager) Lookup(name string) (Engine, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "openai" {
		name = "gpt"
	}
	if name == "" && m.def != nil {
		return m.def, nil
	}
	if e, ok := m.byName[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("unknown engine %q; available: %s", name, strings.Join(m.Names(), " | "))
}

func (m *Manager) Names() []string {
	out := make([]string, 0, len(m.byName))
	for k := range m.byName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
