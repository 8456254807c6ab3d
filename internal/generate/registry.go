package generate

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/bethropolis/spanedit/internal/logger"
)

// Factory builds a back-end from its configuration.
type Factory func(cfg Config, client *http.Client) Backend

// Registry maps back-end names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with the chat, text and simple back-ends.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.mustRegister(BackendChat, func(cfg Config, c *http.Client) Backend { return NewChatBackend(cfg, c) })
	r.mustRegister(BackendText, func(cfg Config, c *http.Client) Backend { return NewTextBackend(cfg, c) })
	r.mustRegister(BackendSimple, func(cfg Config, c *http.Client) Backend { return NewSimpleBackend(cfg, c) })
	return r
}

func (r *Registry) mustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("backend registration failed: name cannot be empty")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("backend registration failed: '%s' already registered", name)
	}
	r.factories[name] = f
	logger.DebugTagf("generate", "Registered backend '%s'", name)
	return nil
}

// New builds the back-end registered under name. client may be nil.
func (r *Registry) New(name string, cfg Config, client *http.Client) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend '%s' (known: %v)", name, r.Names())
	}
	return f(cfg, client), nil
}

// Names returns the registered back-end names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
