package llm

import (
	"fmt"
	"sort"
	"sync"

	"clinsight/internal/config"
	"clinsight/internal/port"
)

// Factory builds an adapter of type T from a provider config.
type Factory[T any] func(cfg *config.ProviderConfig) (T, error)

// Registry maps provider names to adapter factories. Provider packages
// register themselves from init.
type Registry[T any] struct {
	mu        sync.RWMutex
	role      string
	factories map[string]Factory[T]
}

// NewRegistry creates an empty registry for the named pipeline role.
func NewRegistry[T any](role string) *Registry[T] {
	return &Registry[T]{role: role, factories: map[string]Factory[T]{}}
}

// Register adds or replaces the factory for name.
func (r *Registry[T]) Register(name string, factory Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// New builds an adapter for cfg.Provider.
func (r *Registry[T]) New(cfg *config.ProviderConfig) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s provider: %q (registered: %v)", r.role, cfg.Provider, r.Names())
	}
	return factory(cfg)
}

// Names lists registered provider names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	Reasoners    = NewRegistry[port.Reasoner]("reasoning")
	Researchers  = NewRegistry[port.Researcher]("research")
	Transcribers = NewRegistry[port.Transcriber]("transcription")
	Describers   = NewRegistry[port.VisionDescriber]("vision")
)
