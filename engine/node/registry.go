package node

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps node type keys to constructors. It is safe for
// concurrent use; registration normally happens at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a node type. Registering a duplicate key is an error.
func (r *Registry) Register(nodeType string, factory Factory) error {
	if nodeType == "" {
		return fmt.Errorf("node type is required")
	}
	if factory == nil {
		return fmt.Errorf("factory is required for node type %q", nodeType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[nodeType]; exists {
		return fmt.Errorf("node type %q already registered", nodeType)
	}
	r.factories[nodeType] = factory
	return nil
}

// Get returns the factory for a node type.
func (r *Registry) Get(nodeType string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[nodeType]
	if !exists {
		return nil, fmt.Errorf("unknown node type: %s", nodeType)
	}
	return factory, nil
}

// Has reports whether a node type is registered.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[nodeType]
	return exists
}

// List returns all registered type keys, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
