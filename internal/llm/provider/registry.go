package provider

import (
	"fmt"
	"sync"
)

// Factory constructs a provider instance for a single outbound call.
// Factories must be cheap: a fresh instance is built per call so each call
// can carry its own HTTP client.
type Factory func(opts Options) (Provider, error)

// Registry maps provider tags to factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// RegisterFactory registers a factory for a provider tag.
func (r *Registry) RegisterFactory(tag string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tag] = f
}

// New builds a provider instance for the given tag.
func (r *Registry) New(tag string, opts Options) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[tag]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("provider %q not registered", tag)
	}
	return f(opts)
}

// Tags returns all registered provider tags.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	return tags
}

// Global registry
var globalRegistry = NewRegistry()

// RegisterFactory registers a factory globally.
func RegisterFactory(tag string, f Factory) {
	globalRegistry.RegisterFactory(tag, f)
}

// New builds a provider from the global registry.
func New(tag string, opts Options) (Provider, error) {
	return globalRegistry.New(tag, opts)
}

// Tags returns all globally registered provider tags.
func Tags() []string {
	return globalRegistry.Tags()
}
