package worker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateConsumer is returned when a name is registered twice.
var ErrDuplicateConsumer = errors.New("consumer already registered")

// Registry maps names to consumers.
type Registry struct {
	mu        sync.RWMutex
	consumers map[string]Consumer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		consumers: make(map[string]Consumer),
	}
}

// Register adds c under name.
func (r *Registry) Register(name string, c Consumer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.consumers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateConsumer, name)
	}

	r.consumers[name] = c

	return nil
}

// Consumer returns the consumer registered under name.
func (r *Registry) Consumer(name string) (Consumer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.consumers[name]

	return c, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.consumers))
	for n := range r.consumers {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}
