package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/phindlabs/revloop/internal/domain"
)

// Registry manages the named executors the control loop can run. It is
// safe for concurrent use.
type Registry struct {
	executors map[string]Executor
	mu        sync.RWMutex
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
	}
}

// Register adds an executor under the given strategy type, replacing any
// existing registration.
func (r *Registry) Register(strategyType string, e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[strategyType] = e
}

// Get retrieves an executor by strategy type.
func (r *Registry) Get(strategyType string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.executors[strategyType]
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w", strategyType, domain.ErrUnknownStrategy)
	}
	return e, nil
}

// List returns all registered strategy types in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.executors))
	for n := range r.executors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
