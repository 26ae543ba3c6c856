// Package registry holds the capability and resource registries. Both are
// populated once at startup and read-mostly afterwards.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aaaa47080/stock-agent-sub002/internal/worker"
)

// CapabilityRegistry maps worker names to implementations and supports
// keyword-based capability search for collaboration routing.
type CapabilityRegistry struct {
	mu      sync.RWMutex
	workers map[string]worker.Worker
	order   []string
}

// NewCapabilityRegistry returns an empty registry.
func NewCapabilityRegistry() *CapabilityRegistry {
	return &CapabilityRegistry{
		workers: make(map[string]worker.Worker),
	}
}

// Register adds a worker under its declared name.
func (r *CapabilityRegistry) Register(w worker.Worker) error {
	if w == nil {
		return fmt.Errorf("nil worker")
	}
	name := strings.TrimSpace(w.Name())
	if name == "" {
		return fmt.Errorf("worker name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workers[name]; exists {
		return fmt.Errorf("worker already exists: %s", name)
	}
	r.workers[name] = w
	r.order = append(r.order, name)
	return nil
}

// Get returns the worker registered under name.
func (r *CapabilityRegistry) Get(name string) (worker.Worker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if w, ok := r.workers[name]; ok {
		return w, nil
	}
	return nil, fmt.Errorf("worker not found: %s", name)
}

// FindByCapability scans declared capability tags for the first worker whose
// tags contain the keyword (case-insensitive). A linear scan is deliberate:
// the worker set is a small closed set registered at startup.
func (r *CapabilityRegistry) FindByCapability(keyword string) (worker.Worker, bool) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		w := r.workers[name]
		for _, tag := range w.Capabilities() {
			if strings.Contains(strings.ToLower(tag), keyword) {
				return w, true
			}
		}
	}
	return nil, false
}

// Names lists registered worker names in registration order.
func (r *CapabilityRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
