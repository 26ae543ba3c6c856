package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Resource is a callable tool a worker may invoke by name.
type Resource interface {
	Name() string
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// ResourceFunc adapts a function to the Resource interface.
type ResourceFunc struct {
	ResourceName string
	Fn           func(ctx context.Context, args map[string]any) (any, error)
}

func (r ResourceFunc) Name() string { return r.ResourceName }

func (r ResourceFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return r.Fn(ctx, args)
}

// ResourceRegistry maps resource names to implementations with an allow-list
// of worker names permitted to invoke each resource. Lookup enforces the
// allow-list: an excluded caller gets "not available" rather than an error
// that distinguishes denial from absence.
type ResourceRegistry struct {
	mu        sync.RWMutex
	resources map[string]Resource
	allowed   map[string]map[string]bool // resource -> worker names; nil set means open
}

// NewResourceRegistry returns an empty registry.
func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{
		resources: make(map[string]Resource),
		allowed:   make(map[string]map[string]bool),
	}
}

// Register adds a resource with its allow-list. An empty allowedWorkers list
// leaves the resource open to every worker.
func (r *ResourceRegistry) Register(res Resource, allowedWorkers ...string) error {
	if res == nil {
		return fmt.Errorf("nil resource")
	}
	name := strings.TrimSpace(res.Name())
	if name == "" {
		return fmt.Errorf("resource name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resources[name]; exists {
		return fmt.Errorf("resource already exists: %s", name)
	}
	r.resources[name] = res

	if len(allowedWorkers) > 0 {
		set := make(map[string]bool, len(allowedWorkers))
		for _, w := range allowedWorkers {
			set[w] = true
		}
		r.allowed[name] = set
	}
	return nil
}

// Names returns the registered resource names in sorted order.
func (r *ResourceRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the resource when it exists and the caller is allowed. The
// second return is false both for unknown resources and for denied callers.
func (r *ResourceRegistry) Lookup(name, callerWorker string) (Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[name]
	if !ok {
		return nil, false
	}
	if set, restricted := r.allowed[name]; restricted && !set[callerWorker] {
		return nil, false
	}
	return res, true
}
