package federation

import (
	"context"
	"sync"
)

// Prober is the capability probe every adapter exposes for health checks.
type Prober interface {
	Probe(ctx context.Context) error
}

// Member pairs a descriptor with the adapter that serves it.
type Member[A Prober] struct {
	*Descriptor
	Adapter A
}

// Probe runs the adapter's capability probe.
func (m *Member[A]) Probe(ctx context.Context) error {
	return m.Adapter.Probe(ctx)
}

// Registry maps backend ids to members and remembers registration order.
type Registry[A Prober] struct {
	mu      sync.RWMutex
	members map[string]*Member[A]
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry[A Prober]() *Registry[A] {
	return &Registry[A]{
		members: make(map[string]*Member[A]),
	}
}

// Register adds a backend. Ids are unique.
func (r *Registry[A]) Register(desc *Descriptor, adapter A) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[desc.ID()]; exists {
		return &DuplicateBackendError{ID: desc.ID()}
	}
	r.members[desc.ID()] = &Member[A]{Descriptor: desc, Adapter: adapter}
	r.order = append(r.order, desc.ID())
	return nil
}

// Get returns the member registered under id.
func (r *Registry[A]) Get(id string) (*Member[A], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return m, nil
}

// ListHealthy returns every healthy member. Order is unspecified.
func (r *Registry[A]) ListHealthy() []*Member[A] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	healthy := make([]*Member[A], 0, len(r.members))
	for _, m := range r.members {
		if m.Healthy() {
			healthy = append(healthy, m)
		}
	}
	return healthy
}

// List returns every member in registration order.
func (r *Registry[A]) List() []*Member[A] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Member[A], 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.members[id])
	}
	return all
}

// Len returns the number of registered backends.
func (r *Registry[A]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Statuses returns a status copy for every member in registration order.
func (r *Registry[A]) Statuses() []Status {
	members := r.List()
	statuses := make([]Status, len(members))
	for i, m := range members {
		statuses[i] = m.Status()
	}
	return statuses
}

// Targets implements TargetSource for the health monitor.
func (r *Registry[A]) Targets() []Target {
	members := r.List()
	targets := make([]Target, len(members))
	for i, m := range members {
		targets[i] = m
	}
	return targets
}
