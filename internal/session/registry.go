package session

import (
	"fmt"
	"sync"
)

// Registry indexes live coordinators by session id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Coordinator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Coordinator)}
}

// Add registers c. Ids must be unique.
func (r *Registry) Add(c *Coordinator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[c.ID()]; ok {
		return fmt.Errorf("session %s already registered", c.ID())
	}
	r.sessions[c.ID()] = c
	return nil
}

// Get returns the coordinator for id.
func (r *Registry) Get(id string) (*Coordinator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return c, nil
}

// Remove forgets id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
