// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry is the concurrent map of backends and the models they
// serve. It is the single owner of Backend values; every other component
// reads short-lived shared *domain.Backend references. Modeled on the
// teacher lineage's llm.Registry: a single RWMutex over map structure,
// with per-backend fields (health, pending count) kept atomic so readers
// iterating the map are never blocked by a concurrent health update.
package registry

import (
	"sync"

	"nexus/internal/domain"
	"nexus/internal/logger"
)

// Registry is a thread-safe concurrent map of backends keyed by agent id.
// Readers never block on unrelated keys: ListAll and BackendsForModel take
// a read lock only long enough to copy out pointers, never to touch
// Backend fields.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]*domain.Backend
	log      *logger.Logger
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithLogger attaches a component logger; defaults to logger.New("registry").
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// New constructs an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		backends: make(map[string]*domain.Backend),
		log:      logger.New("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces a backend under its id.
func (r *Registry) Register(b *domain.Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.ID] = b
	r.log.Info("", "", "backend registered", map[string]interface{}{
		"backend_id": b.ID, "type": string(b.Type),
	})
}

// Deregister removes a backend by id. No-op if absent.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backends[id]; ok {
		delete(r.backends, id)
		r.log.Info("", "", "backend deregistered", map[string]interface{}{"backend_id": id})
	}
}

// MarkHealth updates a backend's health status. It is a fine-grained
// mutation of the Backend's own atomic field — it does not take the
// Registry's structural lock, so it never blocks ListAll/BackendsForModel
// callers.
func (r *Registry) MarkHealth(id string, status domain.HealthStatus) bool {
	r.mu.RLock()
	b, ok := r.backends[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	b.SetHealth(status)
	return true
}

// Get returns the backend for id, if registered.
func (r *Registry) Get(id string) (*domain.Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[id]
	return b, ok
}

// ListAll returns a snapshot slice of every registered backend pointer.
func (r *Registry) ListAll() []*domain.Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Backend, 0, len(r.backends))
	for _, b := range r.backends {
		out = append(out, b)
	}
	return out
}

// BackendsForModel returns every backend currently serving modelID.
// Backends whose health is unhealthy are still returned here — health filtering is the reconciler pipeline's
// job, not the Registry's; the Registry only reports what is registered.
func (r *Registry) BackendsForModel(modelID string) []*domain.Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Backend
	for _, b := range r.backends {
		if _, ok := b.ModelByID(modelID); ok {
			out = append(out, b)
		}
	}
	return out
}

// Count returns the number of registered backends.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}
