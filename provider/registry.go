// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrProviderNotFound is returned when no adapter is registered for a name
var ErrProviderNotFound = errors.New("provider not registered")

// Registry holds the configured provider adapters keyed by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces an adapter under its name
func (r *Registry) Register(p Provider) error {
	if p == nil || p.Name() == "" {
		return errors.New("provider with a name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[p.Name()] = p
	return nil
}

// Get returns the adapter registered under name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// Names returns the registered provider names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthSnapshot returns per-provider health at a point in time
func (r *Registry) HealthSnapshot() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]bool, len(r.providers))
	for name, p := range r.providers {
		snapshot[name] = p.IsHealthy()
	}
	return snapshot
}
