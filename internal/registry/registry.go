// Package registry implements the pipeline's Identity Registry: the
// append-only source-id to target-id mapping the rest of the pipeline
// threads through every stage. See spec.md §3 for the invariants this
// package exists to uphold.
package registry

import (
	"log/slog"
	"sync"
)

// Registry maps object name to a source-id -> target-id mapping. Source ids
// are globally unique (the platform invariant that every id carries a
// 3-character object-type key prefix), so Lookup works across the whole
// registry without being told which object a source id belongs to — this is
// what makes polymorphic activity remap (WhatId/WhoId) possible without a
// second describe call.
//
// A Registry is append-only for the lifetime of one Pipeline Driver
// invocation: entries are never removed or overwritten once a record is
// successfully written. It carries no persisted state — per spec.md §6, it
// lives only in memory and is discarded when the run returns.
type Registry struct {
	mu       sync.Mutex
	byObject map[string]map[string]string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byObject: make(map[string]map[string]string)}
}

// Set records sourceID -> targetID under object. If the (object, sourceID)
// pair already has a mapping, the first one is kept and the call changes
// nothing.
func (r *Registry) Set(object, sourceID, targetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byObject[object]
	if !ok {
		m = make(map[string]string)
		r.byObject[object] = m
	}
	if _, exists := m[sourceID]; exists {
		return
	}
	m[sourceID] = targetID
	slog.Debug("registry entry", "object", object, "sourceId", sourceID, "targetId", targetID)
}

// Get returns the target id registered for sourceID under object.
func (r *Registry) Get(object, sourceID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byObject[object]
	if !ok {
		return "", false
	}
	id, ok := m[sourceID]
	return id, ok
}

// Lookup searches every object's map for sourceID, for polymorphic
// reference resolution (activities' WhatId/WhoId, and any DataDependency or
// InScopeReference field whose target object isn't known ahead of time).
// Relies on source ids being globally unique across object types.
func (r *Registry) Lookup(sourceID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byObject {
		if id, ok := m[sourceID]; ok {
			return id, true
		}
	}
	return "", false
}

// HasObject reports whether object currently has any registry entries.
func (r *Registry) HasObject(object string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byObject[object]
	return ok && len(m) > 0
}

// Count returns the number of entries registered under object.
func (r *Registry) Count(object string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byObject[object])
}

// SourceIDs returns every source id registered under object, in no
// particular order. Used by the child and grandchild stages to find the
// parent records written so far.
func (r *Registry) SourceIDs(object string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byObject[object]
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

// AllSourceIDs returns every source id registered across every object, in
// no particular order. Used by the activity stages (spec.md §4.6 Stages 4
// and 5) and the file stage (Stage 6), all of which attach to any prior tier.
func (r *Registry) AllSourceIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.byObject {
		for id := range m {
			out = append(out, id)
		}
	}
	return out
}

// Objects returns the names of objects that currently have registry
// entries.
func (r *Registry) Objects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.byObject))
	for name, m := range r.byObject {
		if len(m) > 0 {
			out = append(out, name)
		}
	}
	return out
}
