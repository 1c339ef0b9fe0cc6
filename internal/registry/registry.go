// Package registry maps channel IDs to their private template copy, cloned
// lazily from a process-wide base template.
//
// Every method on Registry must be called with the owning logger's mutex
// already held; the registry itself holds no lock.
package registry

import "github.com/vpbank/asynclog/internal/template"

// Registry is a channel ID -> *template.Message map. The zero value is not
// usable; construct with New.
type Registry struct {
	base    *template.Message
	entries map[string]*template.Message
}

// New creates a Registry seeded with base as the process-wide base template.
func New(base *template.Message) *Registry {
	return &Registry{
		base:    base,
		entries: make(map[string]*template.Message),
	}
}

// Base returns the current base template.
func (r *Registry) Base() *template.Message {
	return r.base
}

// FindOrCreate returns the entry for id, cloning it from the current base
// template on first touch.
func (r *Registry) FindOrCreate(id string) *template.Message {
	if m, ok := r.entries[id]; ok {
		return m
	}
	m := r.base.Clone()
	r.entries[id] = m
	return m
}

// Find returns the entry for id without creating one; ok is false if no
// entry exists yet.
func (r *Registry) Find(id string) (m *template.Message, ok bool) {
	m, ok = r.entries[id]
	return
}

// SetBase replaces the base template and reseeds it into every existing
// entry.
func (r *Registry) SetBase(newBase *template.Message) {
	r.base = newBase
	for id := range r.entries {
		r.entries[id].AdoptFrom(newBase)
	}
}

// BroadcastValue sets name/value on every existing entry. It does not touch
// the base template; callers that want the base updated too must call
// SetValue on Base() separately.
func (r *Registry) BroadcastValue(name, value string) {
	for _, m := range r.entries {
		m.SetValue(name, value)
	}
}

// Len reports the number of registered channel entries (diagnostics/tests).
func (r *Registry) Len() int {
	return len(r.entries)
}
