// Package entity provides the entity/tensor interchange layer: entities as
// ordered, name-keyed views over engine-owned storage, tensors as non-owning
// descriptors of shaped buffers, capsules for deferred multi-consumer
// hand-off, video buffers with explicit pixel layouts, and the arena the
// engine carves storage from.
package entity

import (
	"sync"

	"github.com/weftworks/weft/errors"
)

// Entity is an ordered-insertion, name-keyed set of typed objects. It is a
// view over storage the external engine owns; releasing the last handle
// triggers the reclaim hook registered by the factory, which returns the
// backing allocation to the arena.
type Entity struct {
	mu       sync.RWMutex
	order    []string
	items    map[string]any
	refs     int
	released bool
	reclaim  func()
}

// New creates an entity with a single outstanding handle. reclaim runs once,
// when the last handle is released; a nil reclaim is allowed. Callers
// normally go through the runtime's context-bound factory instead of calling
// New directly.
func New(reclaim func()) *Entity {
	return &Entity{
		items:   make(map[string]any),
		refs:    1,
		reclaim: reclaim,
	}
}

// Add inserts obj under name. Re-insertion under an existing name overwrites
// the prior binding: last writer wins within the same entity instance, and
// the name keeps its original insertion position.
func (e *Entity) Add(obj any, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return errors.WrapBinding(errors.ErrEntityReleased, "Entity", "Add", "liveness check")
	}
	if _, exists := e.items[name]; !exists {
		e.order = append(e.order, name)
	}
	e.items[name] = obj
	return nil
}

// Get returns the named object. A missing name yields (nil, false), never an
// error: absence of an optional name is a normal outcome.
func (e *Entity) Get(name string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.released {
		return nil, false
	}
	obj, ok := e.items[name]
	return obj, ok
}

// Tensor returns the named object if it is a *Tensor.
func (e *Entity) Tensor(name string) (*Tensor, bool) {
	obj, ok := e.Get(name)
	if !ok {
		return nil, false
	}
	t, ok := obj.(*Tensor)
	return t, ok
}

// Names returns the insertion-ordered names.
func (e *Entity) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.order...)
}

// Len returns the number of named objects.
func (e *Entity) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.items)
}

// Retain adds a handle reference. Retaining a released entity is a binding
// error, not a silent resurrection.
func (e *Entity) Retain() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return errors.WrapBinding(errors.ErrEntityReleased, "Entity", "Retain", "liveness check")
	}
	e.refs++
	return nil
}

// Release drops one handle reference. When the last reference is dropped the
// entity becomes dead, its contents are cleared, and the reclaim hook runs
// so the engine can take back the arena allocation. Releasing past zero is a
// no-op.
func (e *Entity) Release() {
	e.mu.Lock()
	if e.released || e.refs == 0 {
		e.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		e.mu.Unlock()
		return
	}
	e.released = true
	e.items = map[string]any{}
	e.order = nil
	reclaim := e.reclaim
	e.mu.Unlock()

	if reclaim != nil {
		reclaim()
	}
}

// Alive reports whether any handle is still outstanding.
func (e *Entity) Alive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.released
}
