// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package listener provides an ordered, idempotent listener registry that can
// be iterated safely while listeners are added or removed.
package listener

import "sync"

// Registry is an ordered set of listener handles.
//
// Add and Remove are idempotent. Iteration order is insertion order.
// Registration changes replace the backing slice instead of mutating it, so
// dispatch over a snapshot is unaffected by concurrent Add or Remove.
//
// T must be comparable at runtime: use pointer implementations, never func
// values stored in an interface.
type Registry[T comparable] struct {
	mu    sync.RWMutex
	items []T
}

// NewRegistry creates an empty registry
func NewRegistry[T comparable]() *Registry[T] {
	return &Registry[T]{}
}

// Add appends l unless it is already registered.
// Returns true if the registry changed.
func (r *Registry[T]) Add(l T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item == l {
			return false
		}
	}
	// Copy-on-write keeps previously returned snapshots stable
	items := make([]T, len(r.items), len(r.items)+1)
	copy(items, r.items)
	r.items = append(items, l)
	return true
}

// Remove deletes l. Removing an unknown handle is a no-op.
// Returns true if the registry changed.
func (r *Registry[T]) Remove(l T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, item := range r.items {
		if item == l {
			items := make([]T, 0, len(r.items)-1)
			items = append(items, r.items[:i]...)
			items = append(items, r.items[i+1:]...)
			r.items = items
			return true
		}
	}
	return false
}

// Contains reports whether l is registered
func (r *Registry[T]) Contains(l T) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, item := range r.items {
		if item == l {
			return true
		}
	}
	return false
}

// Len returns the number of registered listeners
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Snapshot returns the listeners in registration order.
// The returned slice must not be modified.
func (r *Registry[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items
}

// Clear removes all listeners
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}
