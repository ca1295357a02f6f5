// Package kv provides a map-backed head and changeset sessions that plug into
// undo.Stack.
//
// A Session records writes and deletes as deltas over its parent store. Reads
// fall through the chain of sessions down to the head, so the top session of a
// stack always exposes the state every pending layer would produce once
// committed.
package kv

import (
	"errors"
	"maps"
)

// ErrDetached is returned by session operations once the session no longer
// has a parent.
var ErrDetached = errors.New("kv: session is detached")

// ErrNoParent is returned when a session is opened over nothing.
var ErrNoParent = errors.New("kv: session parent is required")

// Store is the key/value surface shared by heads and sessions.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
	Delete(key string) error
	Snapshot() map[string]any
}

// Head is the durable base state a stack commits into.
type Head struct {
	values map[string]any
}

// NewHead builds a head seeded with a copy of initial.
func NewHead(initial map[string]any) *Head {
	values := make(map[string]any, len(initial))
	maps.Copy(values, initial)
	return &Head{values: values}
}

// Get returns the value stored for key.
func (h *Head) Get(key string) (any, bool) {
	value, ok := h.values[key]
	return value, ok
}

// Set stores value under key.
func (h *Head) Set(key string, value any) error {
	h.values[key] = value
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (h *Head) Delete(key string) error {
	delete(h.values, key)
	return nil
}

// Len returns the number of stored keys.
func (h *Head) Len() int {
	return len(h.values)
}

// Snapshot returns a copy of the stored values.
func (h *Head) Snapshot() map[string]any {
	return maps.Clone(h.values)
}
