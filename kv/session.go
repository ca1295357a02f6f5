package kv

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-undo"
	"github.com/google/uuid"
)

type delta struct {
	value   any
	deleted bool
}

// Session is a changeset layered over a parent store.
type Session struct {
	id     uuid.UUID
	parent Store
	deltas map[string]delta
}

// NewSession opens a session over parent.
func NewSession(parent Store) (*Session, error) {
	if parent == nil {
		return nil, ErrNoParent
	}
	return &Session{
		id:     uuid.New(),
		parent: parent,
		deltas: map[string]delta{},
	}, nil
}

// ID identifies the session in traces and logs.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Parent returns the store the session reads through and commits into, or
// nil once detached.
func (s *Session) Parent() Store {
	return s.parent
}

// Detached reports whether the session lost its parent.
func (s *Session) Detached() bool {
	return s.parent == nil
}

// Changes returns the number of keys written or deleted in this session.
func (s *Session) Changes() int {
	return len(s.deltas)
}

// Keys lists the keys changed in this session, sorted.
func (s *Session) Keys() []string {
	keys := make([]string, 0, len(s.deltas))
	for key := range s.deltas {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value visible through the session.
func (s *Session) Get(key string) (any, bool) {
	if s.parent == nil {
		return nil, false
	}
	if d, ok := s.deltas[key]; ok {
		if d.deleted {
			return nil, false
		}
		return d.value, true
	}
	return s.parent.Get(key)
}

// Set records a write.
func (s *Session) Set(key string, value any) error {
	if s.parent == nil {
		return ErrDetached
	}
	s.deltas[key] = delta{value: value}
	return nil
}

// Delete records a removal that hides key in this session and, once
// committed, in the parent.
func (s *Session) Delete(key string) error {
	if s.parent == nil {
		return ErrDetached
	}
	s.deltas[key] = delta{deleted: true}
	return nil
}

// Snapshot materialises the state visible through the session.
func (s *Session) Snapshot() map[string]any {
	if s.parent == nil {
		return map[string]any{}
	}
	out := s.parent.Snapshot()
	if out == nil {
		out = map[string]any{}
	}
	for key, d := range s.deltas {
		if d.deleted {
			delete(out, key)
			continue
		}
		out[key] = d.value
	}
	return out
}

// Commit folds the recorded deltas into the parent and clears them. On a
// parent failure the deltas not yet applied stay recorded.
func (s *Session) Commit() error {
	if s.parent == nil {
		return ErrDetached
	}
	for _, key := range s.Keys() {
		d := s.deltas[key]
		var err error
		if d.deleted {
			err = s.parent.Delete(key)
		} else {
			err = s.parent.Set(key, d.value)
		}
		if err != nil {
			return fmt.Errorf("kv: commit %q: %w", key, err)
		}
		delete(s.deltas, key)
	}
	return nil
}

// Detach drops the parent link and every recorded delta. Detaching twice is
// a no-op.
func (s *Session) Detach() error {
	s.parent = nil
	s.deltas = map[string]delta{}
	return nil
}

// Attach re-links the session onto parent.
func (s *Session) Attach(parent undo.Element[*Head, *Session]) error {
	store := storeOf(parent)
	if store == nil {
		return fmt.Errorf("kv: attach session %s: parent %s is nil", s.id, parent.Kind)
	}
	if store == Store(s) {
		return fmt.Errorf("kv: attach session %s: cannot parent itself", s.id)
	}
	s.parent = store
	return nil
}

// Overlay returns a copy of the values written in this session and the
// sorted keys it deleted.
func (s *Session) Overlay() (map[string]any, []string) {
	values := make(map[string]any, len(s.deltas))
	var deleted []string
	for key, d := range s.deltas {
		if d.deleted {
			deleted = append(deleted, key)
			continue
		}
		values[key] = d.value
	}
	sort.Strings(deleted)
	return values, deleted
}

func storeOf(e undo.Element[*Head, *Session]) Store {
	if e.IsHead() {
		if e.Head == nil {
			return nil
		}
		return e.Head
	}
	if e.Layer == nil {
		return nil
	}
	return e.Layer
}
