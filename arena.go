package undo

import "fmt"

// Handle addresses one layer slot inside a stack. Handles stay valid while
// other layers are pushed or removed at either end of the stack; once the
// layer they name is removed they never resolve again, even if the slot is
// reused. The zero Handle stands for the head.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero Handle (the head link).
func (h Handle) IsZero() bool {
	return h.gen == 0
}

func (h Handle) String() string {
	if h.IsZero() {
		return "head"
	}
	return fmt.Sprintf("layer/%d#%d", h.index, h.gen)
}

type slot[T any] struct {
	value  T
	parent Handle
	gen    uint32
	live   bool
}

// arena stores layers in reusable slots addressed by generation-checked
// handles. Each slot records the handle of its parent layer.
type arena[T any] struct {
	slots []slot[T]
	free  []uint32
	live  int
}

func (a *arena[T]) insert(value T, parent Handle) Handle {
	var index uint32
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot[T]{})
		index = uint32(len(a.slots) - 1)
	}
	s := &a.slots[index]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.value = value
	s.parent = parent
	s.live = true
	a.live++
	return Handle{index: index, gen: s.gen}
}

func (a *arena[T]) lookup(h Handle) (*slot[T], bool) {
	if h.IsZero() || int(h.index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[h.index]
	if !s.live || s.gen != h.gen {
		return nil, false
	}
	return s, true
}

func (a *arena[T]) get(h Handle) (T, bool) {
	s, ok := a.lookup(h)
	if !ok {
		var zero T
		return zero, false
	}
	return s.value, true
}

func (a *arena[T]) parentOf(h Handle) (Handle, bool) {
	s, ok := a.lookup(h)
	if !ok {
		return Handle{}, false
	}
	return s.parent, true
}

func (a *arena[T]) setParent(h, parent Handle) bool {
	s, ok := a.lookup(h)
	if !ok {
		return false
	}
	s.parent = parent
	return true
}

func (a *arena[T]) release(h Handle) bool {
	s, ok := a.lookup(h)
	if !ok {
		return false
	}
	var zero T
	s.value = zero
	s.parent = Handle{}
	s.live = false
	a.free = append(a.free, h.index)
	a.live--
	return true
}

func (a *arena[T]) len() int {
	return a.live
}
