package undo

import (
	"errors"
	"fmt"
	"time"
)

const (
	opPush   = "push"
	opUndo   = "undo"
	opSquash = "squash"
	opCommit = "commit"
	opClose  = "close"
)

// Stack is an ordered collection of pending layers chained over a single
// head. The bottom layer is the oldest and the next one eligible for commit;
// the top layer is the most recent and the one callers mutate.
//
// Every layer except the bottom is parented to the layer directly below it,
// and the bottom layer is parented to the head. Each push assigns the next
// revision, so Revision()-Size()+1 is always the revision of the bottom layer.
//
// Stack is not safe for concurrent use.
type Stack[H any, L Layer[H, L]] struct {
	head     H
	newLayer LayerFactory[H, L]
	revision int64
	layers   arena[L]
	order    []Handle
	closed   bool
	cfg      stackConfig
}

// NewStack builds an empty stack over head. The stack never owns head: it
// folds committed layers into it and nothing else.
func NewStack[H any, L Layer[H, L]](head H, factory LayerFactory[H, L], opts ...Option) (*Stack[H, L], error) {
	if factory == nil {
		return nil, ErrFactoryRequired
	}
	return &Stack[H, L]{
		head:     head,
		newLayer: factory,
		cfg:      applyOptions(opts),
	}, nil
}

// Push chains a new layer onto the current top (or the head when the stack is
// empty) and assigns it the next revision.
func (s *Stack[H, L]) Push() (Handle, error) {
	op := s.begin(opPush)
	if s.closed {
		return Handle{}, s.done(op, s.wrap(op, ErrStackClosed))
	}

	parent := s.Top()
	layer, err := s.newLayer(parent)
	if err != nil {
		return Handle{}, s.done(op, s.wrap(op, err))
	}

	h := s.layers.insert(layer, parent.Handle)
	s.order = append(s.order, h)
	s.revision++

	op.handle = h
	op.affected = 1
	return h, s.done(op, nil)
}

// Undo discards the top layer without folding any of its changes. It is a
// no-op on an empty stack.
func (s *Stack[H, L]) Undo() error {
	op := s.begin(opUndo)
	if len(s.order) == 0 {
		return s.done(op, nil)
	}

	h := s.order[len(s.order)-1]
	op.handle = h
	layer, _ := s.layers.get(h)
	if err := layer.Detach(); err != nil {
		return s.done(op, s.wrap(op, err))
	}
	s.pop()

	op.affected = 1
	return s.done(op, nil)
}

// Squash folds the top layer into the layer beneath it (or into the head when
// it is the only layer) and removes it, collapsing two revisions into one.
// It is a no-op on an empty stack.
//
// A failed fold leaves the stack unchanged. Once the fold succeeded the layer
// is removed even if its Detach fails, since its changes already live in the
// parent; the Detach error is returned.
func (s *Stack[H, L]) Squash() error {
	op := s.begin(opSquash)
	if len(s.order) == 0 {
		return s.done(op, nil)
	}

	h := s.order[len(s.order)-1]
	op.handle = h
	layer, _ := s.layers.get(h)
	if err := layer.Commit(); err != nil {
		return s.done(op, s.wrap(op, err))
	}
	detachErr := layer.Detach()
	s.pop()
	op.affected = 1

	if detachErr != nil {
		return s.done(op, s.wrap(op, detachErr))
	}
	return s.done(op, nil)
}

// Commit folds every layer whose revision is at or below target into the
// head, oldest last, and removes them. target is clamped to Revision(). When
// target is below the bottom layer's revision nothing is eligible and the
// call is a no-op. The first layer left on the stack is re-attached to the
// head; it keeps its own changes.
//
// If a layer fails to fold, the stack is left as it was (layers that already
// folded keep whatever state their own Commit left them in). Detach failures
// on folded layers do not stop their removal; they are joined into the
// returned error.
func (s *Stack[H, L]) Commit(target int64) error {
	op := s.begin(opCommit)
	op.target = target
	if len(s.order) == 0 {
		return s.done(op, nil)
	}

	target = min(target, s.revision)
	op.target = target
	initial := s.revision - int64(len(s.order)) + 1
	if target < initial {
		return s.done(op, nil)
	}
	count := int(target - initial + 1)

	if err := s.checkGuard(count - 1); err != nil {
		return s.done(op, s.wrap(op, err))
	}

	for i := count - 1; i >= 0; i-- {
		h := s.order[i]
		layer, _ := s.layers.get(h)
		if err := layer.Commit(); err != nil {
			op.handle = h
			return s.done(op, s.wrap(op, err))
		}
	}

	var errs []error
	for _, h := range s.order[:count] {
		layer, _ := s.layers.get(h)
		if err := layer.Detach(); err != nil {
			errs = append(errs, &OperationError{Op: opCommit, Revision: s.revision, Handle: h, Err: err})
		}
		s.layers.release(h)
	}
	s.order = append(s.order[:0], s.order[count:]...)
	op.affected = count

	if len(s.order) > 0 {
		front := s.order[0]
		s.layers.setParent(front, Handle{})
		layer, _ := s.layers.get(front)
		if err := layer.Attach(s.headElement()); err != nil {
			errs = append(errs, &OperationError{Op: opCommit, Revision: s.revision, Handle: front, Err: err})
		}
	}
	return s.done(op, errors.Join(errs...))
}

// Empty reports whether no layer is pending.
func (s *Stack[H, L]) Empty() bool {
	return len(s.order) == 0
}

// Size returns the number of pending layers.
func (s *Stack[H, L]) Size() int {
	return len(s.order)
}

// Revision returns the revision of the top layer, or the committed revision
// when the stack is empty.
func (s *Stack[H, L]) Revision() int64 {
	return s.revision
}

// SetRevision seeds the revision counter, typically after restoring a head
// persisted at a known revision. It only applies while the stack is empty and
// when revision is greater than the current one; otherwise nothing changes and
// false is returned.
func (s *Stack[H, L]) SetRevision(revision int64) bool {
	if !s.Empty() {
		return false
	}
	if revision <= s.revision {
		return false
	}
	s.revision = revision
	return true
}

// Head returns the head the stack folds into.
func (s *Stack[H, L]) Head() H {
	return s.head
}

// Top returns the most recently pushed layer, or the head when the stack is
// empty. Either way the result is a valid mutation target.
func (s *Stack[H, L]) Top() Element[H, L] {
	if len(s.order) == 0 {
		return s.headElement()
	}
	return s.elementAt(len(s.order) - 1)
}

// Bottom returns the oldest pending layer, the next one to be committed, or
// the head when the stack is empty.
func (s *Stack[H, L]) Bottom() Element[H, L] {
	if len(s.order) == 0 {
		return s.headElement()
	}
	return s.elementAt(0)
}

// Layer resolves a handle returned by Push. It reports false once the layer
// has been undone, squashed, committed or closed.
func (s *Stack[H, L]) Layer(h Handle) (L, bool) {
	return s.layers.get(h)
}

// Chain lists the pending layers from bottom to top.
func (s *Stack[H, L]) Chain() []Element[H, L] {
	if len(s.order) == 0 {
		return nil
	}
	out := make([]Element[H, L], len(s.order))
	for i := range s.order {
		out[i] = s.elementAt(i)
	}
	return out
}

// Verify checks that every layer is parented to the layer below it and the
// bottom layer to the head.
func (s *Stack[H, L]) Verify() error {
	if live := s.layers.len(); live != len(s.order) {
		return fmt.Errorf("%w: %d live layers, %d in sequence", ErrBrokenChain, live, len(s.order))
	}
	if s.revision-int64(len(s.order)) < 0 {
		return fmt.Errorf("%w: revision %d below size %d", ErrBrokenChain, s.revision, len(s.order))
	}
	want := Handle{}
	for i, h := range s.order {
		parent, ok := s.layers.parentOf(h)
		if !ok {
			return fmt.Errorf("%w: position %d (%s) is not live", ErrBrokenChain, i, h)
		}
		if parent != want {
			return fmt.Errorf("%w: position %d (%s) parented to %s, want %s", ErrBrokenChain, i, h, parent, want)
		}
		want = h
	}
	return nil
}

// Close discards every pending layer, top first, the same way Undo does.
// Nothing is ever committed by Close. Layers are released even when their
// Detach fails; the failures are joined into the returned error. Close is
// idempotent, and Push fails with ErrStackClosed afterwards.
func (s *Stack[H, L]) Close() error {
	if s.closed {
		return nil
	}
	op := s.begin(opClose)
	s.closed = true

	var errs []error
	for len(s.order) > 0 {
		h := s.order[len(s.order)-1]
		layer, _ := s.layers.get(h)
		if err := layer.Detach(); err != nil {
			errs = append(errs, &OperationError{Op: opClose, Revision: s.revision, Handle: h, Err: err})
		}
		s.pop()
		op.affected++
	}
	return s.done(op, errors.Join(errs...))
}

// ID returns the identifier reported in logs and activity events.
func (s *Stack[H, L]) ID() string {
	return s.cfg.id.String()
}

func (s *Stack[H, L]) pop() {
	n := len(s.order) - 1
	s.layers.release(s.order[n])
	s.order = s.order[:n]
	s.revision--
}

func (s *Stack[H, L]) headElement() Element[H, L] {
	return Element[H, L]{
		Kind:     ElementHead,
		Head:     s.head,
		Revision: s.revision - int64(len(s.order)),
	}
}

func (s *Stack[H, L]) elementAt(i int) Element[H, L] {
	h := s.order[i]
	layer, _ := s.layers.get(h)
	return Element[H, L]{
		Kind:     ElementLayer,
		Layer:    layer,
		Handle:   h,
		Revision: s.revision - int64(len(s.order)) + 1 + int64(i),
	}
}

type operation struct {
	name     string
	previous int64
	target   int64
	handle   Handle
	affected int
	start    time.Time
}

func (s *Stack[H, L]) begin(name string) operation {
	return operation{name: name, previous: s.revision, start: time.Now()}
}

func (s *Stack[H, L]) wrap(op operation, err error) error {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err
	}
	return &OperationError{Op: op.name, Revision: s.revision, Handle: op.handle, Err: err}
}

func (s *Stack[H, L]) done(op operation, err error) error {
	s.cfg.logger.LogOperation(OperationLogEvent{
		Op:       op.name,
		StackID:  s.ID(),
		Previous: op.previous,
		Revision: s.revision,
		Target:   op.target,
		Size:     len(s.order),
		Affected: op.affected,
		Handle:   op.handle,
		Duration: time.Since(op.start),
		Err:      err,
	})
	if op.affected > 0 {
		s.emit(op)
	}
	return err
}
