package undo

import (
	"fmt"
	"maps"
)

// fakeHead and fakeLayer record every collaborator call in a shared journal
// so tests can assert call order.
type fakeHead struct {
	values  map[string]any
	journal *[]string
}

func (h *fakeHead) Snapshot() map[string]any {
	return maps.Clone(h.values)
}

type fakeLayer struct {
	name      string
	parent    Element[*fakeHead, *fakeLayer]
	attached  bool
	values    map[string]any
	journal   *[]string
	commitErr error
	detachErr error
	attachErr error
}

func (l *fakeLayer) Snapshot() map[string]any {
	var out map[string]any
	switch {
	case !l.attached:
		out = map[string]any{}
	case l.parent.IsHead():
		out = l.parent.Head.Snapshot()
	default:
		out = l.parent.Layer.Snapshot()
	}
	maps.Copy(out, l.values)
	return out
}

func (l *fakeLayer) Commit() error {
	l.record("commit %s", l.name)
	if l.commitErr != nil {
		return l.commitErr
	}
	if !l.attached {
		return fmt.Errorf("%s is detached", l.name)
	}
	var target map[string]any
	if l.parent.IsHead() {
		target = l.parent.Head.values
	} else {
		target = l.parent.Layer.values
	}
	maps.Copy(target, l.values)
	l.values = map[string]any{}
	return nil
}

func (l *fakeLayer) Detach() error {
	l.record("detach %s", l.name)
	if l.detachErr != nil {
		return l.detachErr
	}
	l.attached = false
	l.parent = Element[*fakeHead, *fakeLayer]{}
	l.values = map[string]any{}
	return nil
}

func (l *fakeLayer) Attach(parent Element[*fakeHead, *fakeLayer]) error {
	l.record("attach %s to %s", l.name, elementLabel(parent))
	if l.attachErr != nil {
		return l.attachErr
	}
	l.parent = parent
	l.attached = true
	return nil
}

func (l *fakeLayer) set(key string, value any) {
	l.values[key] = value
}

func (l *fakeLayer) record(format string, args ...any) {
	if l.journal != nil {
		*l.journal = append(*l.journal, fmt.Sprintf(format, args...))
	}
}

type fakeWorld struct {
	head    *fakeHead
	journal []string
	created []*fakeLayer
	failNew error
}

func newFakeWorld(initial map[string]any) *fakeWorld {
	w := &fakeWorld{}
	values := map[string]any{}
	maps.Copy(values, initial)
	w.head = &fakeHead{values: values, journal: &w.journal}
	return w
}

func (w *fakeWorld) factory(parent Element[*fakeHead, *fakeLayer]) (*fakeLayer, error) {
	if w.failNew != nil {
		return nil, w.failNew
	}
	layer := &fakeLayer{
		name:     fmt.Sprintf("L%d", len(w.created)+1),
		parent:   parent,
		attached: true,
		values:   map[string]any{},
		journal:  &w.journal,
	}
	w.created = append(w.created, layer)
	return layer, nil
}

func (w *fakeWorld) stack(opts ...Option) *Stack[*fakeHead, *fakeLayer] {
	stack, err := NewStack[*fakeHead, *fakeLayer](w.head, w.factory, opts...)
	if err != nil {
		panic(err)
	}
	return stack
}

func (w *fakeWorld) resetJournal() {
	w.journal = nil
}
