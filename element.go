package undo

// ElementKind tags what an Element refers to.
type ElementKind uint8

const (
	// ElementHead marks the durable base state the stack folds into.
	ElementHead ElementKind = iota
	// ElementLayer marks one pending layer on the stack.
	ElementLayer
)

func (k ElementKind) String() string {
	switch k {
	case ElementHead:
		return "head"
	case ElementLayer:
		return "layer"
	default:
		return "unknown"
	}
}

// Element is either the head or one pending layer. Callers switch on Kind
// instead of comparing pointers: Head is only meaningful for ElementHead,
// Layer and Handle only for ElementLayer.
type Element[H any, L any] struct {
	Kind     ElementKind
	Head     H
	Layer    L
	Handle   Handle
	Revision int64
}

// IsHead reports whether e refers to the head.
func (e Element[H, L]) IsHead() bool {
	return e.Kind == ElementHead
}

// Value returns the head or the layer, whichever e refers to.
func (e Element[H, L]) Value() any {
	if e.Kind == ElementLayer {
		return e.Layer
	}
	return e.Head
}

// Layer is the capability set the stack needs from a changeset overlay.
//
// Commit folds the layer's deltas into its current parent. Detach severs the
// parent link without folding anything. Attach re-links the layer onto a new
// parent after the layer beneath it was committed away.
type Layer[H any, L any] interface {
	Commit() error
	Detach() error
	Attach(parent Element[H, L]) error
}

// LayerFactory builds a new layer chained onto parent. The new layer must not
// change what parent exposes until it is committed.
type LayerFactory[H any, L any] func(parent Element[H, L]) (L, error)

// Snapshotter is implemented by heads and layers that can materialise the
// state visible through them. Rule evaluation and commit guards need it.
type Snapshotter interface {
	Snapshot() map[string]any
}

func snapshotOf[H any, L any](e Element[H, L]) (map[string]any, bool) {
	s, ok := e.Value().(Snapshotter)
	if !ok || s == nil {
		return nil, false
	}
	return s.Snapshot(), true
}
