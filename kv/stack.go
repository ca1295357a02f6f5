package kv

import "github.com/goliatone/go-undo"

// Stack is an undo stack of sessions over a Head.
type Stack = undo.Stack[*Head, *Session]

// NewLayer opens a session over parent. It is the layer factory used by
// NewStack.
func NewLayer(parent undo.Element[*Head, *Session]) (*Session, error) {
	store := storeOf(parent)
	if store == nil {
		return nil, ErrNoParent
	}
	return NewSession(store)
}

// NewStack builds a stack of sessions over head.
func NewStack(head *Head, opts ...undo.Option) (*Stack, error) {
	return undo.NewStack[*Head, *Session](head, NewLayer, opts...)
}

// NewStackFromConfig builds a stack of sessions over head from cfg.
func NewStackFromConfig(head *Head, cfg undo.Config, opts ...undo.Option) (*Stack, error) {
	return undo.NewStackFromConfig[*Head, *Session](head, NewLayer, cfg, opts...)
}

// Scoped runs fn with a stack of sessions over head and always closes it.
func Scoped(head *Head, fn func(*Stack) error, opts ...undo.Option) error {
	return undo.Scoped[*Head, *Session](head, NewLayer, fn, opts...)
}
