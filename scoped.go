package undo

import "errors"

// Scoped builds a stack over head, hands it to fn and always closes it, on
// error and panic paths included. Layers fn leaves pending are discarded, not
// committed. Close failures are joined with fn's error.
func Scoped[H any, L Layer[H, L]](head H, factory LayerFactory[H, L], fn func(*Stack[H, L]) error, opts ...Option) (err error) {
	stack, err := NewStack(head, factory, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := stack.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	return fn(stack)
}
