package undo

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFactoryRequired indicates NewStack received a nil layer factory.
	ErrFactoryRequired = errors.New("undo: layer factory is required")
	// ErrStackClosed indicates Push was called after Close.
	ErrStackClosed = errors.New("undo: stack is closed")
	// ErrBrokenChain indicates Verify found a layer whose parent link does not
	// match its position in the stack.
	ErrBrokenChain = errors.New("undo: broken layer chain")
	// ErrGuardRejected indicates the commit guard did not evaluate to true.
	ErrGuardRejected = errors.New("undo: commit guard rejected")
	// ErrNoSnapshot indicates the element being evaluated cannot expose its
	// visible state.
	ErrNoSnapshot = errors.New("undo: element does not implement Snapshotter")
	// ErrNoEvaluator indicates no evaluator could be resolved.
	ErrNoEvaluator = errors.New("undo: evaluator not configured")
)

// OperationError reports a failure raised by a layer, the layer factory or a
// guard while the stack was running Op.
type OperationError struct {
	Op       string
	Revision int64
	Handle   Handle
	Err      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Handle.IsZero() {
		return fmt.Sprintf("undo: %s at revision %d: %v", e.Op, e.Revision, e.Err)
	}
	return fmt.Sprintf("undo: %s %s at revision %d: %v", e.Op, e.Handle, e.Revision, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Label  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("undo: %s evaluator %s at=%s: %v", e.Engine, describeExpression(e.Expr), e.Label, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "undo:") {
		return err
	}
	return fmt.Errorf("undo: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, label string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Label == "" {
			evalErr.Label = label
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Label:  label,
		Err:    err,
	}
}
