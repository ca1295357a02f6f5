package undo

import (
	"fmt"
	"time"
)

// Evaluate runs expr against the state visible through Top().
func (s *Stack[H, L]) Evaluate(expr string) (Response[any], error) {
	return s.EvaluateWith(RuleContext{}, expr)
}

// EvaluateWith runs expr using ctx. When ctx.Snapshot is nil the state
// visible through Top() is used, and its revision and label are filled in.
func (s *Stack[H, L]) EvaluateWith(ctx RuleContext, expr string) (Response[any], error) {
	if ctx.Snapshot == nil {
		top := s.Top()
		snapshot, ok := snapshotOf(top)
		if !ok {
			return Response[any]{}, ErrNoSnapshot
		}
		ctx.Snapshot = snapshot
		ctx.Revision = top.Revision
		ctx.Label = elementLabel(top)
	}
	value, err := s.evaluate(ctx, expr)
	if err != nil {
		return Response[any]{}, err
	}
	return Response[any]{Value: value}, nil
}

func (s *Stack[H, L]) evaluate(ctx RuleContext, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("undo: expression must not be empty")
	}
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	ctx = ctx.withDefaults()
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError(evaluatorEngineName(evaluator), expr, ctx.label(), evalErr)
	s.cfg.evalLogger.LogEvaluation(EvaluatorLogEvent{
		Engine:   evaluatorEngineName(evaluator),
		Expr:     expr,
		Label:    ctx.label(),
		Revision: ctx.Revision,
		Duration: duration,
		Err:      evalErr,
	})
	return value, evalErr
}

// checkGuard evaluates the commit guard against the layer at position index,
// whose view is exactly what the head holds once positions 0..index fold.
func (s *Stack[H, L]) checkGuard(index int) error {
	if s.cfg.commitGuard == "" {
		return nil
	}
	target := s.elementAt(index)
	snapshot, ok := snapshotOf(target)
	if !ok {
		return ErrNoSnapshot
	}
	value, err := s.evaluate(RuleContext{
		Snapshot: snapshot,
		Revision: target.Revision,
		Label:    elementLabel(target),
	}, s.cfg.commitGuard)
	if err != nil {
		return err
	}
	if passed, ok := value.(bool); !ok || !passed {
		return fmt.Errorf("%w: %q returned %v at revision %d", ErrGuardRejected, s.cfg.commitGuard, value, target.Revision)
	}
	return nil
}

func (s *Stack[H, L]) resolveEvaluator() (Evaluator, error) {
	if s.cfg.evaluator != nil {
		return s.cfg.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cache := s.cfg.programCache; cache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cache))
	}
	if registry := s.cfg.functions; registry != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(registry))
	}
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	s.cfg.evaluator = defaultEvaluator
	return defaultEvaluator, nil
}

func elementLabel[H any, L any](e Element[H, L]) string {
	if e.Kind == ElementHead {
		return "head"
	}
	return e.Handle.String()
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	default:
		if isJSEvaluator(e) {
			return "js"
		}
		return "custom"
	}
}
