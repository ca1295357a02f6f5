package undo

import (
	"context"

	"github.com/goliatone/go-undo/pkg/activity"
)

// WithActivityHooks attaches activity hooks notified after every operation
// that changed the stack. Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *stackConfig) {
		cfg.hooks = normalized
	}
}

// WithActivityConfig overrides the emitter defaults. Emission is enabled by
// default whenever hooks are configured.
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *stackConfig) {
		cfg.activity = config
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (s *Stack[H, L]) ActivityHooks() activity.Hooks {
	if s == nil {
		return nil
	}
	return cloneActivityHooks(s.cfg.hooks)
}

// emit notifies hooks about a completed operation. Hook failures are logged
// and never fail the operation.
func (s *Stack[H, L]) emit(op operation) {
	if !s.cfg.emitter.Enabled() {
		return
	}
	input := activity.StackEventInput{
		ActorID:          s.cfg.actorID,
		StackID:          s.ID(),
		Handle:           handleLabel(op.handle),
		Revision:         s.revision,
		PreviousRevision: op.previous,
		Size:             len(s.order),
		Affected:         op.affected,
	}

	var event activity.Event
	switch op.name {
	case opPush:
		event = activity.BuildLayerPushedEvent(input)
	case opUndo:
		event = activity.BuildLayerUndoneEvent(input)
	case opSquash:
		event = activity.BuildLayerSquashedEvent(input)
	case opCommit:
		input.Target = op.target
		event = activity.BuildStackCommittedEvent(input)
	case opClose:
		event = activity.BuildStackClosedEvent(input)
	default:
		return
	}

	if err := s.cfg.emitter.Emit(context.Background(), event); err != nil {
		s.cfg.logger.LogOperation(OperationLogEvent{
			Op:       op.name + ".activity",
			StackID:  s.ID(),
			Previous: op.previous,
			Revision: s.revision,
			Size:     len(s.order),
			Handle:   op.handle,
			Err:      err,
		})
	}
}

func handleLabel(h Handle) string {
	if h.IsZero() {
		return ""
	}
	return h.String()
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
