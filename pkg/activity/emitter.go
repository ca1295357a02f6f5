package activity

import (
	"context"
	"strings"
)

// DefaultChannel is the channel stack events are published on unless the
// stack configuration names another one.
const DefaultChannel = "undo"

// Config is the activity section of a stack configuration. Emission only
// happens when Enabled is set and at least one hook is registered.
type Config struct {
	Enabled bool
	Channel string
}

// Emitter is what a stack holds to publish its events. It is built once
// from the stack options and consulted after every operation that changed
// the stack.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	normalizedHooks := cloneHooks(hooks)
	return &Emitter{
		hooks:   normalizedHooks,
		enabled: cfg.Enabled && len(normalizedHooks) > 0,
		channel: channel,
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled && len(e.hooks) > 0
}

// Channel returns the channel applied to events without one.
func (e *Emitter) Channel() string {
	if e == nil {
		return DefaultChannel
	}
	return e.channel
}

// Emit publishes event on the emitter's channel unless the event names its
// own, and returns the joined hook errors.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	return e.hooks.Notify(ctx, e.onChannel(event))
}

func (e *Emitter) onChannel(event Event) Event {
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return event
}

func cloneHooks(hooks Hooks) Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return Hooks(normalized)
}
