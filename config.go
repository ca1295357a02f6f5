package undo

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-undo/internal/hydrate"
	"github.com/goliatone/go-undo/pkg/activity"
	"github.com/google/uuid"
)

// Config is the serialisable form of the stack options, for hosts that keep
// stack settings next to the rest of their configuration.
type Config struct {
	StartRevision int64          `json:"start_revision"`
	StackID       string         `json:"stack_id"`
	ActorID       string         `json:"actor_id"`
	Activity      ActivityConfig `json:"activity"`
	CommitGuard   GuardConfig    `json:"commit_guard"`
}

// ActivityConfig controls activity emission. Enabled defaults to true.
type ActivityConfig struct {
	Enabled *bool  `json:"enabled"`
	Channel string `json:"channel"`
}

// GuardConfig names the engine ("expr", "cel" or "js") and expression of the
// commit guard.
type GuardConfig struct {
	Engine string `json:"engine"`
	Expr   string `json:"expr"`
}

// DecodeConfig hydrates a Config from a generic payload (decoded JSON, YAML
// or similar). Unknown fields are rejected.
func DecodeConfig(payload map[string]any) (Config, error) {
	decoder := hydrate.NewDecoder(
		hydrate.WithDisallowUnknownFields[Config](),
		hydrate.WithPreHook[Config](normalizeConfigPayload),
		hydrate.WithPostHook[Config](func(_ hydrate.Context, cfg *Config) error {
			return cfg.Validate()
		}),
	)
	return decoder.Decode(hydrate.Context{Source: "undo", Section: "stack"}, payload)
}

// Validate checks identifiers, revision and guard engine.
func (c Config) Validate() error {
	if c.StartRevision < 0 {
		return fmt.Errorf("undo: start_revision must not be negative, got %d", c.StartRevision)
	}
	if c.StackID != "" {
		if _, err := uuid.Parse(c.StackID); err != nil {
			return fmt.Errorf("undo: stack_id: %w", err)
		}
	}
	switch engine := c.guardEngine(); engine {
	case "expr", "cel":
	case "js":
		if !jsEvaluatorAvailable() {
			return fmt.Errorf("undo: commit_guard engine %q requires the js_eval build tag", engine)
		}
	default:
		return fmt.Errorf("undo: unsupported commit_guard engine %q", c.CommitGuard.Engine)
	}
	return nil
}

// Options converts the configuration into stack options. StartRevision is
// not an option: NewStackFromConfig applies it through SetRevision.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var opts []Option
	if c.StackID != "" {
		opts = append(opts, WithStackID(uuid.MustParse(c.StackID)))
	}
	if c.ActorID != "" {
		opts = append(opts, WithActor(c.ActorID))
	}
	enabled := true
	if c.Activity.Enabled != nil {
		enabled = *c.Activity.Enabled
	}
	opts = append(opts, WithActivityConfig(activity.Config{Enabled: enabled, Channel: c.Activity.Channel}))

	if expr := strings.TrimSpace(c.CommitGuard.Expr); expr != "" {
		opts = append(opts, WithCommitGuard(expr))
		switch c.guardEngine() {
		case "cel":
			opts = append(opts, WithEvaluator(NewCELEvaluator()))
		case "js":
			opts = append(opts, WithEvaluator(NewJSEvaluator()))
		}
	}
	return opts, nil
}

func (c Config) guardEngine() string {
	engine := strings.ToLower(strings.TrimSpace(c.CommitGuard.Engine))
	if engine == "" {
		return "expr"
	}
	return engine
}

// NewStackFromConfig builds a stack from cfg, appending extra options after
// the configured ones, and seeds the revision counter.
func NewStackFromConfig[H any, L Layer[H, L]](head H, factory LayerFactory[H, L], cfg Config, extra ...Option) (*Stack[H, L], error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	stack, err := NewStack(head, factory, append(opts, extra...)...)
	if err != nil {
		return nil, err
	}
	stack.SetRevision(cfg.StartRevision)
	return stack, nil
}

// normalizeConfigPayload accepts a few common spellings used by hosts that
// write camelCase configuration.
func normalizeConfigPayload(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	aliases := map[string]string{
		"startRevision": "start_revision",
		"stackId":       "stack_id",
		"actorId":       "actor_id",
		"commitGuard":   "commit_guard",
	}
	for from, to := range aliases {
		value, ok := payload[from]
		if !ok {
			continue
		}
		if _, exists := payload[to]; exists {
			return nil, fmt.Errorf("undo: both %q and %q are set", from, to)
		}
		payload[to] = value
		delete(payload, from)
	}
	return payload, nil
}
