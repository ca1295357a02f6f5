package undo

import (
	"strings"
	"time"

	"github.com/goliatone/go-undo/pkg/activity"
	"github.com/google/uuid"
)

// Response stores a typed result produced by an evaluator.
type Response[T any] struct {
	Value T
}

// RuleContext carries inputs needed when evaluating an expression.
type RuleContext struct {
	Snapshot map[string]any
	Revision int64
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	// Label names the element the snapshot was taken from ("head",
	// "layer/3#1").
	Label string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	if ctx.Snapshot == nil {
		ctx.Snapshot = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) label() string {
	if ctx.Label != "" {
		return ctx.Label
	}
	return "unknown"
}

// bindings returns the variables every engine exposes besides the snapshot
// keys themselves.
func (ctx RuleContext) bindings() map[string]any {
	return map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"revision": ctx.Revision,
		"state":    ctx.Snapshot,
	}
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// Option configures a Stack.
type Option func(*stackConfig)

type stackConfig struct {
	id           uuid.UUID
	actorID      string
	logger       OperationLogger
	evalLogger   EvaluatorLogger
	evaluator    Evaluator
	programCache ProgramCache
	functions    *FunctionRegistry
	commitGuard  string
	hooks        activity.Hooks
	activity     activity.Config
	emitter      *activity.Emitter
}

func applyOptions(opts []Option) stackConfig {
	cfg := stackConfig{
		activity: activity.Config{Enabled: true},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.id == uuid.Nil {
		cfg.id = uuid.New()
	}
	if cfg.logger == nil {
		cfg.logger = noopOperationLogger{}
	}
	if cfg.evalLogger == nil {
		cfg.evalLogger = noopEvaluatorLogger{}
	}
	cfg.emitter = activity.NewEmitter(cfg.hooks, cfg.activity)
	return cfg
}

// WithStackID sets the identifier reported in logs and activity events.
// A random identifier is generated when none is supplied.
func WithStackID(id uuid.UUID) Option {
	return func(cfg *stackConfig) {
		cfg.id = id
	}
}

// WithActor records who drives the stack; it is forwarded as the actor of
// every activity event.
func WithActor(actorID string) Option {
	return func(cfg *stackConfig) {
		cfg.actorID = strings.TrimSpace(actorID)
	}
}

// WithEvaluator configures the evaluator used by Evaluate and commit guards.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *stackConfig) {
		cfg.evaluator = e
	}
}

// WithProgramCache registers a program cache used by the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *stackConfig) {
		cfg.programCache = cache
	}
}

// WithCommitGuard installs a rule that must evaluate to true against the
// state the head would hold after a commit. An empty expression removes the
// guard.
func WithCommitGuard(expr string) Option {
	return func(cfg *stackConfig) {
		cfg.commitGuard = strings.TrimSpace(expr)
	}
}
