package undo

import (
	"context"
	"log/slog"
	"time"
)

// OperationLogEvent describes one call into the stack.
type OperationLogEvent struct {
	Op       string
	StackID  string
	Previous int64
	Revision int64
	Target   int64
	Size     int
	Affected int
	Handle   Handle
	Duration time.Duration
	Err      error
}

// Noop reports whether the call left the stack untouched.
func (e OperationLogEvent) Noop() bool {
	return e.Err == nil && e.Affected == 0
}

// OperationLogger records stack operations.
type OperationLogger interface {
	LogOperation(OperationLogEvent)
}

// OperationLoggerFunc adapts a function to OperationLogger.
type OperationLoggerFunc func(OperationLogEvent)

// LogOperation implements OperationLogger.
func (f OperationLoggerFunc) LogOperation(event OperationLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopOperationLogger struct{}

func (noopOperationLogger) LogOperation(OperationLogEvent) {}

// WithLogger attaches an operation logger to the stack.
func WithLogger(logger OperationLogger) Option {
	return func(cfg *stackConfig) {
		if logger == nil {
			cfg.logger = noopOperationLogger{}
			return
		}
		cfg.logger = logger
	}
}

// EvaluatorLogEvent describes an evaluation attempt for logging.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Label    string
	Revision int64
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// WithEvaluatorLogger attaches an evaluator logger to the stack.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *stackConfig) {
		if logger == nil {
			cfg.evalLogger = noopEvaluatorLogger{}
			return
		}
		cfg.evalLogger = logger
	}
}

// SlogLogger writes operation and evaluation events to logger. Failed calls
// log at error level, no-ops at debug level and everything else at info.
type SlogLogger struct {
	Logger *slog.Logger
}

// NewSlogLogger wraps logger, falling back to slog.Default when nil.
func NewSlogLogger(logger *slog.Logger) SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return SlogLogger{Logger: logger}
}

// LogOperation implements OperationLogger.
func (l SlogLogger) LogOperation(event OperationLogEvent) {
	logger := l.logger()
	attrs := []slog.Attr{
		slog.String("op", event.Op),
		slog.String("stack_id", event.StackID),
		slog.Int64("revision", event.Revision),
		slog.Int64("previous_revision", event.Previous),
		slog.Int("size", event.Size),
		slog.Int("affected", event.Affected),
		slog.Duration("duration", event.Duration),
	}
	if event.Op == opCommit {
		attrs = append(attrs, slog.Int64("target", event.Target))
	}
	if !event.Handle.IsZero() {
		attrs = append(attrs, slog.String("handle", event.Handle.String()))
	}

	level := slog.LevelInfo
	msg := "undo stack operation"
	switch {
	case event.Err != nil:
		level = slog.LevelError
		msg = "undo stack operation failed"
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	case event.Noop():
		level = slog.LevelDebug
		msg = "undo stack operation skipped"
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogEvaluation implements EvaluatorLogger.
func (l SlogLogger) LogEvaluation(event EvaluatorLogEvent) {
	logger := l.logger()
	attrs := []slog.Attr{
		slog.String("engine", event.Engine),
		slog.String("expr", event.Expr),
		slog.String("at", event.Label),
		slog.Int64("revision", event.Revision),
		slog.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
		logger.LogAttrs(context.Background(), slog.LevelWarn, "undo rule evaluation failed", attrs...)
		return
	}
	logger.LogAttrs(context.Background(), slog.LevelDebug, "undo rule evaluated", attrs...)
}

func (l SlogLogger) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}
