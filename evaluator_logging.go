package store

import (
	"time"

	"go.uber.org/zap"
)

// EvaluatorLogEvent describes one selector evaluation.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
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

// WithEvaluatorLogger replaces the default evaluator logging, which writes
// debug entries to the store logger. A nil logger disables it.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.evaluatorLogger = noopEvaluatorLogger{}
			return
		}
		cfg.evaluatorLogger = logger
	}
}

func (s *Store) logEvaluation(event EvaluatorLogEvent) {
	if s.cfg.evaluatorLogger != nil {
		s.cfg.evaluatorLogger.LogEvaluation(event)
		return
	}
	fields := []zap.Field{
		zap.String("engine", event.Engine),
		zap.String("expr", event.Expr),
		zap.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		s.logger.Debug("selector failed", append(fields, zap.Error(event.Err))...)
		return
	}
	s.logger.Debug("selector evaluated", fields...)
}
