package store

import (
	"errors"
	"time"
)

// ErrSelectorTimeout is returned when a JS selector runs past its limit.
var ErrSelectorTimeout = errors.New("store: selector exceeded its time limit")

// JSEvaluatorOption configures the JS evaluator.
type JSEvaluatorOption func(*jsSettings)

type jsSettings struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// JSWithProgramCache shares compiled goja programs through cache. Keys are
// prefixed with "js:" so one cache can serve every engine.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(s *jsSettings) { s.cache = cache }
}

// JSWithFunctionRegistry exposes registry functions both by name and through
// call(name, ...args).
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(s *jsSettings) {
		if registry != nil {
			s.registry = registry.Clone()
		}
	}
}

// JSWithTimeout interrupts selectors that run longer than d. Zero disables
// the limit.
func JSWithTimeout(d time.Duration) JSEvaluatorOption {
	return func(s *jsSettings) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

func collectJSSettings(opts []JSEvaluatorOption) jsSettings {
	var s jsSettings
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}
