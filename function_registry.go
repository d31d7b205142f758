package store

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ErrFunctionNotFound is returned when a selector calls an unknown function.
var ErrFunctionNotFound = errors.New("store: function not registered")

var functionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Function is a helper callable from selector expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry holds selector helpers. Names are case-insensitive, must be
// identifiers, and are stored lower-cased.
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{funcs: map[string]Function{}}
}

// Register stores fn under name, rejecting duplicates.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	switch {
	case fn == nil:
		return fmt.Errorf("store: function %q is nil", name)
	case !functionName.MatchString(name):
		return fmt.Errorf("store: function name %q is not an identifier", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = map[string]Function{}
	}
	key := strings.ToLower(name)
	if _, exists := r.funcs[key]; exists {
		return fmt.Errorf("store: function %q already registered", name)
	}
	r.funcs[key] = fn
	return nil
}

// Has reports whether name is registered.
func (r *FunctionRegistry) Has(name string) bool {
	return r.lookup(name) != nil
}

// Call runs the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	fn := r.lookup(name)
	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	return fn(args...)
}

// Names returns registered names sorted alphabetically.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Clone returns a registry with the same functions.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{funcs: make(map[string]Function, len(r.funcs))}
	for name, fn := range r.funcs {
		clone.funcs[name] = fn
	}
	return clone
}

func (r *FunctionRegistry) lookup(name string) Function {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.funcs[strings.ToLower(name)]
}

// WithFunctionRegistry exposes registry functions to selector expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry != nil {
			cfg.functions = registry.Clone()
		}
	}
}

// WithCustomFunction registers fn under name for selector expressions.
// Invalid or duplicate names are ignored.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// selectorFunctions returns the configured registry plus the store helpers
// that are not shadowed by a user function:
//
//	rehydrated(key) reports whether key was restored from storage.
func (s *Store) selectorFunctions() *FunctionRegistry {
	registry := s.cfg.functions.Clone()
	if registry == nil {
		registry = NewFunctionRegistry()
	}
	if !registry.Has("rehydrated") {
		_ = registry.Register("rehydrated", func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("store: rehydrated expects 1 argument, got %d", len(args))
			}
			key, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("store: rehydrated expects a string key, got %T", args[0])
			}
			slice, found := s.Rehydration().Lookup(key)
			return found && slice.Source == SourcePersisted, nil
		})
	}
	return registry
}
