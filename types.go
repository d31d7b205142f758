package store

import (
	"errors"
	"time"
)

// State is the application state: top-level slice names mapped to opaque
// values. Reducers treat it as immutable and return a new map when anything
// changes.
type State map[string]any

// Action describes a requested state transition.
type Action interface {
	ActionType() string
}

// Plain is a general purpose action carrying a type tag and a payload.
type Plain struct {
	Type    string
	Payload any
}

func (a Plain) ActionType() string {
	return a.Type
}

// NewAction builds a Plain action.
func NewAction(actionType string, payload any) Plain {
	return Plain{Type: actionType, Payload: payload}
}

const (
	InitActionType      = "@@statestore/INIT"
	ReplaceActionType   = "@@statestore/REPLACE"
	RehydrateActionType = "@@statestore/REHYDRATE"
	ThunkActionType     = "@@statestore/THUNK"
)

// InitAction is dispatched once through the bare reducer when a store is
// created, so slice reducers can fill in their defaults.
type InitAction struct{}

func (InitAction) ActionType() string { return InitActionType }

// ReplaceAction is dispatched after ReplaceReducer swaps the reducer.
type ReplaceAction struct{}

func (ReplaceAction) ActionType() string { return ReplaceActionType }

// RehydrateAction replaces one persisted slice with a value loaded from
// durable storage. Present is false when the record was removed or null, in
// which case the slice is deleted from state.
type RehydrateAction struct {
	Key     string
	Value   any
	Present bool
}

func (RehydrateAction) ActionType() string { return RehydrateActionType }

// Reducer computes the next state from the current state and an action. It
// must not call Dispatch and must return the state unchanged for actions it
// does not handle.
type Reducer func(state State, action Action) (State, error)

// Listener is notified after every successful transition.
type Listener func()

// DispatchFunc sends an action through (part of) the middleware chain.
type DispatchFunc func(action Action) (any, error)

// API is the capability handed to middleware and thunks.
type API interface {
	GetState() State
	Dispatch(action Action) (any, error)
}

// Middleware wraps dispatch. Each layer decides whether to forward to next.
type Middleware func(api API) func(next DispatchFunc) DispatchFunc

// SelectContext carries inputs needed when evaluating a selector expression.
type SelectContext struct {
	State    State
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx SelectContext) withDefaults() SelectContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx SelectContext) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

func (ctx SelectContext) stateMap() map[string]any {
	if ctx.State == nil {
		return map[string]any{}
	}
	return map[string]any(ctx.State)
}

// Evaluator executes selector expressions against a store state.
type Evaluator interface {
	Evaluate(ctx SelectContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx SelectContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

var (
	// ErrNilAction is returned when Dispatch receives a nil action.
	ErrNilAction = errors.New("store: action must not be nil")
	// ErrNotPersistent is returned by operations that need a store built with
	// Configure.
	ErrNotPersistent = errors.New("store: store has no persistence configured")
	// ErrNoEvaluator is returned when no selector evaluator can be built.
	ErrNoEvaluator = errors.New("store: evaluator not configured")
)
