package store

import (
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ssadedin/go-statestore/layering"
)

// Store holds application state, routes actions through middleware to the
// reducer and notifies subscribers after every transition.
type Store struct {
	id     string
	cfg    config
	logger *zap.Logger

	mu       sync.RWMutex
	state    State
	reducer  Reducer
	revision uint64

	dispatchMu sync.Mutex
	dispatch   DispatchFunc

	listenersMu  sync.Mutex
	listeners    map[uint64]Listener
	order        []uint64
	nextListener uint64

	persister   *persister
	rehydration Rehydration

	evaluatorMu sync.Mutex
	evaluator   Evaluator
}

// New builds an in-memory store. InitAction is reduced before any middleware
// is attached so slice reducers can populate defaults.
func New(reducer Reducer, initial State, opts ...Option) (*Store, error) {
	cfg := applyOptions(opts)
	s := newStore(reducer, initial, cfg)
	if err := s.init(); err != nil {
		return nil, err
	}
	s.applyMiddleware(cfg.middleware)
	return s, nil
}

func newStore(reducer Reducer, initial State, cfg config) *Store {
	if reducer == nil {
		reducer = identityReducer
	}
	id := cfg.id
	if id == "" {
		id = uuid.NewString()
	}
	s := &Store{
		id:        id,
		cfg:       cfg,
		logger:    cfg.logger.With(zap.String("store_id", id)),
		state:     initial,
		reducer:   reducer,
		listeners: map[uint64]Listener{},
		evaluator: cfg.evaluator,
	}
	s.dispatch = s.baseDispatch
	return s
}

func (s *Store) init() error {
	_, err := s.baseDispatch(InitAction{})
	return err
}

func (s *Store) applyMiddleware(middleware []Middleware) {
	if len(middleware) == 0 {
		return
	}
	api := middlewareAPI{store: s}
	dispatch := s.baseDispatch
	for i := len(middleware) - 1; i >= 0; i-- {
		dispatch = middleware[i](api)(dispatch)
	}
	s.dispatch = dispatch
}

type middlewareAPI struct {
	store *Store
}

func (a middlewareAPI) GetState() State {
	return a.store.GetState()
}

func (a middlewareAPI) Dispatch(action Action) (any, error) {
	return a.store.Dispatch(action)
}

func identityReducer(state State, _ Action) (State, error) {
	return state, nil
}

// ID returns the identifier reported in logs and activity events.
func (s *Store) ID() string {
	return s.id
}

// GetState returns the current state. Callers must not mutate it; use
// Snapshot for a detached copy.
func (s *Store) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	return layering.Clone(s.GetState())
}

// Revision increases every time a dispatch produces a different state value.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Dispatch sends action through the middleware chain. For plain actions the
// result is the action itself.
func (s *Store) Dispatch(action Action) (any, error) {
	if action == nil {
		return nil, ErrNilAction
	}
	s.mu.RLock()
	dispatch := s.dispatch
	s.mu.RUnlock()
	return dispatch(action)
}

func (s *Store) baseDispatch(action Action) (any, error) {
	if action == nil {
		return nil, ErrNilAction
	}
	listeners := s.snapshotListeners()
	if err := s.reduce(action); err != nil {
		return nil, err
	}
	for _, listener := range listeners {
		listener()
	}
	return action, nil
}

// reduce runs the reducer and swaps in the next state. dispatchMu is released
// even when the reducer panics.
func (s *Store) reduce(action Action) error {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.RLock()
	prev := s.state
	reducer := s.reducer
	s.mu.RUnlock()

	next, err := reducer(prev, action)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.state = next
	if !sameState(prev, next) {
		s.revision++
	}
	s.mu.Unlock()
	return nil
}

// Subscribe registers listener and returns a function that removes it.
// Removal is idempotent and does not affect a notification already underway.
func (s *Store) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = listener
	s.order = append(s.order, id)
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			delete(s.listeners, id)
			for i, candidate := range s.order {
				if candidate == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Store) snapshotListeners() []Listener {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	out := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		if listener, ok := s.listeners[id]; ok {
			out = append(out, listener)
		}
	}
	return out
}

// ReplaceReducer swaps the reducer and dispatches ReplaceAction through it.
func (s *Store) ReplaceReducer(reducer Reducer) error {
	if reducer == nil {
		reducer = identityReducer
	}
	if s.persister != nil {
		reducer = s.persister.wrapReducer(reducer)
	}
	s.dispatchMu.Lock()
	s.mu.Lock()
	s.reducer = reducer
	s.mu.Unlock()
	s.dispatchMu.Unlock()
	_, err := s.baseDispatch(ReplaceAction{})
	return err
}

// sameState reports whether two states are the same map value.
func sameState(a, b State) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).UnsafePointer() == reflect.ValueOf(b).UnsafePointer()
}
