package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ssadedin/go-statestore/pkg/activity"
	"github.com/ssadedin/go-statestore/pkg/persist"
	"github.com/ssadedin/go-statestore/pkg/storage"
)

const (
	stageLoad   = "load"
	stageDecode = "decode"
	stageEncode = "encode"
	stageSave   = "save"
)

var (
	// ErrKeySetRequired is returned by Configure without WithKeySet.
	ErrKeySetRequired = errors.New("store: key set is required")
	// ErrBackendRequired is returned by Configure without WithBackend.
	ErrBackendRequired = errors.New("store: storage backend is required")
)

// Configure builds a store whose persisted slices are restored from durable
// storage before construction and written back after every dispatch.
//
// Missing, unreadable or outdated records never fail construction: the
// affected slice keeps the caller's initial value (or stays absent) and the
// failure is logged and listed in Rehydration. The middleware chain is thunk
// support, then any WithMiddleware entries, then persistence.
func Configure(reducer Reducer, initial State, opts ...Option) (*Store, error) {
	cfg := applyOptions(opts)
	if cfg.keys == nil || cfg.keys.Len() == 0 {
		return nil, ErrKeySetRequired
	}
	if cfg.backend == nil {
		return nil, ErrBackendRequired
	}
	if reducer == nil {
		reducer = identityReducer
	}

	p := &persister{
		keys:    cfg.keys,
		backend: cfg.backend,
		origin:  cfg.origin,
		ctx:     cfg.ctx,
		emitter: activity.NewEmitter(cfg.hooks, cfg.activity),
		cfg:     cfg,
	}

	s := newStore(p.wrapReducer(reducer), nil, cfg)
	p.store = s
	p.logger = s.logger.With(zap.String("origin", cfg.origin))
	s.persister = p

	state, report := p.rehydrate(initial)
	s.state = state
	s.rehydration = report

	if err := s.init(); err != nil {
		return nil, err
	}

	middleware := make([]Middleware, 0, len(cfg.middleware)+2)
	middleware = append(middleware, ThunkMiddleware)
	middleware = append(middleware, cfg.middleware...)
	middleware = append(middleware, p.middleware)
	s.applyMiddleware(middleware)
	return s, nil
}

// Rehydration reports where each persisted slice came from at construction.
// It is empty for stores built with New.
func (s *Store) Rehydration() Rehydration {
	return s.rehydration.clone()
}

// Origin returns the storage origin that scopes persisted records.
func (s *Store) Origin() string {
	return s.cfg.origin
}

// Flush writes every persisted slice of the current state. Failures are
// reported the same way as after a dispatch and also returned joined.
func (s *Store) Flush() error {
	if s.persister == nil {
		return ErrNotPersistent
	}
	return s.persister.persist("")
}

type persister struct {
	keys    *persist.KeySet
	backend storage.Backend
	origin  string
	ctx     context.Context
	emitter *activity.Emitter
	logger  *zap.Logger
	cfg     config
	store   *Store

	mu sync.Mutex
}

func (p *persister) ref(key string) storage.Ref {
	return storage.Ref{Origin: p.origin, Key: key}
}

// rehydrate builds the preloaded state: a shallow copy of initial with every
// readable persisted slice reconciled over it.
func (p *persister) rehydrate(initial State) (State, Rehydration) {
	state := make(State, len(initial)+p.keys.Len())
	for k, v := range initial {
		state[k] = v
	}
	report := Rehydration{Origin: p.origin}

	for _, key := range p.keys.Keys() {
		name := key.Name()
		initialValue, hasInitial := initial[name]
		entry := SliceProvenance{Key: name, Source: SourceAbsent}
		if hasInitial {
			entry.Source = SourceInitial
		}

		value, ok, stage, err := p.load(key)
		switch {
		case err != nil:
			entry.setErr(stage, err)
			p.warn("rehydrate slice failed", name, stage, "", err)
			p.emit(activity.BuildRehydrateFailedEvent, name, stage, "", key.Version(), err)
		case ok:
			state[name] = p.cfg.reconciler(name, value, initialValue, hasInitial)
			entry.Source = SourcePersisted
			entry.Version = key.Version()
			p.logger.Debug("rehydrated slice", zap.String("key", name))
			p.emit(activity.BuildRehydratedEvent, name, "", "", key.Version(), nil)
		}
		report.Slices = append(report.Slices, entry)
	}
	return state, report
}

// load reads and decodes one record. ok is false for missing or null records.
func (p *persister) load(key persist.Key) (value any, ok bool, stage string, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, ok, err = nil, false, fmt.Errorf("store: panic: %v", r)
		}
	}()
	stage = stageLoad
	raw, found, err := p.backend.Load(p.ctx, p.ref(key.Name()))
	if err != nil {
		return nil, false, stageLoad, err
	}
	if !found {
		return nil, false, "", nil
	}
	value, ok, err = key.Decode(raw)
	if err != nil {
		return nil, false, stageDecode, err
	}
	return value, ok, "", nil
}

// middleware persists every key after the rest of the chain has handled an
// action. Failed dispatches are not persisted, and neither are
// RehydrateActions: they restore what storage already holds, and writing back
// would clobber newer records from other writers.
func (p *persister) middleware(api API) func(next DispatchFunc) DispatchFunc {
	return func(next DispatchFunc) DispatchFunc {
		return func(action Action) (any, error) {
			result, err := next(action)
			if err != nil {
				return result, err
			}
			if _, ok := action.(RehydrateAction); ok {
				return result, nil
			}
			_ = p.persist(action.ActionType())
			return result, nil
		}
	}
}

// persist writes each key of the current state in key-set order. One key
// failing does not stop the others.
// Activity hooks run after p.mu is released, so a hook may dispatch.
func (p *persister) persist(actionType string) error {
	failures := p.write(actionType)
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, fmt.Errorf("store: persist %q: %w", f.key.Name(), f.err))
		p.emit(activity.BuildPersistFailedEvent, f.key.Name(), f.stage, actionType, f.key.Version(), f.err)
	}
	return errors.Join(errs...)
}

type saveFailure struct {
	key   persist.Key
	stage string
	err   error
}

func (p *persister) write(actionType string) []saveFailure {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.store.GetState()
	var failures []saveFailure
	for _, key := range p.keys.Keys() {
		name := key.Name()
		if stage, err := p.save(key, state[name]); err != nil {
			p.warn("persist slice failed", name, stage, actionType, err)
			failures = append(failures, saveFailure{key: key, stage: stage, err: err})
		}
	}
	return failures
}

func (p *persister) save(key persist.Key, value any) (stage string, err error) {
	stage = stageEncode
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store: panic: %v", r)
		}
	}()
	raw, err := key.Encode(value)
	if err != nil {
		return stage, err
	}
	stage = stageSave
	return stage, p.backend.Save(p.ctx, p.ref(key.Name()), raw)
}

// wrapReducer applies RehydrateAction to persisted slices before handing the
// action to reducer.
func (p *persister) wrapReducer(reducer Reducer) Reducer {
	return func(state State, action Action) (State, error) {
		if rehydrate, ok := action.(RehydrateAction); ok && p.keys.Contains(rehydrate.Key) {
			next := make(State, len(state)+1)
			for k, v := range state {
				next[k] = v
			}
			if rehydrate.Present {
				next[rehydrate.Key] = rehydrate.Value
			} else {
				delete(next, rehydrate.Key)
			}
			state = next
		}
		return reducer(state, action)
	}
}

func (p *persister) warn(msg, key, stage, actionType string, err error) {
	fields := []zap.Field{zap.String("key", key), zap.Error(err)}
	if stage != "" {
		fields = append(fields, zap.String("stage", stage))
	}
	if actionType != "" {
		fields = append(fields, zap.String("action", actionType))
	}
	p.logger.Warn(msg, fields...)
}

func (p *persister) emit(build func(activity.SliceEventInput) activity.Event, key, stage, actionType string, version int, err error) {
	if !p.emitter.Enabled() {
		return
	}
	event := build(activity.SliceEventInput{
		StoreID:    p.store.id,
		Origin:     p.origin,
		Key:        key,
		ActionType: actionType,
		Stage:      stage,
		Version:    version,
		Err:        err,
		ActorID:    p.cfg.actorID,
		TenantID:   p.cfg.tenantID,
		OccurredAt: time.Now().UTC(),
	})
	if emitErr := p.emitter.Emit(p.ctx, event); emitErr != nil {
		p.logger.Debug("activity hook failed", zap.String("verb", event.Verb), zap.Error(emitErr))
	}
}
