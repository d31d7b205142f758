package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/ssadedin/go-statestore/pkg/activity"
	"github.com/ssadedin/go-statestore/pkg/persist"
	"github.com/ssadedin/go-statestore/pkg/storage"
)

// Option configures a Store.
type Option func(*config)

type config struct {
	id         string
	middleware []Middleware
	logger     *zap.Logger

	ctx        context.Context
	keys       *persist.KeySet
	backend    storage.Backend
	origin     string
	reconciler Reconciler

	hooks    activity.Hooks
	activity activity.Config
	actorID  string
	tenantID string

	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	evaluatorLogger EvaluatorLogger
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.ctx == nil {
		cfg.ctx = context.Background()
	}
	if cfg.reconciler == nil {
		cfg.reconciler = ReplaceSlices
	}
	cfg.origin = storage.NormalizeOrigin(cfg.origin)
	return cfg
}

// WithStoreID overrides the generated store identifier reported in logs and
// activity events.
func WithStoreID(id string) Option {
	return func(cfg *config) {
		cfg.id = id
	}
}

// WithMiddleware appends middleware to the dispatch chain, outermost first.
func WithMiddleware(middleware ...Middleware) Option {
	return func(cfg *config) {
		for _, mw := range middleware {
			if mw != nil {
				cfg.middleware = append(cfg.middleware, mw)
			}
		}
	}
}

// WithLogger sets the logger used for diagnostics. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithContext sets the context passed to storage calls and activity hooks.
func WithContext(ctx context.Context) Option {
	return func(cfg *config) {
		cfg.ctx = ctx
	}
}

// WithKeySet sets the persisted slices.
func WithKeySet(keys *persist.KeySet) Option {
	return func(cfg *config) {
		cfg.keys = keys
	}
}

// WithBackend sets the durable storage backend.
func WithBackend(backend storage.Backend) Option {
	return func(cfg *config) {
		cfg.backend = backend
	}
}

// WithOrigin scopes persisted records. Defaults to storage.DefaultOrigin.
func WithOrigin(origin string) Option {
	return func(cfg *config) {
		cfg.origin = origin
	}
}

// WithReconciler chooses how a rehydrated value combines with the caller's
// initial value. Defaults to ReplaceSlices.
func WithReconciler(reconciler Reconciler) Option {
	return func(cfg *config) {
		cfg.reconciler = reconciler
	}
}

// WithActivityHooks enables diagnostics events. Nil hooks are dropped.
func WithActivityHooks(hooks activity.Hooks, channel string) Option {
	normalized := hooks.Clone()
	return func(cfg *config) {
		cfg.hooks = normalized
		cfg.activity.Enabled = len(normalized) > 0
		cfg.activity.Channel = channel
	}
}

// WithActivityVerbs restricts diagnostics events to the given verbs, for
// example activity.VerbPersistFailed only.
func WithActivityVerbs(verbs ...string) Option {
	return func(cfg *config) {
		cfg.activity.Verbs = append([]string(nil), verbs...)
	}
}

// WithActor tags activity events with actor and tenant identifiers.
func WithActor(actorID, tenantID string) Option {
	return func(cfg *config) {
		cfg.actorID = actorID
		cfg.tenantID = tenantID
	}
}

// WithEvaluator configures the selector evaluator. Defaults to expr.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}
