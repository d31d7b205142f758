package store

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Select evaluates expr against the current state with the configured
// evaluator. Every top-level slice is bound as a variable, and the whole
// state is available as `state`.
func (s *Store) Select(expr string) (any, error) {
	return s.SelectWith(SelectContext{}, expr)
}

// SelectWith evaluates expr using ctx, falling back to the current state when
// ctx.State is nil.
func (s *Store) SelectWith(ctx SelectContext, expr string) (any, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, ErrEmptyExpression
	}
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	var revision uint64
	if ctx.State == nil {
		ctx.State, revision = s.stateAndRevision()
	}
	ctx = ctx.withDefaults()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	evalErr = selectError(engine, expr, revision, evalErr)
	s.logEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Duration: time.Since(start),
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

// Selector is a compiled expression whose result is recomputed only when the
// store's revision changes.
type Selector struct {
	store  *Store
	expr   string
	engine string
	rule   CompiledRule

	mu       sync.Mutex
	cached   bool
	revision uint64
	value    any
	err      error
}

// Selector compiles expr once for repeated evaluation. Expressions that read
// `now` are still cached per revision.
func (s *Store) Selector(expr string) (*Selector, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, ErrEmptyExpression
	}
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	engine := evaluatorEngineName(evaluator)
	rule, err := evaluator.Compile(expr)
	if err != nil {
		return nil, selectError(engine, expr, 0, err)
	}
	return &Selector{store: s, expr: expr, engine: engine, rule: rule}, nil
}

// Expr returns the source expression.
func (sel *Selector) Expr() string {
	return sel.expr
}

// Value returns the selector result for the current state.
func (sel *Selector) Value() (any, error) {
	state, revision := sel.store.stateAndRevision()

	sel.mu.Lock()
	defer sel.mu.Unlock()
	if sel.cached && sel.revision == revision {
		return sel.value, sel.err
	}
	start := time.Now()
	value, err := sel.rule.Evaluate(SelectContext{State: state}.withDefaults())
	err = selectError(sel.engine, sel.expr, revision, err)
	sel.store.logEvaluation(EvaluatorLogEvent{
		Engine:   sel.engine,
		Expr:     sel.expr,
		Duration: time.Since(start),
		Err:      err,
	})
	sel.cached = true
	sel.revision = revision
	sel.value = value
	sel.err = err
	return value, err
}

func (s *Store) stateAndRevision() (State, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.revision
}

func (s *Store) resolveEvaluator() (Evaluator, error) {
	s.evaluatorMu.Lock()
	defer s.evaluatorMu.Unlock()
	if s.evaluator != nil {
		return s.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if s.cfg.programCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(s.cfg.programCache))
	}
	exprOpts = append(exprOpts, ExprWithFunctionRegistry(s.selectorFunctions()))
	evaluator := NewExprEvaluator(exprOpts...)
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	s.evaluator = evaluator
	return evaluator, nil
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*store.exprEvaluator":
		return "expr"
	case "*store.celEvaluator":
		return "cel"
	case "*store.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
