package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyExpression is returned when a selector expression is blank.
var ErrEmptyExpression = errors.New("store: expression must not be empty")

// EvaluationError reports a selector that failed to compile or evaluate.
// Revision is the store revision the expression ran against, zero when the
// failure happened at compile time.
type EvaluationError struct {
	Engine   string
	Expr     string
	Revision uint64
	Err      error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "store: %s evaluator", e.Engine)
	if e.Expr == "" {
		b.WriteString(" expr=<empty>")
	} else {
		fmt.Fprintf(&b, " expr=%q", e.Expr)
	}
	if e.Revision > 0 {
		fmt.Fprintf(&b, " rev=%d", e.Revision)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// engineError tags an evaluator failure that is not tied to one expression.
func engineError(engine string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrEmptyExpression), strings.HasPrefix(err.Error(), "store:"):
		return err
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	return fmt.Errorf("store: %s evaluator: %w", engine, err)
}

// selectError attaches engine, expression and revision to err, filling only
// the fields an inner EvaluationError left blank.
func selectError(engine, expr string, revision uint64, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Revision: revision, Err: err}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	if evalErr.Revision == 0 {
		evalErr.Revision = revision
	}
	return evalErr
}
