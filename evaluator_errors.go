package chatstate

import (
	"errors"
	"fmt"
)

// Phase tells whether a rule failed while compiling or while running.
type Phase string

const (
	PhaseCompile Phase = "compile"
	PhaseRun     Phase = "run"
)

var (
	ErrEmptyExpression  = errors.New("chatstate: expression must not be empty")
	errMissingEvaluator = errors.New("compiled rule missing evaluator")
)

// EvaluationError ties a rule failure to its engine, expression and the
// storage key it guards.
type EvaluationError struct {
	Engine string
	Expr   string
	Key    string
	Phase  Phase
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	key := e.Key
	if key == "" {
		key = "unknown"
	}
	expr := "<empty>"
	if e.Expr != "" {
		expr = fmt.Sprintf("%q", e.Expr)
	}
	return fmt.Sprintf("chatstate: %s %s failed for %s on %s: %v", e.Engine, e.Phase, key, expr, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func compileError(engine, expr, key string, err error) error {
	return annotate(PhaseCompile, engine, expr, key, err)
}

func runError(engine, expr, key string, err error) error {
	return annotate(PhaseRun, engine, expr, key, err)
}

func emptyExpression(engine string) error {
	return &EvaluationError{Engine: engine, Phase: PhaseCompile, Err: ErrEmptyExpression}
}

// annotate wraps err, or fills the blank fields of an EvaluationError it
// already carries. Fields set closer to the failure are kept.
func annotate(phase Phase, engine, expr, key string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Key: key, Phase: phase, Err: err}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	if evalErr.Key == "" {
		evalErr.Key = key
	}
	if evalErr.Phase == "" {
		evalErr.Phase = phase
	}
	return err
}
