package chatstate

import (
	"errors"
	"strings"
	"testing"
)

func TestCompileErrorCarriesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := compileError("expr", "value >= 0", KeyCombinedTokens, base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != "expr" || evalErr.Expr != "value >= 0" || evalErr.Key != KeyCombinedTokens || evalErr.Phase != PhaseCompile {
		t.Fatalf("unexpected metadata: %+v", evalErr)
	}
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
	want := `chatstate: expr compile failed for combined_tokens on "value >= 0": boom`
	if err.Error() != want {
		t.Fatalf("unexpected message:\nwant %q\n got %q", want, err.Error())
	}
}

func TestAnnotateFillsOnlyBlankFields(t *testing.T) {
	base := errors.New("type mismatch")
	existing := &EvaluationError{Engine: "expr", Phase: PhaseRun, Err: base}

	err := compileError("cel", "rule", KeyModel, existing)
	if err != existing {
		t.Fatalf("expected the existing error to be returned")
	}
	if existing.Engine != "expr" || existing.Phase != PhaseRun {
		t.Fatalf("fields set closer to the failure must win, got %+v", existing)
	}
	if existing.Expr != "rule" || existing.Key != KeyModel {
		t.Fatalf("blank fields should be filled, got %+v", existing)
	}
}

func TestEmptyExpressionError(t *testing.T) {
	err := emptyExpression("cel")
	if !errors.Is(err, ErrEmptyExpression) {
		t.Fatalf("expected ErrEmptyExpression, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown on <empty>") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if runError("expr", "x", "", nil) != nil {
		t.Fatalf("nil errors stay nil")
	}
}
