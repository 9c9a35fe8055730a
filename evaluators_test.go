package chatstate

import (
	"errors"
	"testing"
	"time"
)

func TestExprEvaluatorEnvironment(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	evaluator := NewExprEvaluator()

	result, err := evaluator.Evaluate(RuleContext{
		Snapshot: map[string]any{"value": 3.0},
		Now:      &now,
		Args:     map[string]any{"limit": 5},
		Key:      KeyCombinedTokens,
	}, `value < args.limit && key == "combined_tokens" && now.Year() == 2024`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result != true {
		t.Fatalf("expected true, got %v", result)
	}
}

func TestExprEvaluatorRuntimeError(t *testing.T) {
	_, err := NewExprEvaluator().Evaluate(RuleContext{Key: KeyModel}, `value.tokenLimit > 0`)
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Key != KeyModel || evalErr.Engine != "expr" {
		t.Fatalf("expected EvaluationError for %s, got %v", KeyModel, err)
	}
}

func TestEvaluatorsRejectEmptyExpression(t *testing.T) {
	for name, evaluator := range map[string]Evaluator{
		"expr": NewExprEvaluator(),
		"cel":  NewCELEvaluator(),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := evaluator.Compile(""); err == nil {
				t.Fatalf("expected compile error for empty expression")
			}
			if _, err := evaluator.Evaluate(RuleContext{}, ""); err == nil {
				t.Fatalf("expected evaluate error for empty expression")
			}
		})
	}
}

func TestExprEvaluatorUsesProgramCache(t *testing.T) {
	cache := NewProgramCache()
	evaluator := NewExprEvaluator(ExprWithProgramCache(cache))

	if _, err := evaluator.Compile("value >= 0"); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, ok := cache.Get("value >= 0"); !ok {
		t.Fatalf("expected compiled program to be cached")
	}
}

func TestCELEvaluatorCachesPerVariableSet(t *testing.T) {
	cache := NewProgramCache()
	evaluator := NewCELEvaluator(CELWithProgramCache(cache))

	rule, err := evaluator.Compile("value >= 0.0")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, ok := cache.Get(celCacheKey("value >= 0.0", map[string]any{"value": nil})); !ok {
		t.Fatalf("expected program cached under its variable set")
	}
	result, err := rule.Evaluate(RuleContext{Snapshot: map[string]any{"value": 4.0}})
	if err != nil || result != true {
		t.Fatalf("expected true, got %v (%v)", result, err)
	}
}

func TestCELEvaluatorCallFunction(t *testing.T) {
	functions := NewFunctionRegistry()
	if err := functions.Register("limit", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, errors.New("limit expects one argument")
		}
		return 8192.0, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	evaluator := NewCELEvaluator(CELWithFunctionRegistry(functions))

	result, err := evaluator.Evaluate(RuleContext{
		Snapshot: map[string]any{"value": map[string]any{"code": "gpt-4", "tokenLimit": 8192.0}},
	}, `value.tokenLimit <= call("limit", value.code)`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result != true {
		t.Fatalf("expected true, got %v", result)
	}

	if _, err := evaluator.Evaluate(RuleContext{Snapshot: map[string]any{"value": 1.0}}, `call("missing", value)`); err == nil {
		t.Fatalf("expected error for unregistered function")
	}
}

func TestCELEvaluatorCompileError(t *testing.T) {
	_, err := NewCELEvaluator().Compile("value >=")
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != "cel" {
		t.Fatalf("expected cel EvaluationError, got %v", err)
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	double := func(args ...any) (any, error) {
		return args[0].(int) * 2, nil
	}
	if err := registry.Register("Double", double); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("double", double); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := registry.Register("", double); err == nil {
		t.Fatalf("expected empty name to fail")
	}
	if err := registry.Register("nil", nil); err == nil {
		t.Fatalf("expected nil function to fail")
	}

	got, err := registry.Call("DOUBLE", 21)
	if err != nil || got != 42 {
		t.Fatalf("expected 42, got %v (%v)", got, err)
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected error for missing function")
	}

	clone := registry.Clone()
	_ = clone.Register("triple", double)
	if names := registry.Names(); len(names) != 1 || names[0] != "double" {
		t.Fatalf("clone must not affect the original, got %v", names)
	}
	if names := clone.Names(); len(names) != 2 {
		t.Fatalf("expected clone to hold two functions, got %v", names)
	}

	var nilRegistry *FunctionRegistry
	if nilRegistry.Names() != nil || nilRegistry.Clone() != nil {
		t.Fatalf("nil registry helpers must be safe")
	}
}

func TestJSEvaluatorAvailability(t *testing.T) {
	evaluator := NewJSEvaluator()
	if jsEvaluatorAvailable() != (evaluator != nil) {
		t.Fatalf("availability must match constructor result")
	}
}

func TestBuiltinFunctions(t *testing.T) {
	functions := BuiltinFunctions()

	limit, err := functions.Call("model_limit", "gpt-4-32k")
	if err != nil || limit != 32768 {
		t.Fatalf("expected 32768, got %v (%v)", limit, err)
	}
	if unknown, _ := functions.Call("model_limit", "nope"); unknown != 0 {
		t.Fatalf("expected 0 for unknown model, got %v", unknown)
	}

	cost, err := functions.Call("model_cost", "gpt-4", 1000.0, 500)
	if err != nil || cost != 0.06 {
		t.Fatalf("expected 0.06, got %v (%v)", cost, err)
	}
	if _, err := functions.Call("model_cost", "gpt-4", "many", 1); err == nil {
		t.Fatalf("expected error for non-numeric tokens")
	}
	if _, err := functions.Call("model_cost", "gpt-4"); err == nil {
		t.Fatalf("expected arity error")
	}
}
