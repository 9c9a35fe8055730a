package chatstate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/goliatone/go-chatstate/layering"
	"github.com/goliatone/go-chatstate/pkg/persisted"
)

// EngineCustom names evaluators not built by this package. They receive no
// default rules since their syntax is unknown.
const EngineCustom = "custom"

// CEL compares numbers strictly by type and JSON numbers decode as doubles,
// so its literals carry a decimal point.
var defaultRuleSets = map[string]map[string][]string{
	"expr": {
		KeyCombinedTokens: {"value >= 0"},
		KeyModel:          {"value.tokenLimit > 0"},
		KeyConversations:  {"len(value) > 0", "all(value, {.conversationTokens >= 0})"},
	},
	"cel": {
		KeyCombinedTokens: {"value >= 0.0"},
		KeyModel:          {"value.tokenLimit > 0.0"},
		KeyConversations:  {"size(value) > 0", "value.all(c, c.conversationTokens >= 0.0)"},
	},
	"js": {
		KeyCombinedTokens: {"value >= 0"},
		KeyModel:          {"value.tokenLimit > 0"},
		KeyConversations:  {"value.length > 0", "value.every(c => c.conversationTokens >= 0)"},
	},
}

// DefaultRules returns a copy of the built-in rules for engine, keyed by
// storage key. Unknown engines have none.
func DefaultRules(engine string) map[string][]string {
	return layering.Merge([]map[string][]string{defaultRuleSets[engine]})
}

// EngineName reports which rule engine evaluator runs.
func EngineName(evaluator Evaluator) string {
	if named, ok := evaluator.(interface{ engine() string }); ok {
		return named.engine()
	}
	return EngineCustom
}

// RuleGuard compiles exprs with evaluator and returns a guard that accepts a
// value only when every rule evaluates to true. The candidate is exposed to
// the rules as "value" in its JSON shape.
func RuleGuard[T any](evaluator Evaluator, key string, exprs ...string) (persisted.Guard[T], error) {
	return ruleGuard[T](evaluator, key, exprs, nil)
}

func ruleGuard[T any](evaluator Evaluator, key string, exprs []string, logger EvaluatorLogger) (persisted.Guard[T], error) {
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	if logger == nil {
		logger = noopEvaluatorLogger{}
	}
	engine := EngineName(evaluator)

	rules := make([]CompiledRule, 0, len(exprs))
	for _, expr := range exprs {
		rule, err := evaluator.Compile(expr)
		if err != nil {
			return nil, compileError(engine, expr, key, err)
		}
		rules = append(rules, rule)
	}

	return func(value T) error {
		snapshot, err := ruleSnapshot(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrRuleViolation, key, err)
		}
		for i, rule := range rules {
			start := time.Now()
			result, err := rule.Evaluate(RuleContext{Snapshot: snapshot, Key: key})
			if err != nil {
				err = fmt.Errorf("%w: %w", ErrRuleViolation, runError(engine, exprs[i], key, err))
			} else if ok, _ := result.(bool); !ok {
				err = fmt.Errorf("%w: %s: %q evaluated to %v", ErrRuleViolation, key, exprs[i], result)
			}
			logger.LogEvaluation(EvaluatorLogEvent{
				Engine:   engine,
				Expr:     exprs[i],
				Key:      key,
				Duration: time.Since(start),
				Err:      err,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, nil
}

// ruleSnapshot converts value to its JSON shape so rules address fields by
// their stored names.
func ruleSnapshot(value any) (map[string]any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return map[string]any{"value": generic}, nil
}

// effectiveRules layers user rules over the engine defaults.
func (cfg registryConfig) effectiveRules(engine string) map[string][]string {
	if !cfg.defaultRules {
		return layering.Merge([]map[string][]string{cfg.rules})
	}
	return layering.Merge(
		[]map[string][]string{cfg.rules, DefaultRules(engine)},
		layering.WithSliceMode(layering.SliceAppend),
	)
}
