package chatstate

import "time"

// RuleContext carries inputs needed when evaluating a rule expression.
type RuleContext struct {
	// Snapshot holds the variables exposed to the expression; guards bind the
	// candidate cell value under "value".
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Key      string
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

func (ctx RuleContext) keyLabel() string {
	if ctx.Key != "" {
		return ctx.Key
	}
	return "unknown"
}

func (ctx RuleContext) variables() map[string]any {
	if snapshot, ok := ctx.Snapshot.(map[string]any); ok {
		return snapshot
	}
	return map[string]any{}
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}
