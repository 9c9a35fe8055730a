package chatstate

import (
	"context"
	"io"

	"github.com/goliatone/go-chatstate/pkg/activity"
	"github.com/goliatone/go-chatstate/pkg/storage"
)

// Option customises a Registry.
type Option func(*registryConfig)

type registryConfig struct {
	ctx             context.Context
	adapter         storage.Adapter
	closer          io.Closer
	origin          string
	hooks           activity.Hooks
	channel         string
	actorID         string
	engine          string
	evaluator       Evaluator
	evaluatorLogger EvaluatorLogger
	functions       *FunctionRegistry
	rules           map[string][]string
	defaultRules    bool
	defaultModel    *GptModel
}

func newRegistryConfig(opts []Option) registryConfig {
	cfg := registryConfig{
		ctx:          context.Background(),
		channel:      activity.DefaultChannel,
		defaultRules: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.evaluatorLogger == nil {
		cfg.evaluatorLogger = noopEvaluatorLogger{}
	}
	return cfg
}

// WithStorage selects the backing adapter. Without it the registry keeps
// state in a MemoryStore for the lifetime of the process.
func WithStorage(adapter storage.Adapter) Option {
	return func(cfg *registryConfig) {
		cfg.adapter = adapter
	}
}

// WithOrigin namespaces every key under origin, mirroring per-origin browser
// storage.
func WithOrigin(origin string) Option {
	return func(cfg *registryConfig) {
		cfg.origin = origin
	}
}

// WithActivityHooks registers hooks notified of hydration and persistence.
func WithActivityHooks(hooks ...activity.ActivityHook) Option {
	return func(cfg *registryConfig) {
		for _, hook := range hooks {
			if hook != nil {
				cfg.hooks = append(cfg.hooks, hook)
			}
		}
	}
}

// WithActivityChannel sets the channel stamped on activity events.
func WithActivityChannel(channel string) Option {
	return func(cfg *registryConfig) {
		if channel != "" {
			cfg.channel = channel
		}
	}
}

// WithActorID fixes the actor recorded on activity events. It defaults to a
// random session id.
func WithActorID(actorID string) Option {
	return func(cfg *registryConfig) {
		cfg.actorID = actorID
	}
}

// WithEngine selects a built-in rule engine by name: "expr" (default), "cel"
// or "js". The js engine needs the js_eval build tag.
func WithEngine(name string) Option {
	return func(cfg *registryConfig) {
		cfg.engine = name
	}
}

// WithEvaluator supplies a ready-made evaluator and overrides WithEngine.
// Built-in functions are not added to it.
func WithEvaluator(evaluator Evaluator) Option {
	return func(cfg *registryConfig) {
		cfg.evaluator = evaluator
	}
}

// WithEvaluatorLogger receives one event per rule evaluation.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *registryConfig) {
		cfg.evaluatorLogger = logger
	}
}

// WithFunctionRegistry adds custom functions next to the built-in ones for
// engines selected with WithEngine.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *registryConfig) {
		cfg.functions = registry
	}
}

// WithRules adds validation rules for key. Rules are appended to the
// built-in set unless WithoutDefaultRules is also given.
func WithRules(key string, exprs ...string) Option {
	return func(cfg *registryConfig) {
		if key == "" || len(exprs) == 0 {
			return
		}
		if cfg.rules == nil {
			cfg.rules = map[string][]string{}
		}
		cfg.rules[key] = append(cfg.rules[key], exprs...)
	}
}

// WithoutDefaultRules drops the built-in rules. Entity validation still applies.
func WithoutDefaultRules() Option {
	return func(cfg *registryConfig) {
		cfg.defaultRules = false
	}
}

// WithDefaultModel replaces the model used when storage holds none.
func WithDefaultModel(model GptModel) Option {
	return func(cfg *registryConfig) {
		cfg.defaultModel = &model
	}
}

// WithContext sets the context passed to activity hooks.
func WithContext(ctx context.Context) Option {
	return func(cfg *registryConfig) {
		if ctx != nil {
			cfg.ctx = ctx
		}
	}
}

// withCloser hands ownership of a backend opened by Open to the registry.
func withCloser(closer io.Closer) Option {
	return func(cfg *registryConfig) {
		cfg.closer = closer
	}
}
