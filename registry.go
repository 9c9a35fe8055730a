package chatstate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-chatstate/pkg/activity"
	"github.com/goliatone/go-chatstate/pkg/cell"
	"github.com/goliatone/go-chatstate/pkg/codec"
	"github.com/goliatone/go-chatstate/pkg/persisted"
	"github.com/goliatone/go-chatstate/pkg/storage"
)

// Registry owns every application-wide cell. Persisted cells hydrate from
// storage when the registry is built; the remaining cells live for the
// session only.
type Registry struct {
	APIKey               *persisted.Cell[*string]
	StreamMessages       *persisted.Cell[bool]
	CombinedTokens       *persisted.Cell[int]
	DefaultAssistantRole *persisted.Cell[DefaultAssistantRole]
	Model                *persisted.Cell[GptModel]
	Conversations        *persisted.Cell[ConversationList]

	ChosenConversationID *cell.Cell[int]
	SettingsVisible      *cell.Cell[bool]
	MenuVisible          *cell.Cell[bool]

	sessionID string
	origin    string
	engine    string
	closer    io.Closer

	// mu serialises read-modify-write sequences on the conversation cells.
	mu sync.Mutex
}

type binder struct {
	ctx       context.Context
	adapter   storage.Adapter
	origin    string
	emitter   *activity.Emitter
	evaluator Evaluator
	logger    EvaluatorLogger
	rules     map[string][]string
}

// New builds the registry. It fails only on rule configuration: an unknown
// engine, a clashing function name or a rule that does not compile. Storage
// problems fall back to defaults and are reported through activity hooks.
func New(opts ...Option) (*Registry, error) {
	cfg := newRegistryConfig(opts)

	adapter := cfg.adapter
	if adapter == nil {
		adapter = storage.NewMemoryStore()
	}
	adapter = storage.Scoped(adapter, cfg.origin)

	sessionID := cfg.actorID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	evaluator := cfg.evaluator
	if evaluator == nil {
		functions := BuiltinFunctions()
		if err := functions.Merge(cfg.functions); err != nil {
			return nil, err
		}
		var err error
		if evaluator, err = newEvaluator(cfg.engine, functions); err != nil {
			return nil, err
		}
	}
	engine := EngineName(evaluator)

	b := binder{
		ctx:     cfg.ctx,
		adapter: adapter,
		origin:  cfg.origin,
		emitter: activity.NewEmitter(cfg.hooks, activity.Config{
			Enabled: cfg.hooks.Enabled(),
			Channel: cfg.channel,
			ActorID: sessionID,
		}),
		evaluator: evaluator,
		logger:    cfg.evaluatorLogger,
		rules:     cfg.effectiveRules(engine),
	}

	model := DefaultModel()
	if cfg.defaultModel != nil {
		model = *cfg.defaultModel
	}

	r := &Registry{
		ChosenConversationID: cell.New(0),
		SettingsVisible:      cell.New(false),
		MenuVisible:          cell.New(false),
		sessionID:            sessionID,
		origin:               cfg.origin,
		engine:               engine,
		closer:               cfg.closer,
	}

	var err error
	if r.APIKey, err = bind[*string](b, KeyAPIKey, nil, nil, codec.WithBareStrings()); err != nil {
		return nil, err
	}
	if r.StreamMessages, err = bind[bool](b, KeyStreamMessages, true, nil); err != nil {
		return nil, err
	}
	if r.CombinedTokens, err = bind(b, KeyCombinedTokens, 0, []persisted.Guard[int]{nonNegativeTokens}); err != nil {
		return nil, err
	}
	if r.DefaultAssistantRole, err = bind[DefaultAssistantRole](b, KeyDefaultAssistantRole, DefaultRole(), nil); err != nil {
		return nil, err
	}
	if r.Model, err = bind[GptModel](b, KeyModel, model, nil); err != nil {
		return nil, err
	}
	if r.Conversations, err = bind[ConversationList](b, KeyConversations, DefaultConversations(), nil); err != nil {
		return nil, err
	}
	return r, nil
}

func newEvaluator(engine string, functions *FunctionRegistry) (Evaluator, error) {
	switch engine {
	case "", "expr":
		return NewExprEvaluator(ExprWithProgramCache(NewProgramCache()), ExprWithFunctionRegistry(functions)), nil
	case "cel":
		return NewCELEvaluator(CELWithProgramCache(NewProgramCache()), CELWithFunctionRegistry(functions)), nil
	case "js":
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("chatstate: js rules require the js_eval build tag: %w", ErrNoEvaluator)
		}
		return NewJSEvaluator(JSWithProgramCache(NewProgramCache()), JSWithFunctionRegistry(functions)), nil
	default:
		return nil, fmt.Errorf("chatstate: unknown rule engine %q: %w", engine, ErrNoEvaluator)
	}
}

// bind builds the persisted cell for key. Configured rules run first; the
// value's own Validate and the invariant guards always run after them, so
// dropping the default rules never admits an invalid value.
func bind[T any](b binder, key string, defaultValue T, invariants []persisted.Guard[T], codecOpts ...codec.Option) (*persisted.Cell[T], error) {
	var guards []persisted.Guard[T]
	if exprs := b.rules[key]; len(exprs) > 0 {
		guard, err := ruleGuard[T](b.evaluator, key, exprs, b.logger)
		if err != nil {
			return nil, err
		}
		guards = append(guards, guard)
	}
	guards = append(guards, codec.Validate[T])
	guards = append(guards, invariants...)

	opts := []persisted.Option[T]{
		persisted.WithEmitter[T](b.emitter),
		persisted.WithContext[T](b.ctx),
		persisted.WithOrigin[T](b.origin),
		persisted.WithGuards(guards...),
	}
	c := codec.JSON[T](append([]codec.Option{codec.WithValidation()}, codecOpts...)...)
	return persisted.New(key, defaultValue, b.adapter, c, opts...), nil
}

// SessionID identifies this registry on activity events.
func (r *Registry) SessionID() string {
	return r.sessionID
}

// Origin returns the namespace applied to every storage key.
func (r *Registry) Origin() string {
	return r.origin
}

// Engine names the rule engine guarding the persisted cells.
func (r *Registry) Engine() string {
	return r.engine
}

// Err joins the latest persistence error of every persisted cell.
func (r *Registry) Err() error {
	return errors.Join(
		r.APIKey.Err(),
		r.StreamMessages.Err(),
		r.CombinedTokens.Err(),
		r.DefaultAssistantRole.Err(),
		r.Model.Err(),
		r.Conversations.Err(),
	)
}

// Close releases a backend opened by Open. Registries built with New leave
// the adapter to the caller.
func (r *Registry) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
