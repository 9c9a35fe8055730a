package chatstate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function is callable from rule expressions. Arguments arrive in the
// engine's native form; numbers are usually float64.
type Function func(args ...any) (any, error)

// FunctionRegistry maps case-insensitive names to rule functions.
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{funcs: map[string]Function{}}
}

// BuiltinFunctions returns a registry holding the model catalog helpers:
//
//	model_limit(code)                     token limit, 0 for unknown codes
//	model_cost(code, prompt, completion)  estimated dollars for the token counts
func BuiltinFunctions() *FunctionRegistry {
	r := NewFunctionRegistry()
	r.funcs["model_limit"] = func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("model_limit: want 1 argument, got %d", len(args))
		}
		model, _ := LookupModel(fmt.Sprint(args[0]))
		return model.TokenLimit, nil
	}
	r.funcs["model_cost"] = func(args ...any) (any, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("model_cost: want 3 arguments, got %d", len(args))
		}
		model, ok := LookupModel(fmt.Sprint(args[0]))
		if !ok {
			return nil, fmt.Errorf("model_cost: unknown model %q", args[0])
		}
		prompt, err := toInt(args[1])
		if err != nil {
			return nil, fmt.Errorf("model_cost: prompt tokens: %w", err)
		}
		completion, err := toInt(args[2])
		if err != nil {
			return nil, fmt.Errorf("model_cost: completion tokens: %w", err)
		}
		return model.EstimateCost(prompt, completion), nil
	}
	return r
}

// Register adds fn under name. Names are unique regardless of case.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	name = strings.ToLower(strings.TrimSpace(name))
	switch {
	case name == "":
		return fmt.Errorf("chatstate: function name must not be empty")
	case fn == nil:
		return fmt.Errorf("chatstate: function %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = map[string]Function{}
	}
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("chatstate: function %q already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

// Merge registers every function of other into r, stopping at the first
// name clash.
func (r *FunctionRegistry) Merge(other *FunctionRegistry) error {
	if other == nil {
		return nil
	}
	for _, name := range other.Names() {
		other.mu.RLock()
		fn := other.funcs[name]
		other.mu.RUnlock()
		if err := r.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an independent copy; nil stays nil.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	clone := NewFunctionRegistry()
	_ = clone.Merge(r)
	return clone
}

func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("chatstate: function registry is nil")
	}
	r.mu.RLock()
	fn := r.funcs[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("chatstate: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns the registered names, lower-cased and sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *FunctionRegistry) bind(name string) func(...any) (any, error) {
	return func(args ...any) (any, error) {
		return r.Call(name, args...)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
