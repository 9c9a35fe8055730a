// Package hydrate turns stored text back into typed values.
package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
)

var (
	ErrEmptyPayload = errors.New("hydrate: empty payload")
	ErrTrailingData = errors.New("hydrate: trailing data after value")
	ErrNullPayload  = errors.New("hydrate: null for non-nullable type")
)

// Context identifies the payload being decoded in error messages.
type Context struct {
	Key string
}

func (c Context) label() string {
	if c.Key == "" {
		return "payload"
	}
	return fmt.Sprintf("key %q", c.Key)
}

// PreHook rewrites the trimmed payload before it is decoded. Returning nil
// keeps the payload unchanged.
type PreHook func(Context, []byte) ([]byte, error)

// PostHook inspects or adjusts the decoded value.
type PostHook[T any] func(Context, *T) error

type DecoderOption[T any] func(*Decoder[T])

// Decoder reads exactly one JSON value per payload.
type Decoder[T any] struct {
	pre          []PreHook
	post         []PostHook[T]
	strictFields bool
}

func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.pre = append(d.pre, hook)
		}
	}
}

func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.post = append(d.post, hook)
		}
	}
}

// WithDisallowUnknownFields rejects object fields T does not declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.strictFields = true
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode trims payload, runs the pre hooks, decodes a single JSON value and
// runs the post hooks. Blank input, trailing data and a null payload for a
// type that cannot hold nil are errors.
func (d *Decoder[T]) Decode(ctx Context, payload []byte) (T, error) {
	var zero T

	current := bytes.TrimSpace(payload)
	for _, hook := range d.pre {
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for %s: %w", ctx.label(), err)
		}
		if next != nil {
			current = next
		}
	}
	if len(current) == 0 {
		return zero, fmt.Errorf("%w for %s", ErrEmptyPayload, ctx.label())
	}

	if bytes.Equal(current, []byte("null")) && !Nullable[T]() {
		return zero, fmt.Errorf("%w for %s", ErrNullPayload, ctx.label())
	}

	dec := json.NewDecoder(bytes.NewReader(current))
	if d.strictFields {
		dec.DisallowUnknownFields()
	}
	var result T
	if err := dec.Decode(&result); err != nil {
		return zero, fmt.Errorf("hydrate: decode %s: %w", ctx.label(), err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return zero, fmt.Errorf("%w for %s", ErrTrailingData, ctx.label())
	}

	for _, hook := range d.post {
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %s: %w", ctx.label(), err)
		}
	}
	return result, nil
}

// QuoteBareText is a PreHook that turns a payload which is not valid JSON
// into a JSON string, so hand-edited values like sk-abc still decode into
// string targets.
func QuoteBareText(_ Context, raw []byte) ([]byte, error) {
	if len(raw) == 0 || json.Valid(raw) {
		return nil, nil
	}
	return json.Marshal(string(raw))
}

// Nullable reports whether T can represent JSON null.
func Nullable[T any]() bool {
	switch reflect.TypeOf((*T)(nil)).Elem().Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}
