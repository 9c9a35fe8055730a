// Package codec converts typed values to and from their stored string form.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goliatone/go-chatstate/internal/hydrate"
)

// ErrCorruptData reports stored text that cannot be decoded into the target type.
var ErrCorruptData = errors.New("codec: corrupt data")

// Codec encodes values to strings and decodes them back. Decode must be the
// left inverse of Encode for every string Encode produces.
type Codec[T any] interface {
	Encode(value T) (string, error)
	Decode(raw string) (T, error)
}

// Option configures a JSON codec.
type Option func(*jsonConfig)

type jsonConfig struct {
	strict      bool
	validate    bool
	bareStrings bool
}

// WithStrictFields rejects object fields the target type does not declare.
func WithStrictFields() Option {
	return func(cfg *jsonConfig) {
		cfg.strict = true
	}
}

// WithValidation calls Validate() on decoded values that implement it; a
// validation failure is reported as ErrCorruptData.
func WithValidation() Option {
	return func(cfg *jsonConfig) {
		cfg.validate = true
	}
}

// WithBareStrings accepts stored text that is not JSON as a string, for
// values written by hand without quotes. Encoding is unchanged.
func WithBareStrings() Option {
	return func(cfg *jsonConfig) {
		cfg.bareStrings = true
	}
}

type jsonCodec[T any] struct {
	decoder *hydrate.Decoder[T]
}

// JSON returns a Codec backed by encoding/json.
func JSON[T any](opts ...Option) Codec[T] {
	cfg := jsonConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	var decoderOpts []hydrate.DecoderOption[T]
	if cfg.bareStrings {
		decoderOpts = append(decoderOpts, hydrate.WithPreHook[T](hydrate.QuoteBareText))
	}
	if cfg.strict {
		decoderOpts = append(decoderOpts, hydrate.WithDisallowUnknownFields[T]())
	}
	if cfg.validate {
		decoderOpts = append(decoderOpts, hydrate.WithPostHook(func(_ hydrate.Context, v *T) error {
			return validateValue(v)
		}))
	}
	return &jsonCodec[T]{decoder: hydrate.NewDecoder(decoderOpts...)}
}

func (c *jsonCodec[T]) Encode(value T) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("codec: encode: %w", err)
	}
	return string(raw), nil
}

func (c *jsonCodec[T]) Decode(raw string) (T, error) {
	value, err := c.decoder.Decode(hydrate.Context{}, []byte(raw))
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	return value, nil
}

// Validate calls Validate() on value when its type implements it, the same
// check WithValidation applies after decoding.
func Validate[T any](value T) error {
	return validateValue(&value)
}

func validateValue[T any](value *T) error {
	if v, ok := any(value).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	if v, ok := any(*value).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}
