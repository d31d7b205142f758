// Package hydrate turns persisted record payloads back into typed slice
// values. Pre-hooks rewrite the raw JSON (e.g. migrating an older record
// version); post-hooks validate or adjust the decoded value.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Context identifies the record being decoded.
type Context struct {
	Key     string
	Version int
}

// PreHook lets callers rewrite the payload before decoding. Returning nil keeps
// the current payload.
type PreHook func(Context, json.RawMessage) (json.RawMessage, error)

// PostHook lets callers adjust or validate the decoded value.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default JSON decoding when provided.
type CustomDecoder[T any] func(Context, json.RawMessage) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts raw record payloads into values of type T.
type Decoder[T any] struct {
	preHooks     []PreHook
	postHooks    []PostHook[T]
	configureDec []func(*json.Decoder)
	custom       CustomDecoder[T]
}

func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithUseNumber enables json.Decoder.UseNumber during decoding.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.UseNumber()
		})
	}
}

// WithDisallowUnknownFields invokes json.Decoder.DisallowUnknownFields.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

// WithCustomDecoder replaces the default JSON decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

// WithValidation runs Validate() on the decoded value when T (or *T)
// implements it.
func WithValidation[T any]() DecoderOption[T] {
	return WithPostHook[T](func(ctx Context, value *T) error {
		if err := validateValue(value); err != nil {
			return fmt.Errorf("validate: %w", err)
		}
		return nil
	})
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

// Decode converts payload into T, applying configured hooks in order.
func (d *Decoder[T]) Decode(ctx Context, payload json.RawMessage) (T, error) {
	var zero T

	if len(bytes.TrimSpace(payload)) == 0 {
		return zero, fmt.Errorf("hydrate: payload is empty for key %q", ctx.Key)
	}

	current := append(json.RawMessage(nil), payload...)
	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for key %q failed: %w", ctx.Key, err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		var err error
		result, err = d.custom(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder for key %q failed: %w", ctx.Key, err)
		}
	} else {
		decoder := json.NewDecoder(bytes.NewReader(current))
		for _, configure := range d.configureDec {
			if configure != nil {
				configure(decoder)
			}
		}
		if err := decoder.Decode(&result); err != nil {
			return zero, fmt.Errorf("hydrate: decode key %q: %w", ctx.Key, err)
		}
		if decoder.More() {
			return zero, fmt.Errorf("hydrate: decode key %q: trailing data", ctx.Key)
		}
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for key %q failed: %w", ctx.Key, err)
		}
	}

	return result, nil
}

func validateValue[T any](value *T) error {
	if value == nil {
		return nil
	}
	if v, ok := any(*value).(interface{ Validate() error }); ok {
		rv := reflect.ValueOf(*value)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		return v.Validate()
	}
	if v, ok := any(value).(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}
