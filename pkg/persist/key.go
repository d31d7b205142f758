package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ssadedin/go-statestore/internal/hydrate"
)

var (
	// ErrSliceType reports a slice value whose type does not match its key.
	ErrSliceType = errors.New("persist: slice type mismatch")
	// ErrVersion reports a record version that cannot be brought up to date.
	ErrVersion = errors.New("persist: incompatible record version")
	// ErrCorrupt reports a record that cannot be parsed.
	ErrCorrupt = errors.New("persist: corrupt record")
)

// Key describes one persisted slice and its codec.
type Key interface {
	Name() string
	Version() int
	// Encode serializes a slice value into a record. A nil value encodes as an
	// envelope with null data.
	Encode(value any) ([]byte, error)
	// Decode parses a record. ok is false when the record holds null data.
	Decode(raw []byte) (value any, ok bool, err error)
}

// Migration upgrades slice data from one version to the next.
type Migration func(data json.RawMessage) (json.RawMessage, error)

// SliceOption configures a Key.
type SliceOption func(*sliceConfig)

type sliceConfig struct {
	version    int
	migrations map[int]Migration
	strict     bool
	useNumber  bool
}

// WithVersion sets the record version written by the key. Defaults to 1.
func WithVersion(version int) SliceOption {
	return func(cfg *sliceConfig) {
		cfg.version = version
	}
}

// WithMigration registers fn to upgrade data written at version from to
// version from+1.
func WithMigration(from int, fn Migration) SliceOption {
	return func(cfg *sliceConfig) {
		if fn == nil {
			return
		}
		if cfg.migrations == nil {
			cfg.migrations = map[int]Migration{}
		}
		cfg.migrations[from] = fn
	}
}

// WithStrict rejects records carrying fields unknown to the slice type.
func WithStrict() SliceOption {
	return func(cfg *sliceConfig) {
		cfg.strict = true
	}
}

// WithUseNumber decodes JSON numbers as json.Number instead of float64.
func WithUseNumber() SliceOption {
	return func(cfg *sliceConfig) {
		cfg.useNumber = true
	}
}

type envelope struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

type sliceKey[T any] struct {
	name    string
	cfg     sliceConfig
	decoder *hydrate.Decoder[T]
}

// Slice declares a persisted slice holding values of type T. Encode accepts T
// or a non-nil *T.
func Slice[T any](name string, opts ...SliceOption) Key {
	cfg := sliceConfig{version: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	k := &sliceKey[T]{name: strings.TrimSpace(name), cfg: cfg}

	decoderOpts := []hydrate.DecoderOption[T]{
		hydrate.WithPreHook[T](k.migrate),
		hydrate.WithValidation[T](),
	}
	if cfg.strict {
		decoderOpts = append(decoderOpts, hydrate.WithDisallowUnknownFields[T]())
	}
	if cfg.useNumber {
		decoderOpts = append(decoderOpts, hydrate.WithUseNumber[T]())
	}
	k.decoder = hydrate.NewDecoder(decoderOpts...)
	return k
}

// Untyped declares a persisted slice that round-trips arbitrary JSON values
// (objects decode as map[string]any, arrays as []any).
func Untyped(name string, opts ...SliceOption) Key {
	return Slice[any](name, opts...)
}

func (k *sliceKey[T]) Name() string {
	return k.name
}

func (k *sliceKey[T]) Version() int {
	return k.cfg.version
}

func (k *sliceKey[T]) Encode(value any) ([]byte, error) {
	data := json.RawMessage("null")
	if value != nil {
		typed, err := k.typed(value)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(typed)
		if err != nil {
			return nil, fmt.Errorf("persist: encode %q: %w", k.name, err)
		}
		data = raw
	}
	out, err := json.Marshal(envelope{Version: k.cfg.version, Data: data})
	if err != nil {
		return nil, fmt.Errorf("persist: encode %q: %w", k.name, err)
	}
	return out, nil
}

func (k *sliceKey[T]) typed(value any) (T, error) {
	if typed, ok := value.(T); ok {
		return typed, nil
	}
	if ptr, ok := value.(*T); ok && ptr != nil {
		return *ptr, nil
	}
	var zero T
	return zero, fmt.Errorf("%w: %q holds %T, want %T", ErrSliceType, k.name, value, zero)
}

func (k *sliceKey[T]) Decode(raw []byte) (any, bool, error) {
	env, err := parseEnvelope(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %q: %v", ErrCorrupt, k.name, err)
	}
	if env.Version > k.cfg.version {
		return nil, false, fmt.Errorf("%w: %q stored at v%d, reader is v%d", ErrVersion, k.name, env.Version, k.cfg.version)
	}
	if isNull(env.Data) {
		return nil, false, nil
	}
	value, err := k.decoder.Decode(hydrate.Context{Key: k.name, Version: env.Version}, env.Data)
	if err != nil {
		if errors.Is(err, ErrVersion) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return value, true, nil
}

// migrate walks data from the record version up to the key version.
func (k *sliceKey[T]) migrate(ctx hydrate.Context, data json.RawMessage) (json.RawMessage, error) {
	current := data
	for v := ctx.Version; v < k.cfg.version; v++ {
		fn, ok := k.cfg.migrations[v]
		if !ok {
			return nil, fmt.Errorf("%w: %q has no migration from v%d", ErrVersion, k.name, v)
		}
		next, err := fn(current)
		if err != nil {
			return nil, fmt.Errorf("migrate %q v%d: %w", k.name, v, err)
		}
		current = next
	}
	return current, nil
}

// parseEnvelope accepts the versioned envelope and falls back to treating any
// other valid JSON as a version 0 record.
func parseEnvelope(raw []byte) (envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return envelope{}, errors.New("empty record")
	}
	if !json.Valid(trimmed) {
		return envelope{}, errors.New("invalid JSON")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err == nil && len(fields) == 2 {
		version, hasVersion := fields["v"]
		data, hasData := fields["data"]
		if hasVersion && hasData {
			var env envelope
			if err := json.Unmarshal(version, &env.Version); err == nil {
				env.Data = data
				return env, nil
			}
		}
	}
	return envelope{Version: 0, Data: append(json.RawMessage(nil), trimmed...)}, nil
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
