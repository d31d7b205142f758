// Package config loads statestore settings from a YAML file and STATESTORE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/ssadedin/go-statestore/pkg/persist"
	"github.com/ssadedin/go-statestore/pkg/storage"
)

const (
	BackendMemory      = "memory"
	BackendFile        = "file"
	BackendSQLite      = "sqlite"
	BackendUnavailable = "unavailable"
)

// DefaultKeys are the slices persisted when no key list is configured.
var DefaultKeys = []string{
	"projectsTableState",
	"familyTableState",
	"savedVariantTableState",
	"variantSearchDisplay",
	"searchesByHash",
}

type Config struct {
	Origin   string         `yaml:"origin" mapstructure:"origin"`
	Keys     []string       `yaml:"keys" mapstructure:"keys"`
	Backend  BackendConfig  `yaml:"backend" mapstructure:"backend"`
	Activity ActivityConfig `yaml:"activity" mapstructure:"activity"`
	LogLevel string         `yaml:"log_level" mapstructure:"log_level"`
}

type BackendConfig struct {
	Kind       string `yaml:"kind" mapstructure:"kind"`
	Path       string `yaml:"path" mapstructure:"path"`
	QuotaBytes int    `yaml:"quota_bytes" mapstructure:"quota_bytes"`
}

type ActivityConfig struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	Channel string   `yaml:"channel" mapstructure:"channel"`
	Verbs   []string `yaml:"verbs" mapstructure:"verbs"`
}

func DefaultConfig() *Config {
	return &Config{
		Origin: storage.DefaultOrigin,
		Keys:   append([]string(nil), DefaultKeys...),
		Backend: BackendConfig{
			Kind: BackendFile,
			Path: ".statestore",
		},
		LogLevel: "info",
	}
}

// Load reads configuration. An empty path searches ./statestore.yaml; a
// missing file is not an error. Environment variables override file values,
// e.g. STATESTORE_BACKEND_KIND=sqlite.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("statestore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}
	return decode(v)
}

// Parse reads YAML configuration from r, applying the same defaults and
// environment overrides as Load.
func Parse(r io.Reader) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("origin", defaults.Origin)
	v.SetDefault("keys", defaults.Keys)
	v.SetDefault("backend.kind", defaults.Backend.Kind)
	v.SetDefault("backend.path", defaults.Backend.Path)
	v.SetDefault("backend.quota_bytes", defaults.Backend.QuotaBytes)
	v.SetDefault("activity.enabled", defaults.Activity.Enabled)
	v.SetDefault("activity.channel", defaults.Activity.Channel)
	v.SetDefault("log_level", defaults.LogLevel)

	v.SetEnvPrefix("STATESTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and normalizes its fields.
func (c *Config) Validate() error {
	c.Origin = storage.NormalizeOrigin(c.Origin)
	c.Backend.Kind = strings.ToLower(strings.TrimSpace(c.Backend.Kind))

	keys := make([]string, 0, len(c.Keys))
	for _, key := range c.Keys {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("config: keys must list at least one slice")
	}
	c.Keys = keys

	switch c.Backend.Kind {
	case BackendMemory, BackendUnavailable:
	case BackendFile, BackendSQLite:
		if strings.TrimSpace(c.Backend.Path) == "" {
			return fmt.Errorf("config: backend %q requires path", c.Backend.Kind)
		}
	default:
		return fmt.Errorf("config: backend kind %q is invalid (must be memory, file, sqlite or unavailable)", c.Backend.Kind)
	}
	if c.Backend.QuotaBytes < 0 {
		return fmt.Errorf("config: backend quota_bytes must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel. An empty level means info.
func (c *Config) Level() (zapcore.Level, error) {
	if strings.TrimSpace(c.LogLevel) == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(strings.TrimSpace(c.LogLevel))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("config: log_level: %w", err)
	}
	return level, nil
}

// KeySet builds untyped persistence keys for the configured slice names.
func (c *Config) KeySet() (*persist.KeySet, error) {
	return persist.Names(c.Keys...)
}

// OpenBackend constructs the configured storage. The returned close function
// is never nil.
func (c *Config) OpenBackend() (storage.Backend, func() error, error) {
	noop := func() error { return nil }
	var (
		backend storage.Backend
		closer  = noop
	)
	switch c.Backend.Kind {
	case BackendMemory:
		backend = storage.NewMemoryStore()
	case BackendUnavailable:
		backend = storage.Unavailable{Reason: "disabled by configuration"}
	case BackendFile:
		fs, err := storage.NewFileStore(c.Backend.Path)
		if err != nil {
			return nil, noop, err
		}
		backend = fs
	case BackendSQLite:
		db, err := storage.OpenSQLiteStore(c.Backend.Path)
		if err != nil {
			return nil, noop, err
		}
		backend, closer = db, db.Close
	default:
		return nil, noop, fmt.Errorf("config: backend kind %q is invalid", c.Backend.Kind)
	}
	if c.Backend.QuotaBytes > 0 {
		backend = storage.NewQuotaStore(backend, c.Backend.QuotaBytes)
	}
	return backend, closer, nil
}
