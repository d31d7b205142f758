package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ssadedin/go-statestore/pkg/storage"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, storage.DefaultOrigin, cfg.Origin)
	assert.Equal(t, DefaultKeys, cfg.Keys)
	assert.Equal(t, BackendFile, cfg.Backend.Kind)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
origin: https://seqr.example
keys: [cart, " ", familyTableState]
backend:
  kind: Memory
  quota_bytes: 64
activity:
  enabled: true
  channel: audit
  verbs: [state.persist_failed]
log_level: debug
`))
	require.NoError(t, err)
	assert.Equal(t, "https://seqr.example", cfg.Origin)
	assert.Equal(t, []string{"cart", "familyTableState"}, cfg.Keys)
	assert.Equal(t, BackendMemory, cfg.Backend.Kind)
	assert.Equal(t, 64, cfg.Backend.QuotaBytes)
	assert.True(t, cfg.Activity.Enabled)
	assert.Equal(t, "audit", cfg.Activity.Channel)
	assert.Equal(t, []string{"state.persist_failed"}, cfg.Activity.Verbs)
	assert.Equal(t, "debug", cfg.LogLevel)
	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)

	keys, err := cfg.KeySet()
	require.NoError(t, err)
	assert.Equal(t, []string{"cart", "familyTableState"}, keys.Names())

	backend, closeFn, err := cfg.OpenBackend()
	require.NoError(t, err)
	defer closeFn()
	_, ok := backend.(*storage.QuotaStore)
	assert.True(t, ok, "quota wraps the configured backend")
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "statestore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  kind: file\n  path: "+filepath.Join(dir, "records")+"\n"), 0o644))
	t.Setenv("STATESTORE_BACKEND_KIND", "sqlite")
	t.Setenv("STATESTORE_BACKEND_PATH", filepath.Join(dir, "state.db"))
	t.Setenv("STATESTORE_ORIGIN", "tab-a")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend.Kind)
	assert.Equal(t, "tab-a", cfg.Origin)
	assert.Equal(t, DefaultKeys, cfg.Keys)

	backend, closeFn, err := cfg.OpenBackend()
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	_, ok := backend.(*storage.SQLiteStore)
	assert.True(t, ok)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Backend, cfg.Backend)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"no keys":        func(c *Config) { c.Keys = []string{" "} },
		"unknown kind":   func(c *Config) { c.Backend.Kind = "redis" },
		"file no path":   func(c *Config) { c.Backend.Path = "" },
		"negative quota": func(c *Config) { c.Backend.QuotaBytes = -1 },
		"bad log level":  func(c *Config) { c.LogLevel = "chatty" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
