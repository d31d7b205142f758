package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ssadedin/go-statestore/pkg/persist"
	"github.com/ssadedin/go-statestore/pkg/storage"
)

// setupWorkspace points the global flags at a file-backed config in a temp
// directory and returns the records directory.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	logger = zap.NewNop()
	dir := t.TempDir()
	records := filepath.Join(dir, "records")
	cfg := "keys: [cart, variantSearchDisplay]\nbackend:\n  kind: file\n  path: " + records + "\n"
	path := filepath.Join(dir, "statestore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	configPath = path
	origin = ""
	dumpFormat = "json"
	t.Cleanup(func() {
		configPath = ""
		origin = ""
		dumpFormat = "json"
	})
	return records
}

func capture(fn func(cmd *cobra.Command, args []string) error, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	err := fn(cmd, args)
	return out.String(), err
}

func TestSetGetDumpClear(t *testing.T) {
	setupWorkspace(t)

	_, err := capture(runSet, "cart", `["apple","pear"]`)
	require.NoError(t, err)

	out, err := capture(runGet, "cart")
	require.NoError(t, err)
	assert.JSONEq(t, `["apple","pear"]`, out)

	out, err = capture(runKeys)
	require.NoError(t, err)
	assert.Contains(t, out, "cart\tstored")
	assert.Contains(t, out, "variantSearchDisplay\tabsent")

	dumpFormat = "yaml"
	out, err = capture(runDump)
	require.NoError(t, err)
	assert.Contains(t, out, "cart:\n")
	assert.Contains(t, out, "- pear\n")
	assert.NotContains(t, out, "variantSearchDisplay")

	_, err = capture(runSet, "variantSearchDisplay", `{"sort":"xpos","page":1}`)
	require.NoError(t, err)
	dumpFormat = "fields"
	out, err = capture(runDump)
	require.NoError(t, err)
	assert.Equal(t, "cart\t[]string\nvariantSearchDisplay.page\tfloat64\nvariantSearchDisplay.sort\tstring\n", out)
	_, err = capture(runClear, "variantSearchDisplay")
	require.NoError(t, err)

	dumpFormat = "xml"
	_, err = capture(runDump)
	assert.Error(t, err)

	out, err = capture(runClear, "cart")
	require.NoError(t, err)
	assert.Equal(t, "cleared cart\n", out)

	out, err = capture(runGet, "cart")
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)
}

func TestSetRejectsUnknownKeyAndBadJSON(t *testing.T) {
	setupWorkspace(t)

	_, err := capture(runSet, "other", `1`)
	assert.ErrorContains(t, err, "unknown key")

	_, err = capture(runSet, "cart", `[`)
	assert.ErrorContains(t, err, "parse value")
}

func TestKeysReportsUnmanagedAndUnreadable(t *testing.T) {
	records := setupWorkspace(t)
	fs, err := storage.NewFileStore(records)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, fs.Save(ctx, storage.Ref{Key: "legacy"}, []byte(`{}`)))
	require.NoError(t, fs.Save(ctx, storage.Ref{Key: "cart"}, []byte(`{"v":9,"data":[]}`)))

	out, err := capture(runKeys)
	require.NoError(t, err)
	assert.Contains(t, out, "legacy\tunmanaged")
	assert.Contains(t, out, "cart\tunreadable")

	out, err = capture(runDump)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, out)
}

func TestOriginFlagScopesRecords(t *testing.T) {
	setupWorkspace(t)
	origin = "tab-b"

	_, err := capture(runSet, "cart", `["x"]`)
	require.NoError(t, err)

	origin = ""
	out, err := capture(runGet, "cart")
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchFollowsForeignWrites(t *testing.T) {
	records := setupWorkspace(t)
	watchTimeout = 0
	t.Cleanup(func() { watchTimeout = 0 })

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- runWatch(cmd, nil) }()

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") >= 1
	}, 5*time.Second, 10*time.Millisecond)

	writer, err := storage.NewFileStore(records)
	require.NoError(t, err)
	raw, err := persist.Untyped("cart").Encode([]any{"apple"})
	require.NoError(t, err)
	// The watcher may still be registering; keep writing until it reports.
	require.Eventually(t, func() bool {
		_ = writer.Save(context.Background(), storage.Ref{Key: "cart"}, raw)
		return strings.Contains(out.String(), `"cart":["apple"]`)
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestLogLevelFollowsConfigUnlessVerbose(t *testing.T) {
	setupWorkspace(t)
	cfg, err := loadConfig()
	require.NoError(t, err)

	cfg.LogLevel = "warn"
	level, err := logLevel(cfg)
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	verbose = true
	t.Cleanup(func() { verbose = false })
	level, err = logLevel(cfg)
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)
}
