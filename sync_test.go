package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	store "github.com/ssadedin/go-statestore"
	"github.com/ssadedin/go-statestore/pkg/activity"
	"github.com/ssadedin/go-statestore/pkg/persist"
	"github.com/ssadedin/go-statestore/pkg/storage"
)

type chanWatcher struct {
	changes chan storage.Change
	errs    chan error
}

func newChanWatcher() *chanWatcher {
	return &chanWatcher{changes: make(chan storage.Change), errs: make(chan error)}
}

func (w *chanWatcher) Changes() <-chan storage.Change { return w.changes }
func (w *chanWatcher) Errors() <-chan error           { return w.errs }
func (w *chanWatcher) Close() error                   { close(w.changes); close(w.errs); return nil }

func TestSyncAppliesExternalChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := storage.NewMemoryStore()
	capture := &activity.CaptureHook{}
	s, err := store.Configure(cartRoot(), store.State{"other": 1},
		store.WithKeySet(cartKeys(t)),
		store.WithBackend(backend),
		store.WithActivityHooks(activity.Hooks{capture}, ""),
	)
	require.NoError(t, err)

	watcher := newChanWatcher()
	done := make(chan error, 1)
	go func() { done <- s.Sync(context.Background(), watcher) }()

	notified := 0
	s.Subscribe(func() { notified++ })

	seed(t, backend, persist.Untyped("cart"), []any{"from another tab"})
	watcher.changes <- storage.Change{Ref: storage.Ref{Key: "cart"}}
	watcher.changes <- storage.Change{Ref: storage.Ref{Key: "other"}}
	watcher.changes <- storage.Change{Ref: storage.Ref{Origin: "elsewhere", Key: "cart"}}
	watcher.errs <- assert.AnError

	require.NoError(t, watcher.Close())
	require.NoError(t, <-done)

	assert.Equal(t, []any{"from another tab"}, s.GetState()["cart"])
	assert.Equal(t, 1, s.GetState()["other"])
	assert.Equal(t, 1, notified)
	assert.Contains(t, capture.Verbs(), activity.VerbSynced)
}

func TestSyncRemovedRecordClearsSlice(t *testing.T) {
	backend := storage.NewMemoryStore()
	keys, err := persist.Names("prefs")
	require.NoError(t, err)
	seed(t, backend, persist.Untyped("prefs"), map[string]any{"theme": "dark"})

	s, err := store.Configure(nil, nil, store.WithKeySet(keys), store.WithBackend(backend))
	require.NoError(t, err)
	require.Contains(t, s.GetState(), "prefs")

	require.NoError(t, backend.Delete(context.Background(), storage.Ref{Key: "prefs"}))
	watcher := newChanWatcher()
	done := make(chan error, 1)
	go func() { done <- s.Sync(context.Background(), watcher) }()

	watcher.changes <- storage.Change{Ref: storage.Ref{Key: "prefs"}}
	require.NoError(t, watcher.Close())
	require.NoError(t, <-done)
	assert.NotContains(t, s.GetState(), "prefs")
}

func TestSyncSkipsCorruptRecord(t *testing.T) {
	backend := storage.NewMemoryStore()
	s, err := store.Configure(cartRoot(), nil, store.WithKeySet(cartKeys(t)), store.WithBackend(backend))
	require.NoError(t, err)
	before := s.GetState()

	require.NoError(t, backend.Save(context.Background(), storage.Ref{Key: "cart"}, []byte(`not json`)))
	watcher := newChanWatcher()
	done := make(chan error, 1)
	go func() { done <- s.Sync(context.Background(), watcher) }()

	watcher.changes <- storage.Change{Ref: storage.Ref{Key: "cart"}}
	require.NoError(t, watcher.Close())
	require.NoError(t, <-done)
	assert.Equal(t, before, s.GetState())
}

func TestSyncStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := store.Configure(cartRoot(), nil, store.WithKeySet(cartKeys(t)), store.WithBackend(storage.NewMemoryStore()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Sync(ctx, newChanWatcher()) }()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	plain, err := store.New(nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, plain.Sync(context.Background(), newChanWatcher()), store.ErrNotPersistent)
}

func TestSyncBetweenFileStores(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writerBackend, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	readerBackend, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	keys := cartKeys(t)

	writer, err := store.Configure(cartRoot(), nil, store.WithKeySet(keys), store.WithBackend(writerBackend))
	require.NoError(t, err)
	reader, err := store.Configure(cartRoot(), nil, store.WithKeySet(keys), store.WithBackend(readerBackend))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	watcher, err := readerBackend.Watch(ctx, reader.Origin())
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- reader.Sync(ctx, watcher) }()

	_, err = writer.Dispatch(store.NewAction(addItem, "apple"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		cart, _ := reader.GetState()["cart"].([]any)
		return len(cart) == 1 && cart[0] == "apple"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done
	require.NoError(t, watcher.Close())
}

func TestSyncDoesNotWriteBackForeignChanges(t *testing.T) {
	backend := storage.NewMemoryStore()
	keys, err := persist.Names("a", "b")
	require.NoError(t, err)
	seed(t, backend, persist.Untyped("a"), "old-a")
	seed(t, backend, persist.Untyped("b"), "old-b")

	s, err := store.Configure(nil, nil, store.WithKeySet(keys), store.WithBackend(backend))
	require.NoError(t, err)

	seed(t, backend, persist.Untyped("b"), "new-b")
	seed(t, backend, persist.Untyped("a"), "new-a")

	watcher := newChanWatcher()
	done := make(chan error, 1)
	go func() { done <- s.Sync(context.Background(), watcher) }()
	watcher.changes <- storage.Change{Ref: storage.Ref{Key: "b"}}
	watcher.changes <- storage.Change{Ref: storage.Ref{Key: "a"}}
	require.NoError(t, watcher.Close())
	require.NoError(t, <-done)

	assert.Equal(t, "new-a", s.GetState()["a"])
	assert.Equal(t, "new-b", s.GetState()["b"])
	assert.Equal(t, "new-a", load(t, backend, persist.Untyped("a")))
	assert.Equal(t, "new-b", load(t, backend, persist.Untyped("b")))
}
