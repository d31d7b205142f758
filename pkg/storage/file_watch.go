package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reports records changed by other processes sharing a FileStore
// directory. Changes whose content matches this store's own last write are
// suppressed so a store does not re-ingest what it just persisted.
type FileWatcher struct {
	store   *FileStore
	origin  string
	watcher *fsnotify.Watcher

	changes chan Change
	errs    chan error
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Watch starts watching the records of one origin. The watcher stops when ctx
// is cancelled or Close is called.
func (s *FileStore) Watch(ctx context.Context, origin string) (*FileWatcher, error) {
	origin = NormalizeOrigin(origin)
	dir := s.originDir(origin)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("storage: watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("storage: watch %s: %w", dir, err)
	}

	w := &FileWatcher{
		store:   s,
		origin:  origin,
		watcher: fw,
		changes: make(chan Change, 16),
		errs:    make(chan error, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run(ctx)
	return w, nil
}

func (w *FileWatcher) Changes() <-chan Change {
	return w.changes
}

func (w *FileWatcher) Errors() <-chan error {
	return w.errs
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *FileWatcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		err = w.watcher.Close()
	})
	<-w.done
	return err
}

func (w *FileWatcher) run(ctx context.Context) {
	defer close(w.done)
	defer close(w.changes)
	defer close(w.errs)

	for {
		select {
		case <-ctx.Done():
			w.once.Do(func() {
				close(w.stop)
				w.watcher.Close()
			})
			return
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			change, ok := w.translate(event)
			if !ok {
				continue
			}
			select {
			case w.changes <- change:
			case <-w.stop:
				return
			case <-ctx.Done():
				continue
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *FileWatcher) translate(event fsnotify.Event) (Change, bool) {
	key, ok := keyFromFile(filepath.Base(event.Name))
	if !ok {
		return Change{}, false
	}
	if event.Has(fsnotify.Remove) {
		return Change{Ref: Ref{Origin: w.origin, Key: key}}, true
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return Change{}, false
	}
	value, err := os.ReadFile(event.Name)
	if err != nil {
		return Change{}, false
	}
	if w.store.ownWrite(event.Name, value) {
		return Change{}, false
	}
	return Change{Ref: Ref{Origin: w.origin, Key: key}}, true
}
