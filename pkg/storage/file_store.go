package storage

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const recordExt = ".json"

// FileStore keeps one file per record under <dir>/<escaped origin>/<escaped
// key>.json. Writes go through a temp file and rename so readers never observe
// a partially written record.
type FileStore struct {
	dir string

	mu      sync.Mutex
	written map[string][sha256.Size]byte
}

// NewFileStore creates dir when needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage: file store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir, written: map[string][sha256.Size]byte{}}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Load(_ context.Context, ref Ref) ([]byte, bool, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, false, err
	}
	value, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return value, true, nil
}

func (s *FileStore) Save(_ context.Context, ref Ref, value []byte) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".record-*.tmp")
	if err != nil {
		return fmt.Errorf("storage: temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("storage: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: close %s: %w", tmpName, err)
	}

	s.mu.Lock()
	s.written[path] = sha256.Sum256(value)
	s.mu.Unlock()

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("storage: rename %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, ref Ref) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.written, path)
	s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: remove %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context, origin string) ([]string, error) {
	dir := s.originDir(origin)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		key, ok := keyFromFile(entry.Name())
		if !ok || entry.IsDir() {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) path(ref Ref) (string, error) {
	n := ref.Normalize()
	if _, err := n.Identifier(); err != nil {
		return "", err
	}
	return filepath.Join(s.originDir(n.Origin), url.PathEscape(n.Key)+recordExt), nil
}

func (s *FileStore) originDir(origin string) string {
	return filepath.Join(s.dir, url.PathEscape(NormalizeOrigin(origin)))
}

// ownWrite reports whether value is exactly what this store last wrote to path.
func (s *FileStore) ownWrite(path string, value []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.written[path]
	return ok && sum == sha256.Sum256(value)
}

func keyFromFile(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, recordExt))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}
