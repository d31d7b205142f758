package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultOrigin scopes records when a Ref carries no origin.
const DefaultOrigin = "default"

var (
	// ErrUnavailable reports that the backend cannot be used at all.
	ErrUnavailable = errors.New("storage: unavailable")
	// ErrQuotaExceeded reports that a save would exceed the configured budget.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
	// ErrKeyRequired reports a Ref without a key.
	ErrKeyRequired = errors.New("storage: key is required")
)

// Ref identifies one persisted record.
type Ref struct {
	Origin string
	Key    string
}

// Backend loads/saves one serialized record for a single reference.
type Backend interface {
	Load(ctx context.Context, ref Ref) (value []byte, ok bool, err error)
	Save(ctx context.Context, ref Ref, value []byte) error
}

// Deleter is implemented by backends that can remove records.
type Deleter interface {
	Delete(ctx context.Context, ref Ref) error
}

// Lister is implemented by backends that can enumerate the keys stored for an
// origin.
type Lister interface {
	List(ctx context.Context, origin string) ([]string, error)
}

// Change reports that the record behind Ref was modified outside this process.
type Change struct {
	Ref Ref
}

// Watcher streams external record changes until closed.
type Watcher interface {
	Changes() <-chan Change
	Errors() <-chan error
	Close() error
}

// NormalizeOrigin trims origin and falls back to DefaultOrigin.
func NormalizeOrigin(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return DefaultOrigin
	}
	return origin
}

// Normalize returns a copy of r with a trimmed key and a normalized origin.
func (r Ref) Normalize() Ref {
	return Ref{Origin: NormalizeOrigin(r.Origin), Key: strings.TrimSpace(r.Key)}
}

// Identifier returns the canonical `origin/key` storage key.
func (r Ref) Identifier() (string, error) {
	n := r.Normalize()
	if n.Key == "" {
		return "", ErrKeyRequired
	}
	if strings.Contains(n.Key, "/") {
		return "", fmt.Errorf("storage: key %q must not contain '/'", n.Key)
	}
	return n.Origin + "/" + n.Key, nil
}

// ParseIdentifier reverses Identifier. The key is everything after the last
// slash, so origins may themselves contain slashes (e.g. URLs).
func ParseIdentifier(id string) (Ref, error) {
	idx := strings.LastIndex(id, "/")
	if idx <= 0 || idx == len(id)-1 {
		return Ref{}, fmt.Errorf("storage: malformed identifier %q", id)
	}
	return Ref{Origin: id[:idx], Key: id[idx+1:]}, nil
}

func cloneBytes(src []byte) []byte {
	if src == nil {
		return nil
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out
}
