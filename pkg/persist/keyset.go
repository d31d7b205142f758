package persist

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrKeyNameRequired indicates a key without a name.
	ErrKeyNameRequired = errors.New("persist: key name must be provided")
	// ErrDuplicateKey indicates the same slice name was registered twice.
	ErrDuplicateKey = errors.New("persist: key names must be unique")
	// ErrInvalidKeyName indicates a name storage refs cannot address.
	ErrInvalidKeyName = errors.New("persist: key name must not contain '/'")
)

// KeySet is the fixed, ordered set of persisted slices. It cannot be modified
// after construction.
type KeySet struct {
	keys  []Key
	index map[string]int
}

// NewKeySet validates keys and keeps them in the order given.
func NewKeySet(keys ...Key) (*KeySet, error) {
	set := &KeySet{
		keys:  make([]Key, 0, len(keys)),
		index: make(map[string]int, len(keys)),
	}
	for _, key := range keys {
		if key == nil || key.Name() == "" {
			return nil, ErrKeyNameRequired
		}
		if strings.Contains(key.Name(), "/") {
			return nil, fmt.Errorf("%w: %s", ErrInvalidKeyName, key.Name())
		}
		if _, ok := set.index[key.Name()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, key.Name())
		}
		set.index[key.Name()] = len(set.keys)
		set.keys = append(set.keys, key)
	}
	return set, nil
}

// Names builds a KeySet of Untyped keys.
func Names(names ...string) (*KeySet, error) {
	keys := make([]Key, len(names))
	for i, name := range names {
		keys[i] = Untyped(name)
	}
	return NewKeySet(keys...)
}

// MustKeySet is NewKeySet for package-level declarations; it panics on error.
func MustKeySet(keys ...Key) *KeySet {
	set, err := NewKeySet(keys...)
	if err != nil {
		panic(err)
	}
	return set
}

// Keys returns the keys in registration order. The returned slice is a copy.
func (s *KeySet) Keys() []Key {
	if s == nil {
		return nil
	}
	return append([]Key(nil), s.keys...)
}

// Names returns the slice names in registration order.
func (s *KeySet) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.keys))
	for i, key := range s.keys {
		names[i] = key.Name()
	}
	return names
}

func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Lookup returns the key registered under name.
func (s *KeySet) Lookup(name string) (Key, bool) {
	if s == nil {
		return nil, false
	}
	idx, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.keys[idx], true
}

func (s *KeySet) Contains(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}
