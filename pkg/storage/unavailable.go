package storage

import (
	"context"
	"fmt"
)

// Unavailable is a Backend whose every call fails, matching storage that is
// disabled or blocked in a restricted context.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Load(context.Context, Ref) ([]byte, bool, error) {
	return nil, false, u.err()
}

func (u Unavailable) Save(context.Context, Ref, []byte) error {
	return u.err()
}

func (u Unavailable) err() error {
	if u.Reason == "" {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}
