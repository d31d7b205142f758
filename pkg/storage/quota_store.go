package storage

import (
	"context"
	"fmt"
	"sync"
)

// QuotaStore enforces a byte budget over another backend, the way browser
// local storage rejects writes once an origin's quota is used up. Usage is
// tracked for records written or read through this wrapper.
type QuotaStore struct {
	next  Backend
	limit int

	mu    sync.Mutex
	sizes map[string]int
	used  int
}

// NewQuotaStore wraps next with a budget of limit bytes across all records.
func NewQuotaStore(next Backend, limit int) *QuotaStore {
	return &QuotaStore{next: next, limit: limit, sizes: map[string]int{}}
}

func (q *QuotaStore) Load(ctx context.Context, ref Ref) ([]byte, bool, error) {
	value, ok, err := q.next.Load(ctx, ref)
	if err != nil || !ok {
		return value, ok, err
	}
	if id, idErr := ref.Identifier(); idErr == nil {
		q.mu.Lock()
		q.track(id, len(value))
		q.mu.Unlock()
	}
	return value, ok, nil
}

func (q *QuotaStore) Save(ctx context.Context, ref Ref, value []byte) error {
	id, err := ref.Identifier()
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	projected := q.used - q.sizes[id] + len(value)
	if projected > q.limit {
		return fmt.Errorf("%w: %s needs %d bytes, %d of %d in use", ErrQuotaExceeded, id, len(value), q.used, q.limit)
	}
	if err := q.next.Save(ctx, ref, value); err != nil {
		return err
	}
	q.track(id, len(value))
	return nil
}

// Used reports the bytes currently accounted for.
func (q *QuotaStore) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

func (q *QuotaStore) track(id string, size int) {
	q.used += size - q.sizes[id]
	q.sizes[id] = size
}

// Delete forwards to the wrapped backend when it supports deletion and
// releases the record's budget.
func (q *QuotaStore) Delete(ctx context.Context, ref Ref) error {
	deleter, ok := q.next.(Deleter)
	if !ok {
		return fmt.Errorf("storage: %T does not support delete", q.next)
	}
	id, err := ref.Identifier()
	if err != nil {
		return err
	}
	if err := deleter.Delete(ctx, ref); err != nil {
		return err
	}
	q.mu.Lock()
	q.used -= q.sizes[id]
	delete(q.sizes, id)
	q.mu.Unlock()
	return nil
}

// List forwards to the wrapped backend when it supports listing.
func (q *QuotaStore) List(ctx context.Context, origin string) ([]string, error) {
	lister, ok := q.next.(Lister)
	if !ok {
		return nil, fmt.Errorf("storage: %T does not support list", q.next)
	}
	return lister.List(ctx, origin)
}
