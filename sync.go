package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/ssadedin/go-statestore/pkg/activity"
	"github.com/ssadedin/go-statestore/pkg/storage"
)

// Sync applies changes made to persisted records by other writers until ctx
// is done or the watcher's change channel closes. Each change for a key in
// the store's key set and origin is reloaded and dispatched as a
// RehydrateAction. Unreadable records are logged and skipped.
func (s *Store) Sync(ctx context.Context, watcher storage.Watcher) error {
	if s.persister == nil {
		return ErrNotPersistent
	}
	changes := watcher.Changes()
	errs := watcher.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			s.persister.apply(change)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.persister.logger.Warn("storage watcher error", zap.Error(err))
		}
	}
}

func (p *persister) apply(change storage.Change) {
	ref := change.Ref.Normalize()
	if ref.Origin != p.origin {
		return
	}
	key, ok := p.keys.Lookup(ref.Key)
	if !ok {
		return
	}
	value, present, stage, err := p.load(key)
	if err != nil {
		p.warn("sync slice failed", ref.Key, stage, "", err)
		p.emit(activity.BuildRehydrateFailedEvent, ref.Key, stage, RehydrateActionType, key.Version(), err)
		return
	}
	action := RehydrateAction{Key: ref.Key, Value: value, Present: present}
	if _, err := p.store.Dispatch(action); err != nil {
		p.warn("sync dispatch failed", ref.Key, "", RehydrateActionType, err)
		return
	}
	p.logger.Debug("synced slice", zap.String("key", ref.Key), zap.Bool("present", present))
	p.emit(activity.BuildSyncedEvent, ref.Key, "", RehydrateActionType, key.Version(), nil)
}
