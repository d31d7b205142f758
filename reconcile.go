package store

import "github.com/ssadedin/go-statestore/layering"

// Reconciler combines a rehydrated slice with the caller's initial value for
// the same key. hasInitial is false when the caller supplied none.
type Reconciler func(key string, persisted, initial any, hasInitial bool) any

// ReplaceSlices keeps the persisted value and discards the initial one.
func ReplaceSlices(_ string, persisted, _ any, _ bool) any {
	return persisted
}

// MergeSlices deep-merges the persisted value over the initial value. Fields
// only present in the initial value survive; mismatched shapes resolve to the
// persisted value.
func MergeSlices(_ string, persisted, initial any, hasInitial bool) any {
	if !hasInitial || initial == nil {
		return persisted
	}
	return layering.MergeLayers[any](persisted, initial)
}
