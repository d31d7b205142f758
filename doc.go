// Package store is a reducer-driven state container whose chosen top-level
// slices survive restarts.
//
// New builds an in-memory store. Configure additionally rehydrates every key
// of a persist.KeySet from a storage.Backend before the store exists, then
// writes each of those slices back after every successful dispatch:
//
//	keys := persist.MustKeySet(persist.Untyped("cart"))
//	s, err := store.Configure(reducer, nil,
//		store.WithKeySet(keys),
//		store.WithBackend(storage.NewMemoryStore()),
//	)
//
// Storage failures never reach Dispatch callers. They are logged at warn level
// and, when hooks are configured, emitted as activity events. Rehydration
// reports where each slice came from.
//
// Selectors evaluate expressions against the current state with expr by
// default, cel-go on request, or goja when built with the js_eval tag.
package store
