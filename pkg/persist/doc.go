// Package persist describes which top-level state slices survive a reload and
// how each one is serialized.
//
// A KeySet is the fixed, ordered list of persisted slice names. Every Key owns
// its codec: Slice[T] checks on write that the slice holds a T and decodes
// records straight back into T, while Untyped round-trips arbitrary JSON.
//
// Records are written as a versioned envelope:
//
//	{"v": 2, "data": <slice JSON>}
//
// A record whose version is newer than the key's, or older without a registered
// migration path, is reported as ErrVersion and treated as absent by the store.
// Bare JSON written before envelopes existed is read as version 0.
package persist
