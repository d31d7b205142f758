// Package storage defines the durable key/value contract the state store
// persists slices through, plus the backends shipped with it.
//
// Responsibilities:
//   - Backend only loads/saves one serialized record for one Ref.
//   - Records are opaque bytes; encoding and versioning live in pkg/persist.
//   - Deleter and Lister are optional capabilities used by tooling (statectl);
//     the store itself never deletes records.
//
// Deterministic keys:
//
//	Ref.Identifier() returns `origin/key`, with origin defaulting to `default`.
//	Origins play the role of the browser origin that scopes local storage, so two
//	applications sharing one backend do not see each other's slices.
//
// Backends:
//
//	MemoryStore   in-process map, for tests and ephemeral sessions
//	FileStore     one JSON file per record under <dir>/<origin>/, with Watch
//	SQLiteStore   single table keyed by (origin, key), modernc.org/sqlite driver
//	QuotaStore    wraps another backend with a byte budget
//	Unavailable   always fails, models disabled or restricted storage
package storage
