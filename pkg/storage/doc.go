// Package storage defines the synchronous string key-value contract the
// persisted cells write through, plus a few backends.
//
// Responsibilities:
//   - Adapter only gets, sets, and removes strings under string keys.
//   - Set may fail with ErrQuotaExceeded when the backend is full; callers
//     decide whether that is fatal (persisted cells treat it as best-effort).
//   - Keys are scoped per origin with Scoped, which uses Ref.Identifier as the
//     canonical "origin/key" form.
//
// Backends:
//
//	MemoryStore  in-process map, optional quota; tests and session-only use
//	FileStore    one JSON document on disk, atomic replace on every Set
//	SQLiteStore  kv table in a SQLite database (modernc.org/sqlite)
package storage
