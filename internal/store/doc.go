// Package store provides the durable key-value backends behind the
// seen-marker store.
//
// # Architecture
//
// Every backend implements KV:
//
//   - SQLiteStore: single-file local database (default)
//   - RedisStore: shared server, for users running several clients
//   - MockStore: in-memory map with injectable failures, for tests
//
// Values are opaque bytes. The seen package stores one JSON object per
// namespace, so the whole durable state of a client is two keys.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode and a single open connection:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Database file locations:
//
//   - Default: state.db beside the config file (storage.path)
//   - Testing: t.TempDir() or :memory:
//
// # Error Handling
//
//   - ErrNotFound: key has never been written
//   - ErrClosed: store was closed (MockStore)
//
// Backend errors are wrapped with the key for context. Callers in this module
// treat every storage error as non-fatal.
package store
