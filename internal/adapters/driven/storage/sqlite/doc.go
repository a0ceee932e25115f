// Package sqlite provides the default SQLite-based implementation of the
// LogStore and SchedulerStore ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Both stores share a single
// database connection:
//
//   - LogStore: Log records and their pages
//   - SchedulerStore: Background task state and history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.chatlogs/data/chatlogs.db
//
// # Thread Safety
//
// All operations are thread-safe. Readers use WAL snapshots; writers are
// serialised so create-if-absent never observes a half-written log.
package sqlite
