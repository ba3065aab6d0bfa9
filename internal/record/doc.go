// Package record provides SQLite-backed storage for simulation runs.
//
// The store is an append-only log with:
//   - Runs: one row per run, keyed by its UUIDv7 id
//   - Samples: every sampled property of every tick, as canonical JSON
//
// # Ordering
//
// Runs are ordered by seq, an autoincrement logical clock, never by
// timestamps. Samples are ordered by tick, then by their position in the
// scene's sample list. Reading a run back yields the ticks in the order they
// were produced.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package record
