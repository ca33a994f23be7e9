// Package store provides SQLite-backed history of scenario runs.
//
// Each run is one row in runs; its trace is stored in events keyed by
// (run_id, seq).
//
// # Ordering
//
//   - Trace reads use ORDER BY seq ASC, the harness's logical clock
//   - Run listings use ORDER BY recorded_at DESC, id DESC
//
// # Identifiers
//
// Run IDs are UUIDv7 by default, so they sort by creation time. Tests
// substitute a deterministic generator with WithIDGenerator.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
