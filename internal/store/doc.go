// Package store persists harness runs in SQLite.
//
// A run is one execution of a scenario (render, simulate or test) and owns
// the instructions each render produced, the callback firings and the
// timeline ops that failed.
//
// # Ordering
//
// Every table carries a seq column and every query orders by it. Runs get
// the next seq when written; rows within a run keep the order the harness
// produced them in. Timestamps are never stored, so the same scenario yields
// the same rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Cascade deletes from runs
package store
