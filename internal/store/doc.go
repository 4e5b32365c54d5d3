// Package store provides SQLite-backed persistence for orders, their line
// items and the log of status pushes.
//
// A Store is both the guard's snapshot Source and its Pusher:
//   - Get reads an order with its items
//   - Push records a status write and applies it to the order row
//
// # Critical Patterns
//
// Push idempotency:
//   - status_pushes.id is a content-addressed push ID
//   - INSERT ... ON CONFLICT(id) DO NOTHING; a replayed push changes nothing
//
// Logical ordering:
//   - Pushes carry the guard's sequence number, never a timestamp
//   - A push older than the order's status_seq is logged but not applied
//   - Reads order by seq ASC, id ASC COLLATE BINARY
//
// Money:
//   - Prices and totals are decimal strings, never floats
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
