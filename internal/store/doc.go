// Package store provides SQLite-backed history of convention applications.
//
// Each plugin configured by a project run produces one application record:
// the software type applied, the outcome, the rendered problems and a
// snapshot of the realized model.
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), never timestamps. Queries
// order by seq ASC, id ASC COLLATE BINARY so history reads are stable.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Snapshots are stored as RFC 8785 canonical JSON via ir.MarshalCanonical.
package store
