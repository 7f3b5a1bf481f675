// Package store provides the SQLite backing for the provenance graph.
//
// The schema holds seven entity tables (nodes, groups_, users,
// computers, comments, logs, authinfos) and two edge tables (links,
// group_nodes). Writes are idempotent: every insert runs ON CONFLICT
// DO NOTHING against its natural key and returns the surviving row id,
// so imports can be replayed safely. Graph imports batch through a
// single transaction and roll back as a unit.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//   - case_sensitive_like=ON: the like operator matches exactly;
//     case-insensitive matching goes through ilike
//
// Pragmas are per-connection, so the pool is pinned to a single
// connection. That also serializes writers, which SQLite requires
// anyway.
//
// Compiled query statements run through an LRU of prepared statements
// keyed by SQL text; eviction closes the statement.
package store
