// Package store provides SQLite-backed durable storage for the universal
// data model.
//
// Six generic tables hold every business object:
//   - organizations: the tenant boundary
//   - entities: polymorphic business objects
//   - dynamic_data: typed per-entity fields, one value column populated
//   - relationships: typed directed edges between entities
//   - transactions: business event headers
//   - transaction_lines: itemized detail of a transaction
//
// # Tenant Scope
//
// Every method except the organization lookups takes the caller's
// organization id and every statement filters on it. Dynamic queries go
// through internal/query, which refuses a select without a tenant.
//
// # Uniqueness In The Database
//
// Business keys and the exclusive relationship slot are guarded by partial
// unique indexes. Constraint failures are translated into *model.Error of
// kind conflict, not_found or validation; callers never see raw driver
// errors for those cases.
//
// # Deterministic Ordering
//
// Queries that return many rows order by an explicit key and end with
// rowid ASC, so results are stable across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - _txlock=immediate: Explicit transactions take the write lock up front
//
// Timestamps are fixed-width UTC text (model.TimeLayout) and amounts are
// decimal text, so neither loses precision on the way through SQLite.
package store
