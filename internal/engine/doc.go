// Package engine implements the universal CRUD/query façade over the six
// HERA record stores.
//
// Every request names a store, an operation and an organization. The
// engine runs them through one pipeline:
//
//  1. The store and operation are resolved against the handler registry.
//  2. Tenant scope is resolved: the organization must exist and be active,
//     and no payload may name another organization.
//  3. Smart codes are governed before anything is written. The level is
//     the highest of the engine default, the catalog rule of the record
//     type and the level the request asks for.
//  4. Writes run in one SQLite transaction; bulk calls run every item in
//     the same transaction (all_or_none).
//  5. Once committed, governance cache entries for the smart codes that
//     were touched are invalidated.
//
// The result is always a *Result envelope; errors carry a model.ErrorKind.
//
// Transactions follow the lifecycle state machine: headers and lines are
// editable only while draft, status moves only through the transition
// operation, and hard delete is limited to draft and cancelled
// transactions.
//
// Relationships are never removed. Delete closes the edge, and a
// transition on an exclusive slot closes the old edge and opens the new one
// so history stays queryable.
package engine
