// Package query is the filter language of the engine and its SQLite
// compiler.
//
// Callers describe a read as a Select over one of the six record tables.
// Every Select carries the caller's organization id and the compiler turns
// it into a mandatory tenant predicate; a Select without one is refused,
// so no statement compiled here can read across tenants.
//
// Compiled SQL is fully parameterized. Column names come only from the
// table whitelist in tables.go, never from caller input, and every query
// ends with a deterministic ORDER BY.
package query
