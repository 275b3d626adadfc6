// Package stores provides the live model that schemasync reconciles documents
// against, and the history of sync runs.
//
// SQLiteStore persists entities, their fields, groupings and allowed
// children, data type definitions, sync runs and per-entity sync items in
// SQLite (modernc.org/sqlite, no cgo). The schema is applied from embedded
// golang-migrate migrations. MemoryStore implements the same Store interface
// in process.
//
// Both stores satisfy engine.EntityLookup directly; DataTypes returns the
// engine.DataTypeLookup view. Lookups follow the engine convention of
// returning (nil, nil) when nothing matches.
package stores
