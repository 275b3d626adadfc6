// Package schema defines the live model of content-type-like entities:
// entities, their fields, display groupings and allowed-child structure.
//
// Entities are plain mutable values. The engine package reconciles them
// against imported documents in place; the stores package persists them.
// Nothing in this package performs I/O.
//
// # Identity
//
// Every entity and field carries a Key (uuid) that never changes once set
// and an Alias that users may rename. Lookups always try the key first and
// fall back to the alias only when the key is unknown.
//
// # Invariants
//
//   - Field aliases and keys are unique within an entity
//   - Grouping names are unique within an entity
//   - A field's Group, when set, names a grouping present on the entity
//
// Entity.Validate checks all three.
package schema
