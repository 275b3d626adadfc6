// Package engine reconciles schema entities against their textual documents.
//
// # Overview
//
// A Serializer turns a live entity into a document and back. Export is a pure
// read: the same entity always renders the same document. Import is a
// reconciliation that writes only what differs, so importing an unchanged
// document reports ChangeNoChange.
//
// Import runs in two passes. The first pass writes everything local to the
// entity (info scalars, fields, groupings) and collects the cross-entity
// references as Bindings. The second pass resolves those bindings once every
// entity of the batch exists:
//
//	res := s.Deserialize(ctx, entity, doc, engine.ModeFirstPassOnly)
//	// ... first pass over the rest of the batch ...
//	second := s.SecondPass(ctx, entity, doc)
//
// ModeSinglePass runs both passes in one call.
//
// # Identity
//
// Entities, allowed children and masters are resolved by key first and by
// alias only when the key lookup misses. Fields are matched the same way
// within their entity. A reference that resolves to nothing is dropped and
// reported as an UnresolvedReference issue; it never fails the entity.
//
// # Results
//
// Every call returns a Result with the outcome (NoChange, Updated, Created or
// Failed), the list of Changes written and the non-fatal Issues found. Only a
// missing entity, a document without Info or alias, or a kind mismatch yields
// ChangeFailed.
//
// # Ordering
//
// BuildImportOrder sorts a batch of documents so masters are processed
// before the entities that inherit from them and rejects master cycles.
package engine
