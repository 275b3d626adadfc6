package engine

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/schema"
)

// serializeStructure emits the allowed children that still resolve, ordered
// by alias so the output does not depend on creation order.
func (s *Serializer) serializeStructure(ctx context.Context, entity *schema.Entity) *document.StructureSection {
	type allowed struct {
		alias string
		key   string
	}

	resolved := make([]allowed, 0, len(entity.AllowedChildren))
	seen := make(map[string]bool, len(entity.AllowedChildren))
	for _, entry := range entity.AllowedChildren {
		child, ok := s.resolver.ResolveRef(ctx, entity.Kind, entry.Ref)
		if !ok {
			s.logger.WithField("entity", entity.Alias).
				WithField("child", entry.Ref.Alias).
				Debug("dropping unresolved allowed child from export")
			continue
		}
		if seen[child.Alias] {
			continue
		}
		seen[child.Alias] = true
		resolved = append(resolved, allowed{alias: child.Alias, key: keyString(child.Key)})
	}

	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].alias < resolved[j].alias
	})

	section := &document.StructureSection{Entries: make([]document.StructureRef, 0, len(resolved))}
	for _, a := range resolved {
		section.Entries = append(section.Entries, document.StructureRef{Alias: a.alias, Key: a.key})
	}
	return section
}

// structureBinding captures the document's structure as unresolved targets.
// Unparseable keys are dropped so the alias fallback applies.
func structureBinding(entity *schema.Entity, kind schema.Kind, section *document.StructureSection) Binding {
	targets := make([]schema.Reference, 0, len(section.Entries))
	for _, e := range section.Entries {
		key, _ := parseKey(e.Key)
		targets = append(targets, schema.Reference{Key: key, Alias: e.Alias})
	}
	return Binding{
		Source:  entity.Reference(),
		Kind:    kind,
		Slot:    SlotAllowedChildren,
		Targets: targets,
	}
}

// bindAllowedChildren resolves every target, drops the ones that do not
// resolve and replaces the entity's allowed children with the rest. Positions
// count resolved entries only.
func (s *Serializer) bindAllowedChildren(ctx context.Context, entity *schema.Entity, b Binding, res *Result) {
	entries := make([]schema.StructureEntry, 0, len(b.Targets))
	for _, target := range b.Targets {
		if target.IsZero() {
			res.issue(NewUnresolvedReferenceError("allowed child has neither key nor alias", nil).
				WithOperation("structure").
				WithCode(ErrCodeNotFound))
			continue
		}

		child, ok := s.resolver.ResolveRef(ctx, b.Kind, target)
		if !ok {
			res.issue(NewUnresolvedReferenceError("allowed child not found", nil).
				WithOperation("structure").
				WithCode(ErrCodeNotFound).
				WithDetail("key", keyString(target.Key)).
				WithDetail("alias", target.Alias))
			s.logger.WithField("entity", entity.Alias).
				WithField("child", target.Alias).
				Debug("dropping unresolved allowed child")
			continue
		}

		entries = append(entries, schema.StructureEntry{
			Ref:         child.Reference(),
			SortOrder:   len(entries),
			DisplayName: child.Name,
		})
	}

	if sameChildren(entity.AllowedChildren, entries) {
		entity.AllowedChildren = entries
		return
	}

	res.record("allowedChildren", aliasesOf(entity.AllowedChildren), aliasesOf(entries), ChangeActionModify)
	entity.AllowedChildren = entries
}

// sameChildren reports whether a and b reference the same entities,
// ignoring order and cached names.
func sameChildren(a, b []schema.StructureEntry) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, x := range a {
		found := false
		for j, y := range b {
			if !used[j] && sameRef(x.Ref, y.Ref) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sameRef compares by key when both sides carry one, by alias otherwise.
func sameRef(a, b schema.Reference) bool {
	if a.Key != uuid.Nil && b.Key != uuid.Nil {
		return a.Key == b.Key
	}
	return a.Alias == b.Alias
}

func aliasesOf(entries []schema.StructureEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Ref.Alias
	}
	return out
}
