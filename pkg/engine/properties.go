package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/schema"
)

// serializeProperties emits one descriptor per field, ordered by name.
func (s *Serializer) serializeProperties(ctx context.Context, entity *schema.Entity) *document.PropertySection {
	fields := make([]*schema.Field, len(entity.Fields))
	copy(fields, entity.Fields)
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Name != fields[j].Name {
			return fields[i].Name < fields[j].Name
		}
		return fields[i].Alias < fields[j].Alias
	})

	section := &document.PropertySection{Properties: make([]document.Property, 0, len(fields))}
	for _, f := range fields {
		dt := s.dataTypeRef(ctx, f.DataType)
		section.Properties = append(section.Properties, document.Property{
			Key:         keyString(f.Key),
			Name:        f.Name,
			Alias:       f.Alias,
			Definition:  keyString(dt.Key),
			Type:        dt.EditorAlias,
			Mandatory:   document.BoolToken(f.Mandatory),
			Validation:  f.ValidationPattern,
			Description: f.Description,
			SortOrder:   document.IntToken(f.SortOrder),
			Tab:         f.Group,
		})
	}
	return section
}

// dataTypeRef fills in the key and editor alias from the data type lookup
// when the field only carries the host-local id.
func (s *Serializer) dataTypeRef(ctx context.Context, ref schema.DataTypeRef) schema.DataTypeRef {
	if ref.Key != uuid.Nil && ref.EditorAlias != "" {
		return ref
	}
	if ref.ID == 0 || s.dataTypes == nil {
		return ref
	}
	def, err := s.dataTypes.ByID(ctx, ref.ID)
	if err != nil || def == nil {
		return ref
	}
	if ref.Key == uuid.Nil {
		ref.Key = def.Key
	}
	if ref.EditorAlias == "" {
		ref.EditorAlias = def.EditorAlias
	}
	return ref
}

type fieldMove struct {
	alias string
	group string
}

// reconcileFields walks the existing fields, matches each to a descriptor by
// key then alias, and updates it in place. Fields without a descriptor are
// removed. Group changes are queued during the walk and applied afterwards:
// moves, then removals, then ungroups. When the document has a Tabs section,
// a descriptor naming a tab it does not list leaves the field's group alone.
func (s *Serializer) reconcileFields(ctx context.Context, entity *schema.Entity, doc *document.Document, res *Result) {
	props := doc.GenericProperties.Properties

	byKey := make(map[uuid.UUID][]int, len(props))
	byAlias := make(map[string][]int, len(props))
	for i, p := range props {
		if k, ok := parseKey(p.Key); ok {
			byKey[k] = append(byKey[k], i)
		}
		byAlias[p.Alias] = append(byAlias[p.Alias], i)
	}

	claimed := make(map[int]string, len(props))
	matches := make(map[*schema.Field]int, len(entity.Fields))

	for _, f := range entity.Fields {
		if f.Key == uuid.Nil {
			continue
		}
		idx := byKey[f.Key]
		if len(idx) == 0 {
			continue
		}
		if len(idx) > 1 {
			res.issue(conflict(f.Alias, "key", f.Key.String(), len(idx)))
		}
		matches[f] = idx[0]
		claimed[idx[0]] = f.Alias
	}

	for _, f := range entity.Fields {
		if _, ok := matches[f]; ok {
			continue
		}
		idx := byAlias[f.Alias]
		if len(idx) == 0 {
			continue
		}
		if len(idx) > 1 {
			res.issue(conflict(f.Alias, "alias", f.Alias, len(idx)))
		}
		if owner, taken := claimed[idx[0]]; taken {
			res.issue(NewIdentityConflictError(
				fmt.Sprintf("descriptor %q already matched field %q", props[idx[0]].Alias, owner), nil).
				WithOperation(fieldPath(f.Alias)).
				WithCode(ErrCodeDuplicateMatch))
			continue
		}
		matches[f] = idx[0]
		claimed[idx[0]] = f.Alias
	}

	var (
		moves    []fieldMove
		removals []string
		ungroups []string
	)

	for _, f := range entity.Fields {
		i, ok := matches[f]
		if !ok {
			removals = append(removals, f.Alias)
			continue
		}
		p := props[i]
		s.updateField(ctx, entity, f, p, res)

		if p.Tab != "" && doc.Tabs != nil {
			if _, listed := doc.Tab(p.Tab); !listed {
				res.issue(NewMalformedDocumentError(
					fmt.Sprintf("tab %q is not listed in Tabs", p.Tab), nil).
					WithOperation(fieldPath(f.Alias) + ".group").
					WithCode(ErrCodeUnknownTab))
				continue
			}
		}

		switch {
		case p.Tab != "" && f.Group != p.Tab:
			moves = append(moves, fieldMove{alias: f.Alias, group: p.Tab})
		case p.Tab == "" && f.Group != "":
			ungroups = append(ungroups, f.Alias)
		}
	}

	for _, m := range moves {
		s.applyMove(entity, doc, m, res)
	}

	for _, alias := range removals {
		if entity.RemoveField(alias) {
			res.record(fieldPath(alias), alias, nil, ChangeActionRemove)
			s.logger.WithField("entity", entity.Alias).WithField("field", alias).Debug("removed field")
		}
	}

	for _, alias := range ungroups {
		f := entity.FieldByAlias(alias)
		if f == nil || f.Group == "" {
			continue
		}
		before := f.Group
		if err := entity.UngroupField(alias); err == nil {
			res.record(fieldPath(alias)+".group", before, "", ChangeActionModify)
		}
	}
}

func (s *Serializer) updateField(ctx context.Context, entity *schema.Entity, f *schema.Field, p document.Property, res *Result) {
	path := fieldPath(f.Alias)

	if key, ok := parseKey(p.Key); ok && key != f.Key {
		if other := entity.FieldByKey(key); other != nil && other != f {
			res.issue(NewIdentityConflictError(
				fmt.Sprintf("key %s already belongs to field %q", key, other.Alias), nil).
				WithOperation(path + ".key").
				WithCode(ErrCodeDuplicateMatch))
		} else {
			res.record(path+".key", keyString(f.Key), key.String(), ChangeActionModify)
			f.Key = key
		}
	}

	setString(res, path+".name", &f.Name, p.Name)
	setString(res, path+".description", &f.Description, p.Description)
	setBool(res, path+".mandatory", &f.Mandatory, p.Mandatory)
	setString(res, path+".validation", &f.ValidationPattern, p.Validation)
	setInt(res, path+".sortOrder", &f.SortOrder, p.SortOrder)

	s.updateDataType(ctx, f, p, res)
}

// updateDataType rebinds the field when the descriptor names a different
// data type definition.
func (s *Serializer) updateDataType(ctx context.Context, f *schema.Field, p document.Property, res *Result) {
	key, ok := parseKey(p.Definition)
	if !ok || s.dataTypes == nil {
		return
	}
	current := s.dataTypeRef(ctx, f.DataType)
	if key == current.Key {
		return
	}

	path := fieldPath(f.Alias) + ".dataType"
	def, err := s.dataTypes.ByKey(ctx, key)
	if err != nil || def == nil {
		e := NewUnresolvedReferenceError("data type definition not found", err).
			WithOperation(path).
			WithCode(ErrCodeNotFound).
			WithDetail("definition", p.Definition)
		res.issue(e)
		return
	}

	res.record(path, keyString(current.Key), def.Key.String(), ChangeActionModify)
	f.DataType = def.Ref()
}

// applyMove places a field into its target grouping, creating the grouping
// when it does not exist. A new grouping takes its sort order from the
// document's tab of the same name, or sorts last.
func (s *Serializer) applyMove(entity *schema.Entity, doc *document.Document, m fieldMove, res *Result) {
	if entity.Grouping(m.group) == nil {
		order := entity.NextGroupingSortOrder()
		if tab, ok := doc.Tab(m.group); ok {
			if n, err := tab.SortOrder.Int(); err == nil {
				order = n
			}
		}
		entity.AddGrouping(m.group, order)
		res.record(groupingPath(m.group), nil, order, ChangeActionAdd)
	}

	f := entity.FieldByAlias(m.alias)
	if f == nil {
		return
	}
	before := f.Group
	if err := entity.MoveField(m.alias, m.group); err != nil {
		res.issue(NewMalformedDocumentError("failed to move field", err).WithOperation(fieldPath(m.alias) + ".group"))
		return
	}
	res.record(fieldPath(m.alias)+".group", before, m.group, ChangeActionModify)
}

func conflict(field, by, value string, n int) *SyncError {
	return NewIdentityConflictError(
		fmt.Sprintf("%d descriptors match field %q by %s", n, field, by), nil).
		WithOperation(fieldPath(field)).
		WithCode(ErrCodeDuplicateMatch).
		WithDetail(by, value)
}

func fieldPath(alias string) string {
	return "fields[" + alias + "]"
}

func groupingPath(name string) string {
	return "groupings[" + name + "]"
}
