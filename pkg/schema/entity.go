package schema

import (
	"fmt"

	"github.com/google/uuid"
)

// NewEntity returns an empty entity shell of the given kind.
func NewEntity(kind Kind, alias string) *Entity {
	return &Entity{
		Kind:            kind,
		Alias:           alias,
		Groupings:       make([]*Grouping, 0),
		Fields:          make([]*Field, 0),
		AllowedChildren: make([]StructureEntry, 0),
	}
}

// Reference returns a weak reference to this entity.
func (e *Entity) Reference() Reference {
	return Reference{Key: e.Key, Alias: e.Alias}
}

// FieldByKey returns the field with the given key, or nil.
func (e *Entity) FieldByKey(key uuid.UUID) *Field {
	if key == uuid.Nil {
		return nil
	}
	for _, f := range e.Fields {
		if f.Key == key {
			return f
		}
	}
	return nil
}

// FieldByAlias returns the field with the given alias, or nil.
func (e *Entity) FieldByAlias(alias string) *Field {
	for _, f := range e.Fields {
		if f.Alias == alias {
			return f
		}
	}
	return nil
}

// Grouping returns the grouping with the given name, or nil.
func (e *Entity) Grouping(name string) *Grouping {
	for _, g := range e.Groupings {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// FieldsInGroup returns the fields owned by the named grouping.
func (e *Entity) FieldsInGroup(name string) []*Field {
	var out []*Field
	for _, f := range e.Fields {
		if f.Group == name {
			out = append(out, f)
		}
	}
	return out
}

// NextGroupingSortOrder returns one past the highest grouping sort order.
func (e *Entity) NextGroupingSortOrder() int {
	next := 0
	for _, g := range e.Groupings {
		if g.SortOrder >= next {
			next = g.SortOrder + 1
		}
	}
	return next
}

// AddField appends a field. Aliases and keys must stay unique.
func (e *Entity) AddField(f *Field) error {
	if f.Alias == "" {
		return fmt.Errorf("field alias is required")
	}
	if e.FieldByAlias(f.Alias) != nil {
		return fmt.Errorf("field alias %q already exists on %s", f.Alias, e.Alias)
	}
	if f.Key != uuid.Nil && e.FieldByKey(f.Key) != nil {
		return fmt.Errorf("field key %s already exists on %s", f.Key, e.Alias)
	}
	if f.Group != "" && e.Grouping(f.Group) == nil {
		return fmt.Errorf("field %q references unknown grouping %q", f.Alias, f.Group)
	}
	e.Fields = append(e.Fields, f)
	return nil
}

// RemoveField deletes the field with the given alias. It reports whether a
// field was removed.
func (e *Entity) RemoveField(alias string) bool {
	for i, f := range e.Fields {
		if f.Alias == alias {
			e.Fields = append(e.Fields[:i], e.Fields[i+1:]...)
			return true
		}
	}
	return false
}

// AddGrouping creates a grouping, or returns the existing one with that name.
func (e *Entity) AddGrouping(name string, sortOrder int) *Grouping {
	if g := e.Grouping(name); g != nil {
		return g
	}
	g := &Grouping{Name: name, SortOrder: sortOrder}
	e.Groupings = append(e.Groupings, g)
	return g
}

// RemoveGrouping deletes the named grouping and ungroups any field still
// pointing at it. It returns the aliases of the ungrouped fields.
func (e *Entity) RemoveGrouping(name string) []string {
	idx := -1
	for i, g := range e.Groupings {
		if g.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	e.Groupings = append(e.Groupings[:idx], e.Groupings[idx+1:]...)

	var orphaned []string
	for _, f := range e.Fields {
		if f.Group == name {
			f.Group = ""
			orphaned = append(orphaned, f.Alias)
		}
	}
	return orphaned
}

// MoveField places the field into an existing grouping.
func (e *Entity) MoveField(alias, group string) error {
	f := e.FieldByAlias(alias)
	if f == nil {
		return fmt.Errorf("field %q not found on %s", alias, e.Alias)
	}
	if e.Grouping(group) == nil {
		return fmt.Errorf("grouping %q not found on %s", group, e.Alias)
	}
	f.Group = group
	return nil
}

// UngroupField detaches the field from its grouping without removing it.
func (e *Entity) UngroupField(alias string) error {
	f := e.FieldByAlias(alias)
	if f == nil {
		return fmt.Errorf("field %q not found on %s", alias, e.Alias)
	}
	f.Group = ""
	return nil
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	c := *e
	if e.Parent != nil {
		p := *e.Parent
		c.Parent = &p
	}
	c.Groupings = make([]*Grouping, len(e.Groupings))
	for i, g := range e.Groupings {
		gg := *g
		c.Groupings[i] = &gg
	}
	c.Fields = make([]*Field, len(e.Fields))
	for i, f := range e.Fields {
		ff := *f
		c.Fields[i] = &ff
	}
	c.AllowedChildren = append(make([]StructureEntry, 0, len(e.AllowedChildren)), e.AllowedChildren...)
	return &c
}

// Validate checks the structural invariants of the entity.
func (e *Entity) Validate() error {
	if err := e.Kind.Validate(); err != nil {
		return err
	}
	if e.Alias == "" {
		return fmt.Errorf("entity alias is required")
	}

	groups := make(map[string]bool, len(e.Groupings))
	for _, g := range e.Groupings {
		if groups[g.Name] {
			return fmt.Errorf("duplicate grouping %q on %s", g.Name, e.Alias)
		}
		groups[g.Name] = true
	}

	aliases := make(map[string]bool, len(e.Fields))
	keys := make(map[uuid.UUID]bool, len(e.Fields))
	for _, f := range e.Fields {
		if aliases[f.Alias] {
			return fmt.Errorf("duplicate field alias %q on %s", f.Alias, e.Alias)
		}
		aliases[f.Alias] = true
		if f.Key != uuid.Nil {
			if keys[f.Key] {
				return fmt.Errorf("duplicate field key %s on %s", f.Key, e.Alias)
			}
			keys[f.Key] = true
		}
		if f.Group != "" && !groups[f.Group] {
			return fmt.Errorf("field %q references unknown grouping %q", f.Alias, f.Group)
		}
	}

	return nil
}
