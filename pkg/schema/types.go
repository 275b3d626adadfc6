package schema

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind selects the namespace an entity lives in. Document types and media
// types never resolve against each other.
type Kind string

const (
	// KindDocumentType is the namespace of content (document) types.
	KindDocumentType Kind = "DocumentType"

	// KindMediaType is the namespace of media types.
	KindMediaType Kind = "MediaType"
)

// Validate checks if the kind is known.
func (k Kind) Validate() error {
	switch k {
	case KindDocumentType, KindMediaType:
		return nil
	default:
		return fmt.Errorf("invalid entity kind: %q", string(k))
	}
}

// String returns the kind name as used in documents.
func (k Kind) String() string {
	return string(k)
}

// ParseKind converts a document node name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Reference is a weak pointer to another entity. Key is authoritative when set;
// Alias is kept for display and as a rename-tolerant fallback.
type Reference struct {
	Key   uuid.UUID `json:"key"`
	Alias string    `json:"alias"`
}

// IsZero reports whether the reference points nowhere.
func (r Reference) IsZero() bool {
	return r.Key == uuid.Nil && r.Alias == ""
}

// Entity is one content-type-like structural definition.
type Entity struct {
	// ID is the host-local identifier assigned by the store. Zero until persisted.
	ID int64 `json:"id"`

	// Key is the stable identity. It survives renames and is never reassigned
	// once set.
	Key uuid.UUID `json:"key"`

	// Kind is the namespace this entity belongs to.
	Kind Kind `json:"kind"`

	// Alias is the human-editable secondary identity.
	Alias string `json:"alias"`

	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Thumbnail   string `json:"thumbnail"`
	Description string `json:"description"`

	// AllowAtRoot allows placing instances of this type at the tree root.
	AllowAtRoot bool `json:"allow_at_root"`

	// ListView renders children of this type as a list instead of a tree.
	ListView bool `json:"list_view"`

	// Parent is the inherited master type, if any.
	Parent *Reference `json:"parent,omitempty"`

	// Groupings are the display tabs. Names are unique.
	Groupings []*Grouping `json:"groupings"`

	// Fields are the property slots. Keys and aliases are unique.
	Fields []*Field `json:"fields"`

	// AllowedChildren lists the types that may be created below this one.
	AllowedChildren []StructureEntry `json:"allowed_children"`
}

// Grouping is a named, ordered bucket of fields.
type Grouping struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

// Field is a single named, typed data slot.
type Field struct {
	Key               uuid.UUID   `json:"key"`
	Alias             string      `json:"alias"`
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	Mandatory         bool        `json:"mandatory"`
	ValidationPattern string      `json:"validation_pattern"`
	SortOrder         int         `json:"sort_order"`
	DataType          DataTypeRef `json:"data_type"`

	// Group is the owning grouping name. Empty means ungrouped.
	Group string `json:"group"`
}

// DataTypeRef points at an externally resolved data type definition.
type DataTypeRef struct {
	// ID is the host-local data type identifier.
	ID int64 `json:"id"`

	// Key is the stable identity of the definition.
	Key uuid.UUID `json:"key"`

	// EditorAlias tags the property editor kind (e.g. "Umbraco.TextBox").
	EditorAlias string `json:"editor_alias"`
}

// DataTypeDefinition is a configured property editor instance.
type DataTypeDefinition struct {
	ID          int64     `json:"id"`
	Key         uuid.UUID `json:"key"`
	Name        string    `json:"name"`
	EditorAlias string    `json:"editor_alias"`
}

// Ref returns a reference to this definition suitable for a field.
func (d *DataTypeDefinition) Ref() DataTypeRef {
	return DataTypeRef{ID: d.ID, Key: d.Key, EditorAlias: d.EditorAlias}
}

// StructureEntry is an allowed-child relationship.
type StructureEntry struct {
	Ref         Reference `json:"ref"`
	SortOrder   int       `json:"sort_order"`
	DisplayName string    `json:"display_name"`
}
