package mappers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/schemasync/schemasync/pkg/engine"
	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/telemetry"
)

// nestedTypeAliasKey names the item property holding the item's type alias.
const nestedTypeAliasKey = "ncContentTypeAlias"

// NestedContentEditors are the editor aliases served by NestedContent.
var NestedContentEditors = []string{
	"Umbraco.NestedContent",
	"Our.Umbraco.NestedContent",
}

type direction int

const (
	directionExport direction = iota
	directionImport
)

// NestedContent maps values that hold a JSON array of nested items. Each item
// names its document type; every property of that type (including inherited
// ones) is mapped through the registry by its own editor alias.
type NestedContent struct {
	registry  *Registry
	resolver  *engine.Resolver
	dataTypes engine.DataTypeLookup
	logger    *telemetry.Logger
}

// NewNestedContent creates a nested content mapper that dispatches item
// properties through registry.
func NewNestedContent(registry *Registry, entities engine.EntityLookup, dataTypes engine.DataTypeLookup) *NestedContent {
	logger := registry.logger.WithField("mapper", "nested_content")
	return &NestedContent{
		registry:  registry,
		resolver:  engine.NewResolver(entities, logger),
		dataTypes: dataTypes,
		logger:    logger,
	}
}

// ExportValue implements Mapper.
func (n *NestedContent) ExportValue(ctx context.Context, _ int64, value string) (string, error) {
	return n.mapValue(ctx, value, directionExport)
}

// ImportValue implements Mapper.
func (n *NestedContent) ImportValue(ctx context.Context, _ int64, value string) (string, error) {
	return n.mapValue(ctx, value, directionImport)
}

func (n *NestedContent) mapValue(ctx context.Context, value string, dir direction) (string, error) {
	if strings.TrimSpace(value) == "" {
		return value, nil
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(value), &items); err != nil {
		return "", fmt.Errorf("nested content value is not a JSON array of objects: %w", err)
	}
	if len(items) == 0 {
		return value, nil
	}

	for i, item := range items {
		alias, ok := textOf(item[nestedTypeAliasKey])
		if !ok || alias == "" {
			continue
		}

		fields := n.compositionFields(ctx, alias)
		if fields == nil {
			n.logger.WithField("type", alias).Debug("nested item type not found, leaving item as is")
			continue
		}

		for _, f := range fields {
			raw, present := item[f.Alias]
			if !present || isNull(raw) {
				continue
			}
			def := n.dataType(ctx, f.DataType)
			if def == nil {
				continue
			}
			m, ok := n.registry.Get(def.EditorAlias)
			if !ok {
				continue
			}

			in, quoted := textOf(raw)
			var (
				out string
				err error
			)
			if dir == directionExport {
				out, err = m.ExportValue(ctx, def.ID, in)
			} else {
				out, err = m.ImportValue(ctx, def.ID, in)
			}
			if err != nil {
				return "", fmt.Errorf("nested item %d property %s: %w", i, f.Alias, err)
			}

			encoded, err := encodeValue(out, quoted)
			if err != nil {
				return "", fmt.Errorf("nested item %d property %s: %w", i, f.Alias, err)
			}
			item[f.Alias] = encoded
		}
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode nested content: %w", err)
	}
	return string(data), nil
}

// compositionFields returns the fields of the named document type followed by
// the fields it inherits from its masters. It returns nil when the type does
// not resolve.
func (n *NestedContent) compositionFields(ctx context.Context, alias string) []*schema.Field {
	entity, ok := n.resolver.Resolve(ctx, schema.KindDocumentType, uuid.Nil, alias)
	if !ok {
		return nil
	}

	fields := make([]*schema.Field, 0, len(entity.Fields))
	seenField := make(map[string]bool)
	seenType := make(map[string]bool)

	for entity != nil && !seenType[entity.Alias] {
		seenType[entity.Alias] = true
		for _, f := range entity.Fields {
			if seenField[f.Alias] {
				continue
			}
			seenField[f.Alias] = true
			fields = append(fields, f)
		}

		if entity.Parent == nil {
			break
		}
		parent, ok := n.resolver.ResolveRef(ctx, schema.KindDocumentType, *entity.Parent)
		if !ok {
			break
		}
		entity = parent
	}
	return fields
}

func (n *NestedContent) dataType(ctx context.Context, ref schema.DataTypeRef) *schema.DataTypeDefinition {
	if n.dataTypes == nil {
		return nil
	}

	var (
		def *schema.DataTypeDefinition
		err error
	)
	switch {
	case ref.ID != 0:
		def, err = n.dataTypes.ByID(ctx, ref.ID)
	case ref.Key != uuid.Nil:
		def, err = n.dataTypes.ByKey(ctx, ref.Key)
	default:
		return nil
	}
	if err != nil {
		n.logger.WithError(err).Debug("data type lookup failed")
		return nil
	}
	return def
}

// textOf returns the text of a JSON value. Strings are unquoted; anything
// else is returned as raw JSON. The bool reports whether raw was a string.
func textOf(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
	}
	return string(raw), false
}

// encodeValue stores a mapped value. Values that were JSON structures stay
// structures when the mapper returned valid JSON; everything else is stored
// as a string.
func encodeValue(out string, quoted bool) (json.RawMessage, error) {
	if !quoted && json.Valid([]byte(out)) {
		return json.RawMessage(out), nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
