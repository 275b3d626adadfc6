package syncer

import (
	"context"

	"github.com/google/uuid"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/engine"
	"github.com/schemasync/schemasync/pkg/schema"
)

// Scaffold adds to entity the groupings and fields that doc declares but the
// entity lacks, so that reconciliation can fill them in. The reconciler
// itself only updates, moves and removes.
//
// A descriptor is scaffolded only when neither its key nor its alias matches
// an existing field. New fields start ungrouped with the descriptor's key,
// alias and data type; everything else is left to reconciliation. The
// returned changes describe what was added.
func Scaffold(ctx context.Context, entity *schema.Entity, doc *document.Document, dataTypes engine.DataTypeLookup) []engine.Change {
	if entity == nil || doc == nil {
		return nil
	}

	var changes []engine.Change

	if doc.Tabs != nil {
		for _, tab := range doc.Tabs.Tabs {
			if tab.Caption == "" || entity.Grouping(tab.Caption) != nil {
				continue
			}
			order, err := tab.SortOrder.Int()
			if err != nil {
				order = entity.NextGroupingSortOrder()
			}
			entity.AddGrouping(tab.Caption, order)
			changes = append(changes, engine.Change{
				Path:   "groupings[" + tab.Caption + "]",
				After:  order,
				Action: engine.ChangeActionAdd,
			})
		}
	}

	if doc.GenericProperties == nil {
		return changes
	}

	for _, p := range doc.GenericProperties.Properties {
		if p.Alias == "" || entity.FieldByAlias(p.Alias) != nil {
			continue
		}
		key, err := uuid.Parse(p.Key)
		if err != nil {
			key = uuid.Nil
		}
		if key != uuid.Nil && entity.FieldByKey(key) != nil {
			continue
		}

		f := &schema.Field{Key: key, Alias: p.Alias}
		if def := lookupDefinition(ctx, dataTypes, p.Definition); def != nil {
			f.DataType = def.Ref()
		}
		if err := entity.AddField(f); err != nil {
			continue
		}
		changes = append(changes, engine.Change{
			Path:   "fields[" + p.Alias + "]",
			After:  p.Alias,
			Action: engine.ChangeActionAdd,
		})
	}

	return changes
}

func lookupDefinition(ctx context.Context, dataTypes engine.DataTypeLookup, definition string) *schema.DataTypeDefinition {
	if dataTypes == nil {
		return nil
	}
	key, err := uuid.Parse(definition)
	if err != nil || key == uuid.Nil {
		return nil
	}
	def, err := dataTypes.ByKey(ctx, key)
	if err != nil {
		return nil
	}
	return def
}
