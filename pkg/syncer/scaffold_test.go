package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/engine"
	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/stores"
)

func TestScaffoldAddsMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	entity := schema.NewEntity(schema.KindDocumentType, "base")

	changes := Scaffold(ctx, entity, baseDoc(), stores.DataTypes(store))
	require.Len(t, changes, 2)
	assert.Equal(t, "groupings[Content]", changes[0].Path)
	assert.Equal(t, "fields[title]", changes[1].Path)
	for _, c := range changes {
		assert.Equal(t, engine.ChangeActionAdd, c.Action)
	}

	require.NotNil(t, entity.Grouping("Content"))
	f := entity.FieldByAlias("title")
	require.NotNil(t, f)
	assert.Equal(t, keyTitle, f.Key)
	assert.Equal(t, keyTextBox, f.DataType.Key)
	assert.Empty(t, f.Group, "placement is left to reconciliation")
}

func TestScaffoldKeepsExisting(t *testing.T) {
	ctx := context.Background()
	entity := schema.NewEntity(schema.KindDocumentType, "base")
	entity.AddGrouping("Content", 3)
	require.NoError(t, entity.AddField(&schema.Field{Key: keyTitle, Alias: "heading"}))

	changes := Scaffold(ctx, entity, baseDoc(), nil)
	assert.Empty(t, changes, "field matched by key and grouping by name")
	assert.Len(t, entity.Fields, 1)
	assert.Equal(t, 3, entity.Grouping("Content").SortOrder)
}

func TestScaffoldSortOrderFallback(t *testing.T) {
	entity := schema.NewEntity(schema.KindDocumentType, "base")
	entity.AddGrouping("Content", 4)

	doc := baseDoc()
	doc.Tabs.Tabs = append(doc.Tabs.Tabs, document.Tab{Caption: "Extra", SortOrder: "later"})

	Scaffold(context.Background(), entity, doc, nil)
	require.NotNil(t, entity.Grouping("Extra"))
	assert.Equal(t, 5, entity.Grouping("Extra").SortOrder)
}

func TestScaffoldNil(t *testing.T) {
	assert.Nil(t, Scaffold(context.Background(), nil, baseDoc(), nil))
	assert.Nil(t, Scaffold(context.Background(), schema.NewEntity(schema.KindDocumentType, "x"), nil, nil))

	doc := document.New(schema.KindDocumentType)
	doc.Info.Alias = "x"
	doc.GenericProperties = nil
	doc.Tabs = nil
	assert.Empty(t, Scaffold(context.Background(), schema.NewEntity(schema.KindDocumentType, "x"), doc, nil))
}
