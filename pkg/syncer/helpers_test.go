package syncer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/stores"
)

var (
	keyBase     = uuid.MustParse("6a1f3c20-8d4e-4b1a-9c77-000000000001")
	keyPage     = uuid.MustParse("6a1f3c20-8d4e-4b1a-9c77-000000000002")
	keyTitle    = uuid.MustParse("6a1f3c20-8d4e-4b1a-9c77-000000000011")
	keySummary  = uuid.MustParse("6a1f3c20-8d4e-4b1a-9c77-000000000012")
	keyTextBox  = uuid.MustParse("0e5d2b71-2c3a-4f8e-a1d0-000000000021")
	keyTextArea = uuid.MustParse("0e5d2b71-2c3a-4f8e-a1d0-000000000022")
)

// newTestStore returns a memory store seeded with two data types.
func newTestStore(t *testing.T) *stores.MemoryStore {
	t.Helper()
	store := stores.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SaveDataType(ctx, &schema.DataTypeDefinition{
		Key: keyTextBox, Name: "Textstring", EditorAlias: "Umbraco.TextBox",
	}))
	require.NoError(t, store.SaveDataType(ctx, &schema.DataTypeDefinition{
		Key: keyTextArea, Name: "Textarea", EditorAlias: "Umbraco.TextArea",
	}))
	return store
}

func baseDoc() *document.Document {
	doc := document.New(schema.KindDocumentType)
	doc.Info = &document.Info{
		Key:         keyBase.String(),
		Name:        "Base",
		Alias:       "base",
		Icon:        "icon-folder",
		AllowAtRoot: document.BoolToken(true),
		IsListView:  document.BoolToken(false),
	}
	doc.Structure.Entries = []document.StructureRef{{Alias: "page", Key: keyPage.String()}}
	doc.Tabs.Tabs = []document.Tab{{Caption: "Content", SortOrder: document.IntToken(0)}}
	doc.GenericProperties.Properties = []document.Property{{
		Key:        keyTitle.String(),
		Name:       "Title",
		Alias:      "title",
		Definition: keyTextBox.String(),
		Type:       "Umbraco.TextBox",
		Mandatory:  document.BoolToken(true),
		SortOrder:  document.IntToken(0),
		Tab:        "Content",
	}}
	return doc
}

func pageDoc() *document.Document {
	doc := document.New(schema.KindDocumentType)
	doc.Info = &document.Info{
		Key:         keyPage.String(),
		Name:        "Page",
		Alias:       "page",
		Icon:        "icon-document",
		AllowAtRoot: document.BoolToken(false),
		IsListView:  document.BoolToken(false),
		Master:      "base",
	}
	doc.Tabs.Tabs = []document.Tab{{Caption: "Meta", SortOrder: document.IntToken(1)}}
	doc.GenericProperties.Properties = []document.Property{{
		Key:        keySummary.String(),
		Name:       "Summary",
		Alias:      "summary",
		Definition: keyTextArea.String(),
		Type:       "Umbraco.TextArea",
		Mandatory:  document.BoolToken(false),
		SortOrder:  document.IntToken(0),
		Tab:        "Meta",
	}}
	return doc
}

// writeDocs writes each document to its conventional path below dir.
func writeDocs(t *testing.T, dir string, format document.Format, docs ...*document.Document) {
	t.Helper()
	for _, doc := range docs {
		require.NoError(t, document.WriteFile(DocumentPath(dir, doc.Kind, doc.Alias(), format), doc))
	}
}

func docDir(t *testing.T, docs ...*document.Document) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "docs")
	writeDocs(t, dir, document.FormatYAML, docs...)
	return dir
}
