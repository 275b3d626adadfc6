package syncer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/engine"
	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/stores"
)

// importedStore returns a store holding base and page.
func importedStore(t *testing.T) *stores.MemoryStore {
	t.Helper()
	store := newTestStore(t)
	_, err := NewImporter(store).Import(context.Background(), docDir(t, baseDoc(), pageDoc()), ImportOptions{})
	require.NoError(t, err)
	return store
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	store := importedStore(t)
	out := t.TempDir()
	ex := NewExporter(store)

	report, err := ex.Export(ctx, out, ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, stores.RunStatusSucceeded, report.Status)
	require.Len(t, report.Items, 2)
	for _, item := range report.Items {
		assert.Equal(t, engine.ChangeCreated, item.Result.Change, item.Path)
	}

	path := filepath.Join(out, "DocumentType", "page.yaml")
	assert.FileExists(t, path)

	doc, err := document.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "page", doc.Info.Alias)
	assert.Equal(t, "base", doc.Info.Master)
	assert.Empty(t, document.CheckShape(doc))

	report, err = ex.Export(ctx, out, ExportOptions{})
	require.NoError(t, err)
	for _, item := range report.Items {
		assert.Equal(t, engine.ChangeNoChange, item.Result.Change, item.Path)
	}
}

func TestExportDetectsUpdates(t *testing.T) {
	ctx := context.Background()
	store := importedStore(t)
	out := t.TempDir()
	ex := NewExporter(store)

	_, err := ex.Export(ctx, out, ExportOptions{})
	require.NoError(t, err)

	page, err := store.ByAlias(ctx, schema.KindDocumentType, "page")
	require.NoError(t, err)
	page.Description = "A plain page"
	require.NoError(t, store.SaveEntity(ctx, page))

	report, err := ex.Export(ctx, out, ExportOptions{})
	require.NoError(t, err)

	item, ok := report.Item(schema.KindDocumentType, "page")
	require.True(t, ok)
	assert.Equal(t, engine.ChangeUpdated, item.Result.Change)

	item, ok = report.Item(schema.KindDocumentType, "base")
	require.True(t, ok)
	assert.Equal(t, engine.ChangeNoChange, item.Result.Change)
}

func TestExportXML(t *testing.T) {
	ctx := context.Background()
	store := importedStore(t)
	out := t.TempDir()

	_, err := NewExporter(store).Export(ctx, out, ExportOptions{Format: document.FormatXML})
	require.NoError(t, err)

	path := filepath.Join(out, "DocumentType", "base.config")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<DocumentType>")
	assert.Contains(t, string(data), "<Alias>base</Alias>")
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	_, err := NewExporter(newTestStore(t)).Export(context.Background(), t.TempDir(), ExportOptions{Format: "json"})
	assert.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	out := t.TempDir()
	_, err := NewExporter(importedStore(t)).Export(ctx, out, ExportOptions{})
	require.NoError(t, err)

	fresh := newTestStore(t)
	report, err := NewImporter(fresh).Import(ctx, out, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, stores.RunStatusSucceeded, report.Status)

	again := t.TempDir()
	_, err = NewExporter(fresh).Export(ctx, again, ExportOptions{})
	require.NoError(t, err)

	for _, name := range []string{"base.yaml", "page.yaml"} {
		want, err := os.ReadFile(filepath.Join(out, "DocumentType", name))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(again, "DocumentType", name))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(got), name)
	}
}
