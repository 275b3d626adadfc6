package syncer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/engine"
	"github.com/schemasync/schemasync/pkg/schema"
)

func TestValidateClean(t *testing.T) {
	report, err := Validate(docDir(t, baseDoc(), pageDoc()))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Documents)
	assert.True(t, report.OK(), "%v", report.Findings)
}

func TestValidateFindings(t *testing.T) {
	bad := pageDoc()
	bad.Info.Alias = "bad"
	bad.Info.Key = "not-a-key"
	bad.GenericProperties.Properties[0].SortOrder = "first"

	dir := docDir(t, baseDoc(), bad)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "DocumentType", "broken.yaml"), []byte("kind: Widget\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a document"), 0o644))

	report, err := Validate(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Documents)
	assert.False(t, report.OK())

	classes := make(map[engine.ErrorClass]int)
	for _, f := range report.Findings {
		classes[f.Class]++
	}
	assert.Equal(t, 1, classes[engine.ErrorClassParseFailure])
	assert.GreaterOrEqual(t, classes[engine.ErrorClassMalformedDocument], 2)

	for _, f := range report.Findings {
		if f.Class == engine.ErrorClassMalformedDocument {
			assert.Equal(t, "bad", f.Alias)
		}
	}
}

func TestValidateCycle(t *testing.T) {
	a := pageDoc()
	a.Info.Alias, a.Info.Key, a.Info.Master = "a", "", "b"
	b := pageDoc()
	b.Info.Alias, b.Info.Key, b.Info.Master = "b", "", "a"

	report, err := Validate(docDir(t, a, b))
	require.NoError(t, err)
	require.Len(t, report.Findings, 2)
	for _, f := range report.Findings {
		assert.Equal(t, engine.ErrorClassPermanent, f.Class)
		assert.Contains(t, f.Message, "circular")
	}
}

func TestValidateMissingDir(t *testing.T) {
	_, err := Validate(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadDirSkipsHidden(t *testing.T) {
	dir := docDir(t, baseDoc())
	writeDocs(t, filepath.Join(dir, ".trash"), document.FormatYAML, pageDoc())

	sources, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "base", sources[0].Doc.Alias())
}

func TestDocumentPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "MediaType", "image.config"),
		DocumentPath("out", "MediaType", "image", document.FormatXML))
	assert.True(t, IsDocumentPath("a/b/page.yaml"))
	assert.True(t, IsDocumentPath("a/b/page.config"))
	assert.False(t, IsDocumentPath("a/b/.page.yaml"))
	assert.False(t, IsDocumentPath("a/b/page.txt"))
}

func TestChangedKinds(t *testing.T) {
	dir := docDir(t, baseDoc())
	existing := DocumentPath(dir, schema.KindDocumentType, "base", document.FormatYAML)
	deleted := DocumentPath(dir, schema.KindMediaType, "image", document.FormatXML)

	assert.Equal(t, []schema.Kind{schema.KindDocumentType, schema.KindMediaType},
		ChangedKinds(dir, []string{existing, deleted, existing}))

	misplaced := filepath.Join(dir, "MediaType", "base.yaml")
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(misplaced), 0o755))
	require.NoError(t, os.WriteFile(misplaced, data, 0o644))
	assert.Equal(t, []schema.Kind{schema.KindDocumentType}, ChangedKinds(dir, []string{misplaced}),
		"a readable document's own kind wins over its directory")

	assert.Nil(t, ChangedKinds(dir, []string{filepath.Join(dir, "loose.yaml")}))
	assert.Nil(t, ChangedKinds(dir, []string{filepath.Join(dir, "Template", "home.yaml")}))
}

func TestImportOptionsForChanges(t *testing.T) {
	dir := t.TempDir()
	media := DocumentPath(dir, schema.KindMediaType, "image", document.FormatYAML)

	opts, ok := ImportOptions{SinglePass: true}.ForChanges(dir, []string{media})
	require.True(t, ok)
	assert.Equal(t, []schema.Kind{schema.KindMediaType}, opts.Kinds)
	assert.True(t, opts.SinglePass)

	_, ok = ImportOptions{Kinds: []schema.Kind{schema.KindDocumentType}}.ForChanges(dir, []string{media})
	assert.False(t, ok, "changes outside the configured kinds import nothing")

	opts, ok = ImportOptions{Kinds: []schema.Kind{schema.KindDocumentType}}.ForChanges(dir, []string{filepath.Join(dir, "loose.yaml")})
	require.True(t, ok)
	assert.Equal(t, []schema.Kind{schema.KindDocumentType}, opts.Kinds)
}
