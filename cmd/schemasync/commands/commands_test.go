package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemasync/schemasync/pkg/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	configPath, verbose, jsonOutput = "", false, false

	cmd := newRootCommand("test", "none", "now")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func initWorkspace(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	_, err := run(t, "init", dir, "--name", "site")
	require.NoError(t, err)
	return filepath.Join(dir, config.DefaultFileName)
}

func TestInitCreatesWorkspace(t *testing.T) {
	cfg := initWorkspace(t)
	dir := filepath.Dir(cfg)

	assert.FileExists(t, cfg)
	assert.DirExists(t, filepath.Join(dir, "schema"))
	assert.FileExists(t, filepath.Join(dir, ".schemasync", "schemasync.db"))

	_, err := run(t, "init", dir)
	assert.Error(t, err, "init must not overwrite an existing workspace")

	_, err = run(t, "init", dir, "--force")
	assert.NoError(t, err)
}

func TestValidateEmptyWorkspace(t *testing.T) {
	cfg := initWorkspace(t)

	_, err := run(t, "validate", "--config", cfg)
	assert.NoError(t, err)

	_, err = run(t, "validate", "--config", cfg, "--graph")
	assert.NoError(t, err)
}

func TestValidateReportsFindings(t *testing.T) {
	cfg := initWorkspace(t)
	dir := filepath.Join(filepath.Dir(cfg), "schema", "DocumentType")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("kind: [unterminated"), 0o644))

	_, err := run(t, "validate", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestImportExportEmptyWorkspace(t *testing.T) {
	cfg := initWorkspace(t)

	_, err := run(t, "import", "--config", cfg)
	require.NoError(t, err)

	_, err = run(t, "export", "--config", cfg, "--format", "xml")
	require.NoError(t, err)

	_, err = run(t, "runs", "--config", cfg)
	assert.NoError(t, err)
}

func TestExportRejectsUnknownKind(t *testing.T) {
	cfg := initWorkspace(t)

	_, err := run(t, "export", "--config", cfg, "--kind", "Template")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid entity kind")
}

func TestDataTypesAdd(t *testing.T) {
	cfg := initWorkspace(t)

	_, err := run(t, "datatypes", "add", "--config", cfg,
		"--key", "0cc0eba1-9960-42c9-bf9b-60e150b429ae",
		"--name", "Textstring", "--editor", "Umbraco.TextBox")
	require.NoError(t, err)

	_, err = run(t, "datatypes", "add", "--config", cfg, "--key", "not-a-uuid", "--name", "x", "--editor", "y")
	assert.Error(t, err)

	_, err = run(t, "datatypes", "list", "--config", cfg)
	assert.NoError(t, err)
}

func TestValuePassThrough(t *testing.T) {
	cfg := initWorkspace(t)
	key := "0cc0eba1-9960-42c9-bf9b-60e150b429ae"

	_, err := run(t, "datatypes", "add", "--config", cfg, "--key", key, "--name", "Textstring", "--editor", "Umbraco.TextBox")
	require.NoError(t, err)

	out, err := run(t, "value", "export", "--config", cfg, "--data-type", key, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", strings.TrimSpace(out))

	_, err = run(t, "value", "import", "--config", cfg, "--data-type", "a0000000-0000-0000-0000-000000000000", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEntitiesRemoveMissing(t *testing.T) {
	cfg := initWorkspace(t)

	_, err := run(t, "entities", "rm", "--config", cfg, "DocumentType", "missing")
	assert.Error(t, err)

	_, err = run(t, "entities", "rm", "--config", cfg, "Template", "x")
	assert.Error(t, err)
}

func TestReadValue(t *testing.T) {
	v, err := readValue(strings.NewReader("from stdin\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", v)

	v, err = readValue(strings.NewReader("ignored"), []string{"arg"})
	require.NoError(t, err)
	assert.Equal(t, "arg", v)
}
