package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/schema"
)

func TestLoader_ParseInline(t *testing.T) {
	loader := NewLoader()
	ctx := context.Background()

	tests := []struct {
		name      string
		content   string
		wantErrs  bool
		checkFunc func(*testing.T, *ParsedConfig)
	}{
		{
			name: "full workspace",
			content: `
workspace: {
	name: "site"
	version: "1.2.0"
	store: path: "data/site.db"
	sync: {
		dir: "schema"
		format: "xml"
		kinds: ["DocumentType"]
		singlePass: true
		debounce: "250ms"
	}
	telemetry: {
		logLevel: "debug"
		logFormat: "json"
		metrics: {enabled: true, address: ":9191"}
		tracing: {enabled: true, exporter: "stdout"}
	}
}
`,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				ws := pc.Workspace
				if ws.Name != "site" {
					t.Errorf("expected workspace name 'site', got %s", ws.Name)
				}
				if ws.DocumentFormat() != document.FormatXML {
					t.Errorf("expected xml format, got %s", ws.Sync.Format)
				}
				if !ws.Sync.SinglePass {
					t.Error("expected singlePass")
				}
				kinds := ws.SyncKinds()
				if len(kinds) != 1 || kinds[0] != schema.KindDocumentType {
					t.Errorf("unexpected kinds: %v", kinds)
				}
				d, err := ws.DebounceDuration()
				if err != nil || d != 250*time.Millisecond {
					t.Errorf("expected 250ms debounce, got %v (%v)", d, err)
				}
				if !ws.Telemetry.Metrics.Enabled || ws.Telemetry.Metrics.Address != ":9191" {
					t.Errorf("unexpected metrics config: %+v", ws.Telemetry.Metrics)
				}
			},
		},
		{
			name:    "minimal workspace gets defaults",
			content: `workspace: name: "minimal"`,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				ws := pc.Workspace
				def := DefaultWorkspace()
				if ws.Store.Path != def.Store.Path {
					t.Errorf("expected default store path, got %s", ws.Store.Path)
				}
				if ws.Sync.Dir != "schema" || ws.Sync.Format != "yaml" {
					t.Errorf("unexpected sync defaults: %+v", ws.Sync)
				}
				if ws.Telemetry.LogLevel != "info" {
					t.Errorf("expected info log level, got %s", ws.Telemetry.LogLevel)
				}
			},
		},
		{
			name: "invalid CUE syntax",
			content: `
workspace: {
	name: "test"
`,
			wantErrs: true,
		},
		{
			name:     "missing workspace block",
			content:  `other: 1`,
			wantErrs: true,
		},
		{
			name: "unknown format",
			content: `
workspace: {
	name: "site"
	sync: format: "json"
}
`,
			wantErrs: true,
		},
		{
			name: "unknown kind",
			content: `
workspace: {
	name: "site"
	sync: kinds: ["Widget"]
}
`,
			wantErrs: true,
		},
		{
			name: "bad debounce",
			content: `
workspace: {
	name: "site"
	sync: debounce: "soon"
}
`,
			wantErrs: true,
		},
		{
			name: "bad workspace name",
			content: `
workspace: name: "has spaces"
`,
			wantErrs: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := loader.ParseInline(ctx, tt.content)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantErrs && len(pc.Errors) == 0 {
				t.Fatal("expected validation errors, got none")
			}
			if !tt.wantErrs && len(pc.Errors) > 0 {
				t.Fatalf("unexpected validation errors: %v", pc.Errors)
			}

			if tt.checkFunc != nil {
				tt.checkFunc(t, pc)
			}
		})
	}
}

func TestLoader_ValidatorErrorPaths(t *testing.T) {
	loader := NewLoader()

	pc, err := loader.ParseInline(context.Background(), `
workspace: {
	name: "site"
	sync: format: "json"
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, e := range pc.Errors {
		if e.Path == "Workspace.Sync.Format" {
			found = true
			if !strings.Contains(e.Message, "yaml xml") {
				t.Errorf("expected allowed values in message, got %q", e.Message)
			}
		}
	}
	if !found {
		t.Errorf("expected a struct tag error for Workspace.Sync.Format, got %v", pc.Errors)
	}
}

func TestLoader_LoadWorkspace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	content := `
workspace: {
	name: "site"
	store: path: "db/site.db"
	sync: dir: "docs"
}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write workspace: %v", err)
	}

	ws, err := NewLoader().LoadWorkspace(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadWorkspace failed: %v", err)
	}

	if want := filepath.Join(dir, "db", "site.db"); ws.Store.Path != want {
		t.Errorf("expected store path %s, got %s", want, ws.Store.Path)
	}
	if want := filepath.Join(dir, "docs"); ws.Sync.Dir != want {
		t.Errorf("expected sync dir %s, got %s", want, ws.Sync.Dir)
	}
}

func TestLoader_LoadWorkspaceErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	if err := os.WriteFile(path, []byte(`workspace: {name: "site", sync: format: "json"}`), 0o644); err != nil {
		t.Fatalf("failed to write workspace: %v", err)
	}

	_, err := NewLoader().LoadWorkspace(context.Background(), path)
	if err == nil {
		t.Fatal("expected an error for an invalid workspace")
	}
	if !strings.Contains(err.Error(), "invalid workspace") {
		t.Errorf("unexpected error: %v", err)
	}

	if _, err := NewLoader().LoadWorkspace(context.Background(), filepath.Join(dir, "missing.cue")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoader_ParseDirectory(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"workspace.cue": "package site\n\nworkspace: name: \"site\"\n",
		"sync.cue":      "package site\n\nworkspace: sync: format: \"xml\"\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	pc, err := NewLoader().Parse(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(pc.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", pc.Errors)
	}
	if len(pc.SourceFiles) != 2 {
		t.Errorf("expected 2 source files, got %d", len(pc.SourceFiles))
	}
	if pc.Workspace.Sync.Format != "xml" {
		t.Errorf("expected files to unify, got format %s", pc.Workspace.Sync.Format)
	}
}

func TestLoader_ParseNoSources(t *testing.T) {
	if _, err := NewLoader().Parse(context.Background(), nil); err == nil {
		t.Error("expected error for no sources")
	}
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteDefault(dir, "blog", false)
	if err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	ws, err := NewLoader().LoadWorkspace(context.Background(), path)
	if err != nil {
		t.Fatalf("default workspace does not load: %v", err)
	}
	if ws.Name != "blog" {
		t.Errorf("expected name 'blog', got %s", ws.Name)
	}

	if _, err := WriteDefault(dir, "blog", false); err == nil {
		t.Error("expected an error when the file exists")
	}
	if _, err := WriteDefault(dir, "blog", true); err != nil {
		t.Errorf("force overwrite failed: %v", err)
	}
}

func TestFindWorkspace(t *testing.T) {
	root := t.TempDir()
	if _, err := WriteDefault(root, "", false); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("failed to create dirs: %v", err)
	}

	path, err := FindWorkspace(nested)
	if err != nil {
		t.Fatalf("FindWorkspace failed: %v", err)
	}
	if path != filepath.Join(root, DefaultFileName) {
		t.Errorf("unexpected path %s", path)
	}
}

func TestWorkspace_TelemetryConfig(t *testing.T) {
	ws := DefaultWorkspace()
	ws.Version = "2.0.0"
	ws.Telemetry.LogLevel = "debug"
	ws.Telemetry.Tracing = TracingConfig{Enabled: true, Exporter: "otlp", Endpoint: "localhost:4317"}

	cfg := ws.TelemetryConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("telemetry config invalid: %v", err)
	}
	if cfg.ServiceVersion != "2.0.0" {
		t.Errorf("expected service version 2.0.0, got %s", cfg.ServiceVersion)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Endpoint != "localhost:4317" {
		t.Errorf("unexpected tracing config: %+v", cfg.Tracing)
	}
	if cfg.ResourceAttributes["workspace"] != ws.Name {
		t.Errorf("expected workspace resource attribute")
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		err  ValidationError
		want string
	}{
		{ValidationError{Message: "boom"}, "boom"},
		{ValidationError{Path: "workspace.name", Message: "boom"}, "workspace.name: boom"},
		{ValidationError{File: "a.cue", Line: 3, Column: 7, Message: "boom"}, "a.cue:3:7: boom"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
