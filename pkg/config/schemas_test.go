package config

import (
	"context"
	"reflect"
	"testing"
)

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	customSchema := `
field1: string
field2: int
`

	err := sr.RegisterSchema("custom", customSchema)
	if err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("custom")
	if !ok {
		t.Fatal("expected to find custom schema")
	}

	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}

	if err := sr.ValidateAgainstSchema(context.Background(), "custom", map[string]interface{}{
		"field1": "x",
		"field2": 2,
	}); err != nil {
		t.Errorf("expected valid data, got %v", err)
	}
	if err := sr.ValidateAgainstSchema(context.Background(), "custom", map[string]interface{}{
		"field1": 1,
		"field2": 2,
	}); err == nil {
		t.Error("expected a type error")
	}
}

func TestSchemaRegistry_RegisterInvalid(t *testing.T) {
	sr := NewSchemaRegistry()
	if err := sr.RegisterSchema("broken", `field: {`); err == nil {
		t.Error("expected compile error")
	}
	if _, ok := sr.GetSchema("broken"); ok {
		t.Error("broken schema should not be registered")
	}
}

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	want := []string{"store", "sync", "telemetry", "workspace"}
	if got := sr.ListSchemas(); !reflect.DeepEqual(got, want) {
		t.Errorf("ListSchemas() = %v, want %v", got, want)
	}

	for _, name := range want {
		t.Run(name, func(t *testing.T) {
			schema, ok := sr.GetSchema(name)
			if !ok {
				t.Fatalf("built-in schema %s not found", name)
			}

			if schema.Err() != nil {
				t.Errorf("built-in schema %s has errors: %v", name, schema.Err())
			}
		})
	}
}

func TestSchemaRegistry_ValidateWorkspace(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*Workspace)
		wantErr bool
	}{
		{
			name:   "default workspace",
			mutate: func(*Workspace) {},
		},
		{
			name: "xml with kinds",
			mutate: func(ws *Workspace) {
				ws.Sync.Format = "xml"
				ws.Sync.Kinds = []string{"DocumentType", "MediaType"}
			},
		},
		{
			name:    "bad name",
			mutate:  func(ws *Workspace) { ws.Name = "a b" },
			wantErr: true,
		},
		{
			name:    "empty store path",
			mutate:  func(ws *Workspace) { ws.Store.Path = "" },
			wantErr: true,
		},
		{
			name:    "unknown format",
			mutate:  func(ws *Workspace) { ws.Sync.Format = "json" },
			wantErr: true,
		},
		{
			name:    "unknown exporter",
			mutate:  func(ws *Workspace) { ws.Telemetry.Tracing.Exporter = "jaeger" },
			wantErr: true,
		},
		{
			name:    "bad debounce",
			mutate:  func(ws *Workspace) { ws.Sync.Debounce = "1 second" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := DefaultWorkspace()
			tt.mutate(&ws)

			err := sr.ValidateWorkspace(ctx, ws)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWorkspace() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchemaRegistry_ValidateParts(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	if err := sr.ValidateSync(ctx, SyncConfig{Dir: "schema", Format: "yaml", Debounce: "1m30s"}); err != nil {
		t.Errorf("expected valid sync block, got %v", err)
	}
	if err := sr.ValidateSync(ctx, SyncConfig{Format: "yaml"}); err == nil {
		t.Error("expected error for empty dir")
	}
	if err := sr.ValidateStore(ctx, StoreConfig{Path: ":memory:", MaxOpenConns: 4}); err != nil {
		t.Errorf("expected valid store block, got %v", err)
	}
	if err := sr.ValidateAgainstSchema(ctx, "missing", nil); err == nil {
		t.Error("expected error for unknown schema")
	}
}
