package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	sr.registerBuiltInSchemas()

	return sr
}

// registerBuiltInSchemas registers all built-in schemas.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	_ = sr.RegisterSchema("store", builtinStoreSchema)
	_ = sr.RegisterSchema("sync", builtinSyncSchema)
	_ = sr.RegisterSchema("telemetry", builtinTelemetrySchema)
	_ = sr.RegisterSchema("workspace", builtinWorkspaceSchema)
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	// cue.Context is not safe for concurrent use.
	sr.mu.Lock()
	defer sr.mu.Unlock()

	schema, ok := sr.schemas[schemaName]
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Built-in schema definitions

const builtinStoreSchema = `
// Path is the SQLite database file or ":memory:"
path: string & !=""

// MaxOpenConns caps the connection pool
maxOpenConns?: int & >=0
`

const builtinSyncSchema = `
// Dir is the document directory
dir: string & !=""

// Format is the export rendering
format: "yaml" | "xml"

// Kinds limits sync runs to these namespaces
kinds?: [...("DocumentType" | "MediaType")]

// SinglePass resolves bindings per entity instead of per batch
singlePass: bool

// Debounce is a Go duration string
debounce?: =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"
`

const builtinTelemetrySchema = `
logLevel?:  "trace" | "debug" | "info" | "warn" | "error" | "fatal"
logFormat?: "console" | "json"

metrics: {
	enabled:  bool
	address?: string
}

tracing: {
	enabled:   bool
	exporter?: "none" | "stdout" | "otlp"
	endpoint?: string
}
`

const builtinWorkspaceSchema = `
// Name is the workspace name
name: string & =~"^[a-zA-Z0-9_.-]+$"

// Version is the configuration version
version?: string

store: {
` + builtinStoreSchema + `
}

sync: {
` + builtinSyncSchema + `
}

telemetry: {
` + builtinTelemetrySchema + `
}
`

// ValidateWorkspace validates a workspace against the workspace schema.
func (sr *SchemaRegistry) ValidateWorkspace(ctx context.Context, workspace Workspace) error {
	return sr.ValidateAgainstSchema(ctx, "workspace", workspace)
}

// ValidateSync validates the sync block against the sync schema.
func (sr *SchemaRegistry) ValidateSync(ctx context.Context, sync SyncConfig) error {
	return sr.ValidateAgainstSchema(ctx, "sync", sync)
}

// ValidateStore validates the store block against the store schema.
func (sr *SchemaRegistry) ValidateStore(ctx context.Context, store StoreConfig) error {
	return sr.ValidateAgainstSchema(ctx, "store", store)
}
