package mappers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/schemasync/schemasync/pkg/engine"
	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/telemetry"
)

// Mapper translates stored property values between their host-local form and
// their portable form. dataTypeID is the host-local id of the data type the
// value belongs to.
type Mapper interface {
	ExportValue(ctx context.Context, dataTypeID int64, value string) (string, error)
	ImportValue(ctx context.Context, dataTypeID int64, value string) (string, error)
}

// Funcs adapts a pair of functions to the Mapper interface. A nil function
// returns the value unchanged.
type Funcs struct {
	Export func(ctx context.Context, dataTypeID int64, value string) (string, error)
	Import func(ctx context.Context, dataTypeID int64, value string) (string, error)
}

// ExportValue implements Mapper.
func (f Funcs) ExportValue(ctx context.Context, dataTypeID int64, value string) (string, error) {
	if f.Export == nil {
		return value, nil
	}
	return f.Export(ctx, dataTypeID, value)
}

// ImportValue implements Mapper.
func (f Funcs) ImportValue(ctx context.Context, dataTypeID int64, value string) (string, error) {
	if f.Import == nil {
		return value, nil
	}
	return f.Import(ctx, dataTypeID, value)
}

// Registry maps editor aliases to mappers. It is populated at startup and
// queried by editor alias.
type Registry struct {
	// mu protects the registry state.
	mu sync.RWMutex

	// mappers maps editor alias to mapper.
	mappers map[string]Mapper

	logger *telemetry.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *telemetry.Logger) *Registry {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	return &Registry{
		mappers: make(map[string]Mapper),
		logger:  logger.NewComponentLogger("mappers"),
	}
}

// NewDefaultRegistry creates a registry with the built-in mappers.
func NewDefaultRegistry(entities engine.EntityLookup, dataTypes engine.DataTypeLookup, logger *telemetry.Logger) *Registry {
	r := NewRegistry(logger)
	nested := NewNestedContent(r, entities, dataTypes)
	for _, alias := range NestedContentEditors {
		// Aliases are distinct, registration cannot fail here
		_ = r.Register(alias, nested)
	}
	return r
}

// Register adds a mapper for an editor alias.
func (r *Registry) Register(editorAlias string, m Mapper) error {
	if editorAlias == "" {
		return fmt.Errorf("editor alias is required")
	}
	if m == nil {
		return fmt.Errorf("mapper for %s is nil", editorAlias)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.mappers[editorAlias]; exists {
		return fmt.Errorf("mapper for %s already registered", editorAlias)
	}
	r.mappers[editorAlias] = m
	return nil
}

// Get returns the mapper registered for an editor alias.
func (r *Registry) Get(editorAlias string) (Mapper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mappers[editorAlias]
	return m, ok
}

// Aliases lists the registered editor aliases in sorted order.
func (r *Registry) Aliases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.mappers))
	for alias := range r.mappers {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// ExportValue maps a value of the given data type to its portable form.
// Values of editors without a mapper pass through unchanged.
func (r *Registry) ExportValue(ctx context.Context, def *schema.DataTypeDefinition, value string) (string, error) {
	if def == nil {
		return value, nil
	}
	m, ok := r.Get(def.EditorAlias)
	if !ok {
		return value, nil
	}
	out, err := m.ExportValue(ctx, def.ID, value)
	if err != nil {
		return "", fmt.Errorf("failed to export %s value: %w", def.EditorAlias, err)
	}
	return out, nil
}

// ImportValue maps a portable value of the given data type back to its
// host-local form.
func (r *Registry) ImportValue(ctx context.Context, def *schema.DataTypeDefinition, value string) (string, error) {
	if def == nil {
		return value, nil
	}
	m, ok := r.Get(def.EditorAlias)
	if !ok {
		return value, nil
	}
	out, err := m.ImportValue(ctx, def.ID, value)
	if err != nil {
		return "", fmt.Errorf("failed to import %s value: %w", def.EditorAlias, err)
	}
	return out, nil
}
