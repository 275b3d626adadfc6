package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/schemasync/schemasync/pkg/schema"
)

// EntityLookup resolves entities of one namespace. Implementations return
// (nil, nil) when nothing matches; a non-nil error is treated by the engine as
// "unresolved" and logged, never retried.
type EntityLookup interface {
	// ByKey returns the entity with the given stable key.
	ByKey(ctx context.Context, kind schema.Kind, key uuid.UUID) (*schema.Entity, error)

	// ByAlias returns the entity with the given alias.
	ByAlias(ctx context.Context, kind schema.Kind, alias string) (*schema.Entity, error)
}

// DataTypeLookup resolves data type definitions referenced by fields.
// The (nil, nil) convention of EntityLookup applies.
type DataTypeLookup interface {
	// ByID returns the definition with the given host-local id.
	ByID(ctx context.Context, id int64) (*schema.DataTypeDefinition, error)

	// ByKey returns the definition with the given stable key.
	ByKey(ctx context.Context, key uuid.UUID) (*schema.DataTypeDefinition, error)
}
