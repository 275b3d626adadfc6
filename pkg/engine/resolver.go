package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/telemetry"
)

// Resolver finds entities by stable key, falling back to alias.
type Resolver struct {
	lookup EntityLookup
	logger *telemetry.Logger
}

// NewResolver creates a resolver over the given lookup.
func NewResolver(lookup EntityLookup, logger *telemetry.Logger) *Resolver {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	return &Resolver{
		lookup: lookup,
		logger: logger.NewComponentLogger("resolver"),
	}
}

// Resolve returns the entity in kind's namespace identified by key, or by
// alias when the key lookup misses. A nil key skips the key lookup. The bool
// is false when neither lookup matched; that is not an error.
func (r *Resolver) Resolve(ctx context.Context, kind schema.Kind, key uuid.UUID, alias string) (*schema.Entity, bool) {
	if key != uuid.Nil {
		e, err := r.lookup.ByKey(ctx, kind, key)
		if err != nil {
			r.logger.WithError(err).WithField("key", key.String()).Debug("key lookup failed")
		} else if e != nil {
			return e, true
		}
	}

	if alias == "" {
		return nil, false
	}

	if key != uuid.Nil {
		r.logger.WithFields(map[string]interface{}{
			"key":   key.String(),
			"alias": alias,
		}).Debug("key not found, falling back to alias")
	}

	e, err := r.lookup.ByAlias(ctx, kind, alias)
	if err != nil {
		r.logger.WithError(err).WithField("alias", alias).Debug("alias lookup failed")
		return nil, false
	}
	if e == nil {
		return nil, false
	}
	return e, true
}

// ResolveRef resolves a weak reference.
func (r *Resolver) ResolveRef(ctx context.Context, kind schema.Kind, ref schema.Reference) (*schema.Entity, bool) {
	return r.Resolve(ctx, kind, ref.Key, ref.Alias)
}

// parseKey parses a textual key. Blank or malformed text yields uuid.Nil.
func parseKey(s string) (uuid.UUID, bool) {
	if s == "" {
		return uuid.Nil, false
	}
	k, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return k, true
}

func keyString(k uuid.UUID) string {
	if k == uuid.Nil {
		return ""
	}
	return k.String()
}
