package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schemasync/schemasync/pkg/schema"
)

// MemoryStore is an in-process Store. Entities are copied on the way in and
// out, so callers may mutate what they get back without touching the store.
type MemoryStore struct {
	mu sync.RWMutex

	nextEntityID   int64
	nextDataTypeID int64
	nextItemID     int64

	entities  map[int64]*schema.Entity
	dataTypes map[int64]*schema.DataTypeDefinition
	runs      map[string]*SyncRun
	items     []*SyncItem
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:  make(map[int64]*schema.Entity),
		dataTypes: make(map[int64]*schema.DataTypeDefinition),
		runs:      make(map[string]*SyncRun),
	}
}

func (m *MemoryStore) Init(context.Context) error    { return nil }
func (m *MemoryStore) Close() error                  { return nil }
func (m *MemoryStore) Migrate(context.Context) error { return nil }

// HealthCheck always succeeds.
func (m *MemoryStore) HealthCheck(context.Context) error { return nil }

// ByKey returns a copy of the entity with the given key, or (nil, nil).
func (m *MemoryStore) ByKey(_ context.Context, kind schema.Kind, key uuid.UUID) (*schema.Entity, error) {
	if key == uuid.Nil {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entities {
		if e.Kind == kind && e.Key == key {
			return e.Clone(), nil
		}
	}
	return nil, nil
}

// ByAlias returns a copy of the entity with the given alias, or (nil, nil).
func (m *MemoryStore) ByAlias(_ context.Context, kind schema.Kind, alias string) (*schema.Entity, error) {
	if alias == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entities {
		if e.Kind == kind && e.Alias == alias {
			return e.Clone(), nil
		}
	}
	return nil, nil
}

// ListEntities lists copies of the stored entities ordered by kind and alias.
func (m *MemoryStore) ListEntities(_ context.Context, kind schema.Kind) ([]*schema.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*schema.Entity{}
	for _, e := range m.entities {
		if kind == "" || e.Kind == kind {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Alias < out[j].Alias
	})
	return out, nil
}

// CreateEntity stores a new entity, assigning its ID and, when missing, its key.
func (m *MemoryStore) CreateEntity(_ context.Context, entity *schema.Entity) error {
	if err := entity.Validate(); err != nil {
		return fmt.Errorf("invalid entity: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entity.Key == uuid.Nil {
		entity.Key = uuid.New()
	}
	if err := m.checkUnique(entity); err != nil {
		return err
	}

	m.nextEntityID++
	entity.ID = m.nextEntityID
	m.entities[entity.ID] = entity.Clone()
	return nil
}

// SaveEntity replaces the stored copy of an existing entity.
func (m *MemoryStore) SaveEntity(_ context.Context, entity *schema.Entity) error {
	if err := entity.Validate(); err != nil {
		return fmt.Errorf("invalid entity: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.entities[entity.ID]
	if !ok || existing.Kind != entity.Kind {
		return fmt.Errorf("entity %d: %w", entity.ID, ErrNotFound)
	}
	if err := m.checkUnique(entity); err != nil {
		return err
	}

	m.entities[entity.ID] = entity.Clone()
	return nil
}

// checkUnique mirrors the unique constraints of the SQLite schema.
func (m *MemoryStore) checkUnique(entity *schema.Entity) error {
	for id, e := range m.entities {
		if id == entity.ID {
			continue
		}
		if e.Key == entity.Key {
			return fmt.Errorf("entity key %s already exists", entity.Key)
		}
		if e.Kind == entity.Kind && e.Alias == entity.Alias {
			return fmt.Errorf("entity %s/%s already exists", entity.Kind, entity.Alias)
		}
	}
	return nil
}

// DeleteEntity removes an entity by kind and alias.
func (m *MemoryStore) DeleteEntity(_ context.Context, kind schema.Kind, alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.entities {
		if e.Kind == kind && e.Alias == alias {
			delete(m.entities, id)
			return nil
		}
	}
	return fmt.Errorf("entity %s/%s: %w", kind, alias, ErrNotFound)
}

// DataTypeByID returns the data type definition with the given id, or (nil, nil).
func (m *MemoryStore) DataTypeByID(_ context.Context, id int64) (*schema.DataTypeDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if def, ok := m.dataTypes[id]; ok {
		cp := *def
		return &cp, nil
	}
	return nil, nil
}

// DataTypeByKey returns the data type definition with the given key, or (nil, nil).
func (m *MemoryStore) DataTypeByKey(_ context.Context, key uuid.UUID) (*schema.DataTypeDefinition, error) {
	if key == uuid.Nil {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, def := range m.dataTypes {
		if def.Key == key {
			cp := *def
			return &cp, nil
		}
	}
	return nil, nil
}

// SaveDataType inserts or updates a data type definition by key.
func (m *MemoryStore) SaveDataType(_ context.Context, def *schema.DataTypeDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if def.Key == uuid.Nil {
		def.Key = uuid.New()
	}
	for id, existing := range m.dataTypes {
		if existing.Key == def.Key {
			def.ID = id
			cp := *def
			m.dataTypes[id] = &cp
			return nil
		}
	}

	if def.ID == 0 {
		m.nextDataTypeID++
		def.ID = m.nextDataTypeID
	} else if def.ID > m.nextDataTypeID {
		m.nextDataTypeID = def.ID
	}
	if _, taken := m.dataTypes[def.ID]; taken {
		return fmt.Errorf("data type id %d already exists", def.ID)
	}

	cp := *def
	m.dataTypes[def.ID] = &cp
	return nil
}

// ListDataTypes lists data type definitions ordered by id.
func (m *MemoryStore) ListDataTypes(context.Context) ([]*schema.DataTypeDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*schema.DataTypeDefinition, 0, len(m.dataTypes))
	for _, def := range m.dataTypes {
		cp := *def
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateSyncRun records the start of a run.
func (m *MemoryStore) CreateSyncRun(_ context.Context, run *SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("sync run %s already exists", run.ID)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

// FinishSyncRun stores the final status and counters of a run.
func (m *MemoryStore) FinishSyncRun(_ context.Context, run *SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; !ok {
		return fmt.Errorf("sync run %s: %w", run.ID, ErrNotFound)
	}
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}

	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

// GetSyncRun returns a copy of a run.
func (m *MemoryStore) GetSyncRun(_ context.Context, id string) (*SyncRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("sync run %s: %w", id, ErrNotFound)
	}
	cp := *run
	return &cp, nil
}

// ListSyncRuns lists runs newest first.
func (m *MemoryStore) ListSyncRuns(_ context.Context, limit, offset int) ([]*SyncRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]*SyncRun, 0, len(m.runs))
	for _, run := range m.runs {
		cp := *run
		runs = append(runs, &cp)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})

	if offset >= len(runs) {
		return []*SyncRun{}, nil
	}
	runs = runs[offset:]
	if limit >= 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}

// AppendSyncItem appends a per-entity result to a run.
func (m *MemoryStore) AppendSyncItem(_ context.Context, item *SyncItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[item.RunID]; !ok {
		return fmt.Errorf("sync run %s: %w", item.RunID, ErrNotFound)
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}

	m.nextItemID++
	item.ID = m.nextItemID
	cp := *item
	cp.Issues = append([]string(nil), item.Issues...)
	m.items = append(m.items, &cp)
	return nil
}

// ListSyncItems lists the items of a run in insertion order.
func (m *MemoryStore) ListSyncItems(_ context.Context, runID string) ([]*SyncItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := []*SyncItem{}
	for _, item := range m.items {
		if item.RunID == runID {
			cp := *item
			items = append(items, &cp)
		}
	}
	return items, nil
}
