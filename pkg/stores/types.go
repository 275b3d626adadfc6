package stores

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/schemasync/schemasync/pkg/engine"
	"github.com/schemasync/schemasync/pkg/schema"
)

// ErrNotFound is wrapped by lookups that must find a row (runs, updates).
// The engine-facing lookups return (nil, nil) instead.
var ErrNotFound = errors.New("not found")

// RunStatus represents the outcome of a sync run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// Direction says which way a sync run moved data
type Direction string

const (
	DirectionImport Direction = "import"
	DirectionExport Direction = "export"
)

// SyncRun is one batch import or export.
type SyncRun struct {
	ID          string     `json:"id"`
	Direction   Direction  `json:"direction"`
	Status      RunStatus  `json:"status"`
	Source      string     `json:"source"` // document directory
	Total       int        `json:"total"`
	Changed     int        `json:"changed"`
	Failed      int        `json:"failed"`
	Issues      int        `json:"issues"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// SyncItem records the result of one entity within a run
type SyncItem struct {
	ID        int64       `json:"id"`
	RunID     string      `json:"run_id"`
	Kind      schema.Kind `json:"kind"`
	Alias     string      `json:"alias"`
	Change    string      `json:"change"`
	Changes   int         `json:"changes"`
	Issues    []string    `json:"issues,omitempty"`
	Error     *string     `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Store is the live model the engine reconciles against, plus the history
// of sync runs.
type Store interface {
	engine.EntityLookup

	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Entity operations
	CreateEntity(ctx context.Context, entity *schema.Entity) error
	SaveEntity(ctx context.Context, entity *schema.Entity) error
	ListEntities(ctx context.Context, kind schema.Kind) ([]*schema.Entity, error)
	DeleteEntity(ctx context.Context, kind schema.Kind, alias string) error

	// Data type operations
	DataTypeByID(ctx context.Context, id int64) (*schema.DataTypeDefinition, error)
	DataTypeByKey(ctx context.Context, key uuid.UUID) (*schema.DataTypeDefinition, error)
	SaveDataType(ctx context.Context, def *schema.DataTypeDefinition) error
	ListDataTypes(ctx context.Context) ([]*schema.DataTypeDefinition, error)

	// Sync history
	CreateSyncRun(ctx context.Context, run *SyncRun) error
	FinishSyncRun(ctx context.Context, run *SyncRun) error
	GetSyncRun(ctx context.Context, id string) (*SyncRun, error)
	ListSyncRuns(ctx context.Context, limit, offset int) ([]*SyncRun, error)
	AppendSyncItem(ctx context.Context, item *SyncItem) error
	ListSyncItems(ctx context.Context, runID string) ([]*SyncItem, error)

	// Utility
	HealthCheck(ctx context.Context) error
}

// DataTypes returns the data type view of a store that the engine and the
// value mappers consume.
func DataTypes(s Store) engine.DataTypeLookup {
	return dataTypeView{store: s}
}

type dataTypeView struct {
	store Store
}

func (v dataTypeView) ByID(ctx context.Context, id int64) (*schema.DataTypeDefinition, error) {
	return v.store.DataTypeByID(ctx, id)
}

func (v dataTypeView) ByKey(ctx context.Context, key uuid.UUID) (*schema.DataTypeDefinition, error) {
	return v.store.DataTypeByKey(ctx, key)
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
