package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/schemasync/schemasync/pkg/schema"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("sqlite", func(t *testing.T) {
		fn(t, setupTestStore(t))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
}

func testEntity(alias string) *schema.Entity {
	e := schema.NewEntity(schema.KindDocumentType, alias)
	e.Name = alias
	e.Icon = "icon-document"
	e.AllowAtRoot = true
	e.AddGrouping("Content", 0)
	e.AddGrouping("SEO", 1)
	_ = e.AddField(&schema.Field{
		Key:       uuid.MustParse("6b4c7c3e-8b0e-4a1f-9d0e-1f3a5b7c9d01"),
		Alias:     "title",
		Name:      "Title",
		Mandatory: true,
		SortOrder: 1,
		DataType:  schema.DataTypeRef{ID: 1, EditorAlias: "Umbraco.TextBox"},
		Group:     "Content",
	})
	_ = e.AddField(&schema.Field{
		Alias:             "metaDescription",
		Name:              "Meta description",
		ValidationPattern: "^.{0,160}$",
		Group:             "SEO",
	})
	e.AllowedChildren = append(e.AllowedChildren, schema.StructureEntry{
		Ref:       schema.Reference{Key: uuid.MustParse("6b4c7c3e-8b0e-4a1f-9d0e-1f3a5b7c9d02"), Alias: "article"},
		SortOrder: 0,
	})
	return e
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestHealthCheckBeforeInit(t *testing.T) {
	store, _ := NewSQLiteStore(Config{Path: ":memory:"})
	if err := store.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check to fail before Init")
	}
	if err := store.Migrate(context.Background()); err == nil {
		t.Error("expected migrate to fail before Init")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tables := []string{"entities", "groupings", "fields", "allowed_children", "data_types", "sync_runs", "sync_items"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// Running migrations twice is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second migrate failed: %v", err)
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemasync.db")
	ctx := context.Background()

	open := func() *SQLiteStore {
		store, err := NewSQLiteStore(Config{Path: path})
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		if err := store.Init(ctx); err != nil {
			t.Fatalf("failed to initialize store: %v", err)
		}
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to migrate store: %v", err)
		}
		return store
	}

	store := open()
	if err := store.CreateEntity(ctx, testEntity("page")); err != nil {
		t.Fatalf("failed to create entity: %v", err)
	}
	_ = store.Close()

	store = open()
	defer store.Close()
	got, err := store.ByAlias(ctx, schema.KindDocumentType, "page")
	if err != nil || got == nil {
		t.Fatalf("expected page after reopen, got %v, %v", got, err)
	}
}

func TestEntityCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		page := testEntity("page")
		if err := store.CreateEntity(ctx, page); err != nil {
			t.Fatalf("failed to create entity: %v", err)
		}
		if page.ID == 0 {
			t.Error("expected ID to be assigned")
		}
		if page.Key == uuid.Nil {
			t.Error("expected key to be generated")
		}

		got, err := store.ByKey(ctx, schema.KindDocumentType, page.Key)
		if err != nil {
			t.Fatalf("failed to get entity by key: %v", err)
		}
		if got == nil {
			t.Fatal("expected entity by key")
		}
		if got.Alias != "page" || got.Icon != "icon-document" || !got.AllowAtRoot {
			t.Errorf("unexpected entity: %+v", got)
		}
		if len(got.Groupings) != 2 || got.Groupings[1].Name != "SEO" || got.Groupings[1].SortOrder != 1 {
			t.Errorf("unexpected groupings: %+v", got.Groupings)
		}
		if len(got.Fields) != 2 {
			t.Fatalf("expected 2 fields, got %d", len(got.Fields))
		}
		title := got.FieldByAlias("title")
		if title == nil || !title.Mandatory || title.Group != "Content" || title.DataType.EditorAlias != "Umbraco.TextBox" {
			t.Errorf("unexpected title field: %+v", title)
		}
		meta := got.FieldByAlias("metaDescription")
		if meta == nil || meta.Key != uuid.Nil || meta.ValidationPattern != "^.{0,160}$" {
			t.Errorf("unexpected meta field: %+v", meta)
		}
		if len(got.AllowedChildren) != 1 || got.AllowedChildren[0].Ref.Alias != "article" {
			t.Errorf("unexpected allowed children: %+v", got.AllowedChildren)
		}
		if got.Parent != nil {
			t.Errorf("expected no parent, got %+v", got.Parent)
		}

		// Update
		got.Alias = "landingPage"
		got.Parent = &schema.Reference{Key: uuid.New(), Alias: "base"}
		got.RemoveField("metaDescription")
		got.RemoveGrouping("SEO")
		got.AllowedChildren = nil
		if err := store.SaveEntity(ctx, got); err != nil {
			t.Fatalf("failed to save entity: %v", err)
		}

		old, err := store.ByAlias(ctx, schema.KindDocumentType, "page")
		if err != nil || old != nil {
			t.Errorf("expected old alias to be gone, got %v, %v", old, err)
		}

		renamed, err := store.ByAlias(ctx, schema.KindDocumentType, "landingPage")
		if err != nil || renamed == nil {
			t.Fatalf("expected renamed entity, got %v, %v", renamed, err)
		}
		if renamed.Key != page.Key {
			t.Errorf("expected key to survive rename")
		}
		if renamed.Parent == nil || renamed.Parent.Alias != "base" {
			t.Errorf("unexpected parent: %+v", renamed.Parent)
		}
		if len(renamed.Fields) != 1 || len(renamed.Groupings) != 1 || len(renamed.AllowedChildren) != 0 {
			t.Errorf("unexpected children after save: %d fields, %d groupings, %d allowed",
				len(renamed.Fields), len(renamed.Groupings), len(renamed.AllowedChildren))
		}

		// Delete
		if err := store.DeleteEntity(ctx, schema.KindDocumentType, "landingPage"); err != nil {
			t.Fatalf("failed to delete entity: %v", err)
		}
		err = store.DeleteEntity(ctx, schema.KindDocumentType, "landingPage")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestEntityLookupMisses(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		if err := store.CreateEntity(ctx, testEntity("page")); err != nil {
			t.Fatalf("failed to create entity: %v", err)
		}

		cases := []struct {
			name string
			get  func() (*schema.Entity, error)
		}{
			{"unknown alias", func() (*schema.Entity, error) { return store.ByAlias(ctx, schema.KindDocumentType, "nope") }},
			{"empty alias", func() (*schema.Entity, error) { return store.ByAlias(ctx, schema.KindDocumentType, "") }},
			{"other namespace", func() (*schema.Entity, error) { return store.ByAlias(ctx, schema.KindMediaType, "page") }},
			{"unknown key", func() (*schema.Entity, error) { return store.ByKey(ctx, schema.KindDocumentType, uuid.New()) }},
			{"nil key", func() (*schema.Entity, error) { return store.ByKey(ctx, schema.KindDocumentType, uuid.Nil) }},
		}

		for _, tc := range cases {
			got, err := tc.get()
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.name, err)
			}
			if got != nil {
				t.Errorf("%s: expected nil entity, got %+v", tc.name, got)
			}
		}
	})
}

func TestEntityConstraints(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		if err := store.CreateEntity(ctx, testEntity("page")); err != nil {
			t.Fatalf("failed to create entity: %v", err)
		}
		if err := store.CreateEntity(ctx, testEntity("page")); err == nil {
			t.Error("expected duplicate alias to be rejected")
		}

		media := testEntity("page")
		media.Kind = schema.KindMediaType
		if err := store.CreateEntity(ctx, media); err != nil {
			t.Errorf("expected same alias in another namespace to be accepted: %v", err)
		}

		if err := store.CreateEntity(ctx, schema.NewEntity(schema.KindDocumentType, "")); err == nil {
			t.Error("expected entity without alias to be rejected")
		}

		unsaved := testEntity("ghost")
		if err := store.SaveEntity(ctx, unsaved); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound saving an unknown entity, got %v", err)
		}
	})
}

func TestListEntities(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		for _, alias := range []string{"page", "article", "home"} {
			if err := store.CreateEntity(ctx, testEntity(alias)); err != nil {
				t.Fatalf("failed to create %s: %v", alias, err)
			}
		}
		image := schema.NewEntity(schema.KindMediaType, "image")
		if err := store.CreateEntity(ctx, image); err != nil {
			t.Fatalf("failed to create image: %v", err)
		}

		docs, err := store.ListEntities(ctx, schema.KindDocumentType)
		if err != nil {
			t.Fatalf("failed to list entities: %v", err)
		}
		if len(docs) != 3 || docs[0].Alias != "article" || docs[2].Alias != "page" {
			t.Errorf("unexpected document types: %v", aliases(docs))
		}
		if len(docs[0].Fields) != 2 {
			t.Errorf("expected listed entities to carry fields")
		}

		all, err := store.ListEntities(ctx, "")
		if err != nil {
			t.Fatalf("failed to list entities: %v", err)
		}
		if len(all) != 4 || all[3].Alias != "image" {
			t.Errorf("unexpected entities: %v", aliases(all))
		}
	})
}

func aliases(entities []*schema.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = string(e.Kind) + "/" + e.Alias
	}
	return out
}

func TestDataTypes(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		textbox := &schema.DataTypeDefinition{ID: 7, Name: "Textstring", EditorAlias: "Umbraco.TextBox"}
		if err := store.SaveDataType(ctx, textbox); err != nil {
			t.Fatalf("failed to save data type: %v", err)
		}
		if textbox.ID != 7 || textbox.Key == uuid.Nil {
			t.Errorf("unexpected data type after save: %+v", textbox)
		}

		rte := &schema.DataTypeDefinition{Name: "Rich text", EditorAlias: "Umbraco.TinyMCE"}
		if err := store.SaveDataType(ctx, rte); err != nil {
			t.Fatalf("failed to save data type: %v", err)
		}
		if rte.ID == 0 || rte.ID == 7 {
			t.Errorf("expected a fresh id, got %d", rte.ID)
		}

		lookup := DataTypes(store)
		got, err := lookup.ByID(ctx, 7)
		if err != nil || got == nil || got.EditorAlias != "Umbraco.TextBox" {
			t.Errorf("unexpected ByID result: %+v, %v", got, err)
		}
		got, err = lookup.ByKey(ctx, rte.Key)
		if err != nil || got == nil || got.ID != rte.ID {
			t.Errorf("unexpected ByKey result: %+v, %v", got, err)
		}

		// Upsert by key keeps the id.
		textbox.Name = "Text"
		textbox.ID = 0
		if err := store.SaveDataType(ctx, textbox); err != nil {
			t.Fatalf("failed to update data type: %v", err)
		}
		if textbox.ID != 7 {
			t.Errorf("expected id 7 after upsert, got %d", textbox.ID)
		}

		missing, err := lookup.ByID(ctx, 999)
		if err != nil || missing != nil {
			t.Errorf("expected (nil, nil) for unknown id, got %+v, %v", missing, err)
		}

		defs, err := store.ListDataTypes(ctx)
		if err != nil {
			t.Fatalf("failed to list data types: %v", err)
		}
		if len(defs) != 2 || defs[0].ID != 7 || defs[0].Name != "Text" {
			t.Errorf("unexpected data types: %+v", defs)
		}
	})
}

func TestSyncRunHistory(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		first := &SyncRun{ID: "run-001", Direction: DirectionExport, Source: "usync", StartedAt: started}
		second := &SyncRun{ID: "run-002", Direction: DirectionImport, Source: "usync", StartedAt: started.Add(time.Minute)}
		for _, run := range []*SyncRun{first, second} {
			if err := store.CreateSyncRun(ctx, run); err != nil {
				t.Fatalf("failed to create sync run: %v", err)
			}
		}
		if second.Status != RunStatusRunning {
			t.Errorf("expected default status running, got %s", second.Status)
		}

		errMsg := "document has no alias"
		items := []*SyncItem{
			{RunID: second.ID, Kind: schema.KindDocumentType, Alias: "page", Change: "updated", Changes: 3},
			{RunID: second.ID, Kind: schema.KindDocumentType, Alias: "", Change: "failed", Error: &errMsg},
			{RunID: second.ID, Kind: schema.KindMediaType, Alias: "image", Change: "no_change",
				Issues: []string{"unresolved_reference: master not found"}},
		}
		for _, item := range items {
			if err := store.AppendSyncItem(ctx, item); err != nil {
				t.Fatalf("failed to append sync item: %v", err)
			}
			if item.ID == 0 {
				t.Error("expected item ID to be assigned")
			}
		}

		second.Status = RunStatusPartial
		second.Total = 3
		second.Changed = 1
		second.Failed = 1
		second.Issues = 1
		if err := store.FinishSyncRun(ctx, second); err != nil {
			t.Fatalf("failed to finish sync run: %v", err)
		}

		got, err := store.GetSyncRun(ctx, second.ID)
		if err != nil {
			t.Fatalf("failed to get sync run: %v", err)
		}
		if got.Status != RunStatusPartial || got.Total != 3 || got.Failed != 1 || got.Direction != DirectionImport {
			t.Errorf("unexpected run: %+v", got)
		}
		if got.CompletedAt == nil {
			t.Error("expected CompletedAt to be set")
		}
		if !got.StartedAt.Equal(second.StartedAt) {
			t.Errorf("expected StartedAt %v, got %v", second.StartedAt, got.StartedAt)
		}

		runs, err := store.ListSyncRuns(ctx, 10, 0)
		if err != nil {
			t.Fatalf("failed to list sync runs: %v", err)
		}
		if len(runs) != 2 || runs[0].ID != "run-002" {
			t.Errorf("expected newest run first, got %+v", runs)
		}
		runs, _ = store.ListSyncRuns(ctx, 1, 1)
		if len(runs) != 1 || runs[0].ID != "run-001" {
			t.Errorf("unexpected page: %+v", runs)
		}

		listed, err := store.ListSyncItems(ctx, second.ID)
		if err != nil {
			t.Fatalf("failed to list sync items: %v", err)
		}
		if len(listed) != 3 {
			t.Fatalf("expected 3 items, got %d", len(listed))
		}
		if listed[0].Alias != "page" || listed[0].Changes != 3 {
			t.Errorf("unexpected first item: %+v", listed[0])
		}
		if listed[1].Error == nil || *listed[1].Error != errMsg {
			t.Errorf("unexpected item error: %v", listed[1].Error)
		}
		if len(listed[2].Issues) != 1 {
			t.Errorf("unexpected item issues: %v", listed[2].Issues)
		}

		empty, err := store.ListSyncItems(ctx, first.ID)
		if err != nil || len(empty) != 0 {
			t.Errorf("expected no items for first run, got %v, %v", empty, err)
		}

		if _, err := store.GetSyncRun(ctx, "run-404"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := store.FinishSyncRun(ctx, &SyncRun{ID: "run-404", Status: RunStatusFailed}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSyncItemRequiresRun(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		err := store.AppendSyncItem(context.Background(), &SyncItem{
			RunID: "missing", Kind: schema.KindDocumentType, Alias: "page", Change: "updated",
		})
		if err == nil {
			t.Error("expected error appending an item to an unknown run")
		}
	})
}

func TestMemoryStoreCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	page := testEntity("page")
	if err := store.CreateEntity(ctx, page); err != nil {
		t.Fatalf("failed to create entity: %v", err)
	}

	page.Name = "mutated"
	got, _ := store.ByAlias(ctx, schema.KindDocumentType, "page")
	if got.Name != "page" {
		t.Errorf("expected stored copy to be isolated, got name %q", got.Name)
	}

	got.Fields[0].Alias = "changed"
	again, _ := store.ByAlias(ctx, schema.KindDocumentType, "page")
	if again.FieldByAlias("changed") != nil {
		t.Error("expected returned entity to be a copy")
	}
}
