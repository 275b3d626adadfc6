package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:", // Use in-memory database for example
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_CreateEntity demonstrates storing and resolving an entity.
func ExampleSQLiteStore_CreateEntity() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	page := schema.NewEntity(schema.KindDocumentType, "page")
	page.Name = "Page"
	page.AddGrouping("Content", 0)
	_ = page.AddField(&schema.Field{Alias: "title", Name: "Title", Group: "Content"})

	if err := store.CreateEntity(ctx, page); err != nil {
		log.Fatal(err)
	}

	byKey, err := store.ByKey(ctx, schema.KindDocumentType, page.Key)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s: %d field(s) in %s\n", byKey.Alias, len(byKey.Fields), byKey.Fields[0].Group)
	// Output: page: 1 field(s) in Content
}

// ExampleSQLiteStore_CreateSyncRun demonstrates recording a sync run.
func ExampleSQLiteStore_CreateSyncRun() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	run := &stores.SyncRun{
		ID:        "run-001",
		Direction: stores.DirectionImport,
		Source:    "usync/v9",
	}
	if err := store.CreateSyncRun(ctx, run); err != nil {
		log.Fatal(err)
	}

	_ = store.AppendSyncItem(ctx, &stores.SyncItem{
		RunID:   run.ID,
		Kind:    schema.KindDocumentType,
		Alias:   "page",
		Change:  "updated",
		Changes: 2,
	})

	run.Status = stores.RunStatusSucceeded
	run.Total = 1
	run.Changed = 1
	if err := store.FinishSyncRun(ctx, run); err != nil {
		log.Fatal(err)
	}

	retrieved, _ := store.GetSyncRun(ctx, "run-001")
	items, _ := store.ListSyncItems(ctx, "run-001")

	fmt.Printf("Run %s: %s, %d item(s)\n", retrieved.ID, retrieved.Status, len(items))
	// Output: Run run-001: succeeded, 1 item(s)
}

// ExampleMemoryStore demonstrates the in-memory store used by tests and
// embedders.
func ExampleMemoryStore() {
	store := stores.NewMemoryStore()
	ctx := context.Background()

	_ = store.SaveDataType(ctx, &schema.DataTypeDefinition{ID: 1, Name: "Textstring", EditorAlias: "Umbraco.TextBox"})

	def, _ := stores.DataTypes(store).ByID(ctx, 1)
	fmt.Println(def.EditorAlias)
	// Output: Umbraco.TextBox
}
