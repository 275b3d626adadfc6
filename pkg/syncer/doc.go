// Package syncer drives batch synchronization between a store and a
// directory of entity documents.
//
// Documents live at <dir>/<Kind>/<alias><ext>. The Exporter writes one
// document per stored entity and leaves files whose content would not change
// alone. The Importer orders a batch masters-first, creates or updates every
// entity in a first pass, persists it, and then resolves master and
// allowed-children bindings in a second pass once the whole batch exists:
//
//	store := stores.NewMemoryStore()
//	report, err := syncer.NewImporter(store).Import(ctx, "./schema", syncer.ImportOptions{})
//	if err != nil {
//		return err
//	}
//	_, changed, failed, _ := report.Counts()
//
// A failing document never aborts the batch. Its outcome is reported in the
// Report, and the run and its items are written to the store's history.
//
// Validate checks a directory without touching any store, and Watcher
// re-runs a callback after document changes settle.
package syncer
