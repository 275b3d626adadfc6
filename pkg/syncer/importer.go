package syncer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/engine"
	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/stores"
	"github.com/schemasync/schemasync/pkg/telemetry"
)

// Option configures an Importer or Exporter.
type Option func(*options)

type options struct {
	tel *telemetry.Telemetry
}

// WithTelemetry sets the telemetry used for logs, metrics, traces and events.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(o *options) {
		if tel != nil {
			o.tel = tel
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tel == nil {
		o.tel = telemetry.NewNopTelemetry()
	}
	return o
}

// ImportOptions controls a batch import.
type ImportOptions struct {
	// SinglePass resolves parent and allowed-children bindings while each
	// entity is imported, instead of after the whole batch exists.
	SinglePass bool

	// DryRun reconciles against a copy of the store and persists nothing.
	DryRun bool

	// Kinds limits the import to these namespaces. Empty means all.
	Kinds []schema.Kind
}

// ForChanges narrows the options to the namespaces of the changed paths.
// It reports false when none of those namespaces is wanted.
func (o ImportOptions) ForChanges(dir string, paths []string) (ImportOptions, bool) {
	changed := ChangedKinds(dir, paths)
	if changed == nil {
		return o, true
	}
	var kinds []schema.Kind
	for _, k := range changed {
		if wantsKind(o.Kinds, k) {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		return o, false
	}
	o.Kinds = kinds
	return o, true
}

func (o ImportOptions) mode() engine.Mode {
	if o.SinglePass {
		return engine.ModeSinglePass
	}
	return engine.ModeFirstPassOnly
}

// Importer applies a directory of documents to a store.
type Importer struct {
	store stores.Store
	tel   *telemetry.Telemetry
}

// NewImporter creates an importer over store.
func NewImporter(store stores.Store, opts ...Option) *Importer {
	o := buildOptions(opts)
	return &Importer{store: store, tel: o.tel}
}

// entityImport carries one entity between the two passes.
type entityImport struct {
	path    string
	doc     *document.Document
	entity  *schema.Entity
	created bool
	result  engine.Result
}

// Import loads every document below dir and imports it.
func (im *Importer) Import(ctx context.Context, dir string, opts ImportOptions) (*Report, error) {
	sources, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return im.ImportSources(ctx, dir, sources, opts)
}

// ImportSources imports already loaded documents. Masters are imported
// before the types that inherit from them. In two-phase mode every entity is
// created or updated first and cross-entity bindings are resolved once the
// whole batch exists.
//
// One failing document never aborts the batch; its failure is reported in
// its Item. The returned error is reserved for run-level failures.
func (im *Importer) ImportSources(ctx context.Context, source string, sources []Source, opts ImportOptions) (*Report, error) {
	store := im.store
	if opts.DryRun {
		snap, err := snapshot(ctx, im.store)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot store for dry run: %w", err)
		}
		store = snap
	}

	report := &Report{
		RunID:     uuid.New().String(),
		Direction: stores.DirectionImport,
		DryRun:    opts.DryRun,
		StartedAt: time.Now().UTC(),
	}

	ctx = im.tel.WithContext(ctx)
	ctx = telemetry.WithRunContext(ctx, report.RunID, string(stores.DirectionImport))
	logger := telemetry.FromContext(ctx).NewComponentLogger("importer")

	var rec *recorder
	if !opts.DryRun {
		rec = startRecording(ctx, im.store, &stores.SyncRun{
			ID:        report.RunID,
			Direction: stores.DirectionImport,
			Source:    source,
			StartedAt: report.StartedAt,
		}, logger)
	}

	serializer := engine.NewSerializer(store, stores.DataTypes(store), engine.WithLogger(logger))

	var (
		docs  []*document.Document
		paths []string
	)
	for _, src := range sources {
		if src.Err != nil || src.Doc == nil {
			report.Items = append(report.Items, Item{
				Path:   src.Path,
				Result: failedResult("", "", engine.NewParseFailureError("failed to decode document", src.Err).WithOperation("decode")),
			})
			continue
		}
		if !wantsKind(opts.Kinds, src.Doc.Kind) {
			continue
		}
		docs = append(docs, src.Doc)
		paths = append(paths, src.Path)
	}

	order := engine.BuildImportOrder(docs)
	rejected := make([]int, 0, len(order.Rejected))
	for i := range order.Rejected {
		rejected = append(rejected, i)
	}
	sort.Ints(rejected)
	for _, i := range rejected {
		report.Items = append(report.Items, Item{
			Path:   paths[i],
			Result: failedResult(docs[i].Kind, docs[i].Alias(), order.Rejected[i]),
		})
	}

	imports := make([]*entityImport, 0, len(order.Sequence))
	for _, i := range order.Sequence {
		imports = append(imports, im.firstPass(ctx, serializer, store, paths[i], docs[i], opts.mode()))
	}

	if !opts.SinglePass {
		for _, ei := range imports {
			if ei.result.Failed() {
				continue
			}
			im.secondPass(ctx, serializer, store, ei)
		}
	}

	for _, ei := range imports {
		report.Items = append(report.Items, Item{Path: ei.path, Result: ei.result})
	}
	report.sortItems()

	for _, item := range report.Items {
		observe(im.tel, report.RunID, stores.DirectionImport, item)
		rec.item(ctx, item)
	}

	status, runErr := report.finalStatus()
	report.Status = status
	report.CompletedAt = time.Now().UTC()
	rec.finish(ctx, report, runErr)

	im.updateEntityCounts(ctx, store)
	telemetry.EndRunContext(ctx, string(status), runErr)

	total, changed, failed, issues := report.Counts()
	logger.WithFields(map[string]interface{}{
		"total":   total,
		"changed": changed,
		"failed":  failed,
		"issues":  issues,
		"status":  string(status),
		"dry_run": opts.DryRun,
	}).Info("Import finished")

	return report, nil
}

// firstPass resolves or creates the entity for doc, reconciles it and
// persists the result.
func (im *Importer) firstPass(ctx context.Context, serializer *engine.Serializer, store stores.Store, path string, doc *document.Document, mode engine.Mode) *entityImport {
	kind, alias := doc.Kind, doc.Alias()
	ectx := telemetry.WithEntityContext(ctx, string(kind), alias, "first_pass")
	ei := &entityImport{path: path, doc: doc}

	var key uuid.UUID
	if doc.Info != nil {
		if k, err := uuid.Parse(doc.Info.Key); err == nil {
			key = k
		}
	}

	entity, found := serializer.Resolver().Resolve(ectx, kind, key, alias)
	if !found {
		entity = schema.NewEntity(kind, alias)
		entity.Key = key
		ei.created = true
	}
	ei.entity = entity

	scaffolded := Scaffold(ectx, entity, doc, stores.DataTypes(store))
	res := serializer.Deserialize(ectx, entity, doc, mode)

	if !res.Failed() {
		res.Changes = append(scaffolded, res.Changes...)
		switch {
		case ei.created:
			res.MarkCreated()
		case res.Change == engine.ChangeNoChange && len(scaffolded) > 0:
			res.Change = engine.ChangeUpdated
		}
		im.persist(ectx, store, ei, &res)
	}

	ei.result = res
	telemetry.EndEntityContext(ectx, string(kind), "first_pass", string(res.Change), res.Err)
	return ei
}

// secondPass resolves the deferred bindings of an entity imported in the
// first pass.
func (im *Importer) secondPass(ctx context.Context, serializer *engine.Serializer, store stores.Store, ei *entityImport) {
	kind := ei.entity.Kind
	ectx := telemetry.WithEntityContext(ctx, string(kind), ei.entity.Alias, "second_pass")

	res := serializer.SecondPass(ectx, ei.entity, ei.doc)
	if !res.Failed() {
		im.persist(ectx, store, ei, &res)
	}

	ei.result = combine(ei.result, res)
	telemetry.EndEntityContext(ectx, string(kind), "second_pass", string(res.Change), res.Err)
}

// persist stores the entity when the pass changed it. A store failure turns
// the result into a failure.
func (im *Importer) persist(ctx context.Context, store stores.Store, ei *entityImport, res *engine.Result) {
	var err error
	switch {
	case ei.created && ei.entity.ID == 0:
		err = store.CreateEntity(ctx, ei.entity)
	case res.Change.IsChange():
		err = store.SaveEntity(ctx, ei.entity)
	default:
		return
	}

	if err != nil {
		res.Change = engine.ChangeFailed
		res.Err = engine.NewPermanentError("failed to persist entity", err).
			WithEntity(ei.entity.Alias).
			WithOperation("persist")
		telemetry.FromContext(ctx).WithError(err).Error("Failed to persist entity")
	}
}

// combine folds a second-pass result into the first-pass result. A created
// entity stays created; a failure in either pass fails the entity.
func combine(first, second engine.Result) engine.Result {
	out := first
	out.Changes = append(out.Changes, second.Changes...)
	out.Issues = append(out.Issues, second.Issues...)
	out.Pending = nil

	switch {
	case second.Failed():
		out.Change = engine.ChangeFailed
		out.Err = second.Err
	case out.Change == engine.ChangeNoChange && second.Change.IsChange():
		out.Change = engine.ChangeUpdated
	}
	return out
}

func (im *Importer) updateEntityCounts(ctx context.Context, store stores.Store) {
	for _, kind := range []schema.Kind{schema.KindDocumentType, schema.KindMediaType} {
		entities, err := store.ListEntities(ctx, kind)
		if err != nil {
			continue
		}
		im.tel.Metrics.SetEntityCount(string(kind), float64(len(entities)))
	}
}

// snapshot copies the live model into a memory store.
func snapshot(ctx context.Context, src stores.Store) (*stores.MemoryStore, error) {
	mem := stores.NewMemoryStore()

	defs, err := src.ListDataTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if err := mem.SaveDataType(ctx, def); err != nil {
			return nil, err
		}
	}

	entities, err := src.ListEntities(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		if err := mem.CreateEntity(ctx, e); err != nil {
			return nil, err
		}
	}
	return mem, nil
}
