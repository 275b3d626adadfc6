package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/engine"
	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/stores"
	"github.com/schemasync/schemasync/pkg/telemetry"
)

// ExportOptions controls a batch export.
type ExportOptions struct {
	// Format selects the document rendering. Defaults to YAML.
	Format document.Format

	// Kinds limits the export to these namespaces. Empty means all.
	Kinds []schema.Kind
}

// Exporter writes the documents of every stored entity to a directory.
type Exporter struct {
	store stores.Store
	tel   *telemetry.Telemetry
}

// NewExporter creates an exporter over store.
func NewExporter(store stores.Store, opts ...Option) *Exporter {
	o := buildOptions(opts)
	return &Exporter{store: store, tel: o.tel}
}

// Export serializes every entity to <dir>/<Kind>/<alias><ext>. Files whose
// content would not change are left untouched and reported as NoChange; new
// files are reported as Created.
func (ex *Exporter) Export(ctx context.Context, dir string, opts ExportOptions) (*Report, error) {
	format := opts.Format
	if format == "" {
		format = document.FormatYAML
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     uuid.New().String(),
		Direction: stores.DirectionExport,
		StartedAt: time.Now().UTC(),
	}

	ctx = ex.tel.WithContext(ctx)
	ctx = telemetry.WithRunContext(ctx, report.RunID, string(stores.DirectionExport))
	logger := telemetry.FromContext(ctx).NewComponentLogger("exporter")

	entities, err := ex.store.ListEntities(ctx, "")
	if err != nil {
		err = fmt.Errorf("failed to list entities: %w", err)
		report.Status = stores.RunStatusFailed
		telemetry.EndRunContext(ctx, string(report.Status), err)
		return nil, err
	}

	rec := startRecording(ctx, ex.store, &stores.SyncRun{
		ID:        report.RunID,
		Direction: stores.DirectionExport,
		Source:    dir,
		StartedAt: report.StartedAt,
	}, logger)

	serializer := engine.NewSerializer(ex.store, stores.DataTypes(ex.store), engine.WithLogger(logger))

	for _, entity := range entities {
		if !wantsKind(opts.Kinds, entity.Kind) {
			continue
		}
		report.Items = append(report.Items, ex.exportEntity(ctx, serializer, dir, format, entity))
	}
	report.sortItems()

	for _, item := range report.Items {
		observe(ex.tel, report.RunID, stores.DirectionExport, item)
		rec.item(ctx, item)
	}

	status, runErr := report.finalStatus()
	report.Status = status
	report.CompletedAt = time.Now().UTC()
	rec.finish(ctx, report, runErr)
	telemetry.EndRunContext(ctx, string(status), runErr)

	total, changed, failed, _ := report.Counts()
	logger.WithFields(map[string]interface{}{
		"total":   total,
		"changed": changed,
		"failed":  failed,
		"dir":     dir,
		"format":  string(format),
	}).Info("Export finished")

	return report, nil
}

func (ex *Exporter) exportEntity(ctx context.Context, serializer *engine.Serializer, dir string, format document.Format, entity *schema.Entity) Item {
	path := DocumentPath(dir, entity.Kind, entity.Alias, format)
	ectx := telemetry.WithEntityContext(ctx, string(entity.Kind), entity.Alias, "export")

	res := engine.Result{Kind: entity.Kind, Alias: entity.Alias}
	change, err := ex.write(ectx, serializer, path, format, entity)
	if err != nil {
		res = failedResult(entity.Kind, entity.Alias, err)
	} else {
		res.Change = change
	}

	telemetry.EndEntityContext(ectx, string(entity.Kind), "export", string(res.Change), res.Err)
	return Item{Path: path, Result: res}
}

func (ex *Exporter) write(ctx context.Context, serializer *engine.Serializer, path string, format document.Format, entity *schema.Entity) (engine.ChangeType, error) {
	doc, err := serializer.Serialize(ctx, entity)
	if err != nil {
		return engine.ChangeFailed, err
	}

	data, err := document.Marshal(doc, format)
	if err != nil {
		return engine.ChangeFailed, engine.NewPermanentError("failed to encode document", err).
			WithEntity(entity.Alias).
			WithOperation("export")
	}

	change := engine.ChangeUpdated
	existing, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		change = engine.ChangeCreated
	case err != nil:
		return engine.ChangeFailed, fmt.Errorf("failed to read existing document: %w", err)
	case bytes.Equal(existing, data):
		return engine.ChangeNoChange, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return engine.ChangeFailed, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return engine.ChangeFailed, fmt.Errorf("failed to write document: %w", err)
	}

	telemetry.FromContext(ctx).WithPath(path).Debug("Document written")
	return change, nil
}
