// Package telemetry provides observability instrumentation for schemasync.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and event publishing behind a single
// Telemetry value that the importer, exporter and watcher share.
//
// # Usage
//
// Initialize telemetry at startup and attach it to the context:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// Library callers and tests that do not care about output can use
// NewNopTelemetry, which discards logs and delivers events synchronously.
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("importer")
//	logger = logger.WithRunID(runID).WithEntity("DocumentType", "article")
//	logger.Info("Importing entity")
//
// # Distributed Tracing
//
// Each run gets a span named after its direction (sync.import, sync.export)
// and each entity phase a child span (sync.export, sync.first_pass,
// sync.second_pass):
//
//	ctx = telemetry.WithRunContext(ctx, runID, "import")
//	defer telemetry.EndRunContext(ctx, status, err)
//
//	ectx := telemetry.WithEntityContext(ctx, kind, alias, "first_pass")
//	telemetry.EndEntityContext(ectx, kind, "first_pass", change, err)
//
// Supported exporters: "otlp" (gRPC), "stdout" and "none".
//
// # Metrics
//
// Key metrics exposed under the configured namespace:
//
//   - sync_runs_started_total{direction}
//   - sync_runs_completed_total{direction,status}
//   - sync_run_duration_seconds{direction}
//   - sync_items_total{kind,change}
//   - sync_item_duration_seconds{kind,phase}
//   - unresolved_references_total{kind}
//   - sync_issues_total{class}
//   - sync_changes_total{kind,action}
//   - entities_managed{kind}
//   - active_sync_runs
//
// Metrics are served over HTTP by StartMetricsServer (default :9090/metrics).
//
// # Event Publishing
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("%s: %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// Event filters: FilterByLevel, FilterByType, FilterByRunID, FilterByEntity.
//
// # Graceful Shutdown
//
// Shutdown drains buffered events, flushes pending spans and stops the
// metrics endpoint:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	_ = tel.Shutdown(ctx)
package telemetry
