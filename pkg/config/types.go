package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/telemetry"
)

// DefaultFileName is the workspace file looked up in the working directory.
const DefaultFileName = "schemasync.cue"

// Workspace represents the workspace configuration.
type Workspace struct {
	// Name is the workspace name.
	Name string `json:"name" validate:"required"`

	// Version is the configuration version.
	Version string `json:"version,omitempty"`

	// Store configures the live model database.
	Store StoreConfig `json:"store"`

	// Sync configures the document directory and import behavior.
	Sync SyncConfig `json:"sync"`

	// Telemetry configures logs, metrics and traces.
	Telemetry TelemetryConfig `json:"telemetry"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	// Path is the database file, or ":memory:".
	Path string `json:"path" validate:"required"`

	// MaxOpenConns caps the connection pool. Zero uses the store default.
	MaxOpenConns int `json:"maxOpenConns,omitempty" validate:"gte=0"`
}

// SyncConfig configures the document directory.
type SyncConfig struct {
	// Dir is the document directory, relative to the workspace file.
	Dir string `json:"dir" validate:"required"`

	// Format is the rendering used on export (yaml, xml).
	Format string `json:"format" validate:"required,oneof=yaml xml"`

	// Kinds limits sync runs to these namespaces. Empty means all.
	Kinds []string `json:"kinds,omitempty" validate:"dive,oneof=DocumentType MediaType"`

	// SinglePass resolves bindings while each entity is imported.
	SinglePass bool `json:"singlePass"`

	// Debounce is how long watch waits for changes to settle (e.g. "500ms").
	Debounce string `json:"debounce,omitempty"`
}

// TelemetryConfig configures the ambient telemetry stack.
type TelemetryConfig struct {
	// LogLevel is the minimum log level.
	LogLevel string `json:"logLevel,omitempty" validate:"omitempty,oneof=trace debug info warn error fatal"`

	// LogFormat is the log rendering (console, json).
	LogFormat string `json:"logFormat,omitempty" validate:"omitempty,oneof=console json"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics"`

	// Tracing configures OpenTelemetry export.
	Tracing TracingConfig `json:"tracing"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address,omitempty"`
}

// TracingConfig configures trace export.
type TracingConfig struct {
	Enabled  bool   `json:"enabled"`
	Exporter string `json:"exporter,omitempty" validate:"omitempty,oneof=none stdout otlp"`
	Endpoint string `json:"endpoint,omitempty"`
}

// ParsedConfig represents the fully parsed configuration from CUE.
type ParsedConfig struct {
	// Workspace is the workspace configuration.
	Workspace Workspace `json:"workspace"`

	// SourceFiles are the CUE files that were parsed.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when the configuration was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists any validation errors.
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the CUE path to the error (e.g., "workspace.sync.format").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity" validate:"required,oneof=error warning info"`
}

func (e ValidationError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)
	}
	switch {
	case loc != "" && e.Path != "":
		return fmt.Sprintf("%s: %s: %s", loc, e.Path, e.Message)
	case loc != "":
		return fmt.Sprintf("%s: %s", loc, e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// DefaultWorkspace returns the workspace used when no file sets a value.
func DefaultWorkspace() Workspace {
	return Workspace{
		Name:  "schemasync",
		Store: StoreConfig{Path: ".schemasync/schemasync.db"},
		Sync: SyncConfig{
			Dir:      "schema",
			Format:   string(document.FormatYAML),
			Debounce: "500ms",
		},
		Telemetry: TelemetryConfig{
			LogLevel:  "info",
			LogFormat: "console",
			Metrics:   MetricsConfig{Address: ":9090"},
			Tracing:   TracingConfig{Exporter: "none"},
		},
	}
}

// applyDefaults fills unset values from DefaultWorkspace.
func (w *Workspace) applyDefaults() {
	def := DefaultWorkspace()
	if w.Store.Path == "" {
		w.Store.Path = def.Store.Path
	}
	if w.Sync.Dir == "" {
		w.Sync.Dir = def.Sync.Dir
	}
	if w.Sync.Format == "" {
		w.Sync.Format = def.Sync.Format
	}
	if w.Sync.Debounce == "" {
		w.Sync.Debounce = def.Sync.Debounce
	}
	if w.Telemetry.LogLevel == "" {
		w.Telemetry.LogLevel = def.Telemetry.LogLevel
	}
	if w.Telemetry.LogFormat == "" {
		w.Telemetry.LogFormat = def.Telemetry.LogFormat
	}
	if w.Telemetry.Metrics.Address == "" {
		w.Telemetry.Metrics.Address = def.Telemetry.Metrics.Address
	}
	if w.Telemetry.Tracing.Exporter == "" {
		w.Telemetry.Tracing.Exporter = def.Telemetry.Tracing.Exporter
	}
}

// Resolve makes the store path and document directory absolute relative to
// base, the directory holding the workspace file.
func (w *Workspace) Resolve(base string) {
	if w.Store.Path != ":memory:" && !filepath.IsAbs(w.Store.Path) {
		w.Store.Path = filepath.Join(base, w.Store.Path)
	}
	if !filepath.IsAbs(w.Sync.Dir) {
		w.Sync.Dir = filepath.Join(base, w.Sync.Dir)
	}
}

// DocumentFormat returns the export format.
func (w *Workspace) DocumentFormat() document.Format {
	return document.Format(w.Sync.Format)
}

// SyncKinds returns the configured namespaces.
func (w *Workspace) SyncKinds() []schema.Kind {
	kinds := make([]schema.Kind, 0, len(w.Sync.Kinds))
	for _, k := range w.Sync.Kinds {
		kinds = append(kinds, schema.Kind(k))
	}
	return kinds
}

// DebounceDuration parses Sync.Debounce.
func (w *Workspace) DebounceDuration() (time.Duration, error) {
	if w.Sync.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(w.Sync.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid debounce %q: %w", w.Sync.Debounce, err)
	}
	return d, nil
}

// TelemetryConfig converts the workspace settings into a telemetry.Config.
func (w *Workspace) TelemetryConfig() *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "schemasync"
	if w.Version != "" {
		cfg.ServiceVersion = w.Version
	}
	cfg.ResourceAttributes["workspace"] = w.Name

	if w.Telemetry.LogLevel != "" {
		cfg.Logging.Level = w.Telemetry.LogLevel
	}
	if w.Telemetry.LogFormat != "" {
		cfg.Logging.Format = w.Telemetry.LogFormat
	}
	cfg.Logging.Output = "stderr"

	cfg.Metrics.Enabled = w.Telemetry.Metrics.Enabled
	if w.Telemetry.Metrics.Address != "" {
		cfg.Metrics.ListenAddress = w.Telemetry.Metrics.Address
	}

	cfg.Tracing.Enabled = w.Telemetry.Tracing.Enabled
	if w.Telemetry.Tracing.Exporter != "" {
		cfg.Tracing.Exporter = w.Telemetry.Tracing.Exporter
	}
	cfg.Tracing.Endpoint = w.Telemetry.Tracing.Endpoint

	return cfg
}
