package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/schemasync/schemasync/pkg/config"
	"github.com/schemasync/schemasync/pkg/stores"
	"github.com/schemasync/schemasync/pkg/syncer"
	"github.com/schemasync/schemasync/pkg/telemetry"
)

// session holds what every store-backed command needs.
type session struct {
	ws    *config.Workspace
	tel   *telemetry.Telemetry
	store *stores.SQLiteStore
}

// loadWorkspace reads --config, or the nearest schemasync.cue. Without a
// workspace file the defaults apply relative to the working directory.
func loadWorkspace(ctx context.Context) (*config.Workspace, error) {
	path := configPath
	if path == "" {
		found, err := config.FindWorkspace(".")
		if err != nil {
			log.Debug().Err(err).Msg("No workspace file, using defaults")
			ws := config.DefaultWorkspace()
			cwd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			ws.Resolve(cwd)
			return &ws, nil
		}
		path = found
	}

	ws, err := config.NewLoader().LoadWorkspace(ctx, path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("workspace", path).Str("name", ws.Name).Msg("Loaded workspace")
	return ws, nil
}

// openSession loads the workspace, starts telemetry and opens the store.
func openSession(ctx context.Context) (*session, error) {
	ws, err := loadWorkspace(ctx)
	if err != nil {
		return nil, err
	}

	cfg := ws.TelemetryConfig()
	if verbose {
		cfg.Logging.Level = "debug"
	}
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if err := tel.StartMetricsServer(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	store, err := openStore(ctx, ws)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	return &session{ws: ws, tel: tel, store: store}, nil
}

// openStore opens and migrates the workspace database.
func openStore(ctx context.Context, ws *config.Workspace) (*stores.SQLiteStore, error) {
	if ws.Store.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(ws.Store.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{
		Path:         ws.Store.Path,
		MaxOpenConns: ws.Store.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func (s *session) Close(ctx context.Context) {
	if err := s.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close store")
	}
	if err := s.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

func (s *session) importer() *syncer.Importer {
	return syncer.NewImporter(s.store, syncer.WithTelemetry(s.tel))
}

func (s *session) exporter() *syncer.Exporter {
	return syncer.NewExporter(s.store, syncer.WithTelemetry(s.tel))
}

// syncDir returns the directory argument, or the workspace sync dir.
func (s *session) syncDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return s.ws.Sync.Dir
}
