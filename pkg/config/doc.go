// Package config loads the schemasync workspace file.
//
// # Overview
//
// A workspace is described by a CUE file, schemasync.cue, at the root of a
// project. It names the live model database, the document directory and the
// telemetry settings:
//
//	workspace: {
//		name: "site"
//		store: path: ".schemasync/schemasync.db"
//		sync: {
//			dir:        "schema"
//			format:     "yaml"
//			singlePass: false
//		}
//		telemetry: logLevel: "info"
//	}
//
// # Components
//
// Loader: Parses CUE files, directories or inline content, decodes the
// workspace block, fills defaults and validates the result. Errors carry
// file and line information where CUE provides it.
//
// SchemaRegistry: Holds the built-in CUE schemas (workspace, store, sync,
// telemetry) and accepts custom ones.
//
// Validation happens twice: against the CUE schema, and against the
// go-playground/validator struct tags on Workspace.
//
// # Usage Example
//
//	path, err := config.FindWorkspace(".")
//	if err != nil {
//	    return err
//	}
//	ws, err := config.NewLoader().LoadWorkspace(ctx, path)
//	if err != nil {
//	    return err
//	}
//	tel, err := telemetry.NewTelemetry(ws.TelemetryConfig())
package config
