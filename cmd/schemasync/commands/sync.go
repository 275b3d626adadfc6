package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/schemasync/schemasync/pkg/document"
	"github.com/schemasync/schemasync/pkg/engine"
	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/stores"
	"github.com/schemasync/schemasync/pkg/syncer"
)

func parseKinds(raw []string) ([]schema.Kind, error) {
	kinds := make([]schema.Kind, 0, len(raw))
	for _, r := range raw {
		k := schema.Kind(r)
		if err := k.Validate(); err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func newExportCommand() *cobra.Command {
	var (
		outDir string
		format string
		kinds  []string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every entity to documents",
		Long: `Export every stored entity to <dir>/<Kind>/<alias><ext>.

Files whose content would not change are left untouched.`,
		Example: `  # Export to the workspace document directory
  schemasync export

  # Export media types as XML to another directory
  schemasync export --kind MediaType --format xml --out ./usync`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			opts := syncer.ExportOptions{Format: s.ws.DocumentFormat(), Kinds: s.ws.SyncKinds()}
			if format != "" {
				opts.Format = document.Format(format)
			}
			if len(kinds) > 0 {
				if opts.Kinds, err = parseKinds(kinds); err != nil {
					return err
				}
			}
			if outDir == "" {
				outDir = s.ws.Sync.Dir
			}

			log.Info().
				Str("out", outDir).
				Str("format", string(opts.Format)).
				Msg("Exporting entities")

			report, err := s.exporter().Export(ctx, outDir, opts)
			if err != nil {
				return err
			}
			if err := printReport(os.Stdout, report); err != nil {
				return err
			}
			if report.Status == stores.RunStatusFailed {
				return fmt.Errorf("export failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: workspace sync dir)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "document format: yaml or xml (default: workspace format)")
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "limit to kinds (DocumentType, MediaType)")

	return cmd
}

func newImportCommand() *cobra.Command {
	var (
		singlePass bool
		dryRun     bool
		kinds      []string
	)

	cmd := &cobra.Command{
		Use:   "import [dir]",
		Short: "Import documents into the live model",
		Long: `Import every document below dir into the live model.

Masters are imported before the types that inherit from them. By default
every entity is created or updated first, and masters and allowed children
are resolved once the whole batch exists. A failing document is reported
and does not stop the batch.`,
		Example: `  # Import the workspace document directory
  schemasync import

  # Preview an import without writing anything
  schemasync import ./schema --dry-run`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			opts := syncer.ImportOptions{
				SinglePass: singlePass || s.ws.Sync.SinglePass,
				DryRun:     dryRun,
				Kinds:      s.ws.SyncKinds(),
			}
			if len(kinds) > 0 {
				if opts.Kinds, err = parseKinds(kinds); err != nil {
					return err
				}
			}
			dir := s.syncDir(args)

			log.Info().
				Str("dir", dir).
				Bool("single_pass", opts.SinglePass).
				Bool("dry_run", opts.DryRun).
				Msg("Importing documents")

			report, err := s.importer().Import(ctx, dir, opts)
			if err != nil {
				return err
			}
			if err := printReport(os.Stdout, report); err != nil {
				return err
			}
			if report.Status == stores.RunStatusFailed {
				return fmt.Errorf("import failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&singlePass, "single-pass", false, "resolve bindings per entity instead of per batch")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report changes without writing them")
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "limit to kinds (DocumentType, MediaType)")

	return cmd
}

func newValidateCommand() *cobra.Command {
	var graph bool

	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate documents without importing",
		Long: `Validate every document below dir.

This command checks:
  - Documents decode as YAML or XML
  - Document shape (required sections, keys, numeric and boolean tokens)
  - Duplicate documents and circular master chains`,
		Example: `  # Validate the workspace document directory
  schemasync validate

  # Validate another directory
  schemasync validate ./usync

  # Render the inheritance graph with Graphviz
  schemasync validate --graph | dot -Tsvg > types.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			dir := ws.Sync.Dir
			if len(args) > 0 {
				dir = args[0]
			}

			log.Info().Str("dir", dir).Msg("Validating documents")

			sources, err := syncer.LoadDir(dir)
			if err != nil {
				return err
			}
			report := syncer.ValidateSources(sources)

			if graph {
				docs := make([]*document.Document, 0, len(sources))
				for _, src := range sources {
					if src.Doc != nil {
						docs = append(docs, src.Doc)
					}
				}
				builder := engine.NewDAGBuilder()
				builder.Build(docs)
				fmt.Print(builder.ToDOT())
			} else if jsonOutput {
				if err := printJSON(os.Stdout, report); err != nil {
					return err
				}
			} else {
				for _, f := range report.Findings {
					fmt.Printf("%s: [%s] %s\n", f.Path, f.Class, f.Message)
				}
				fmt.Printf("%d documents, %d findings\n", report.Documents, len(report.Findings))
			}

			if !report.OK() {
				return fmt.Errorf("validation failed with %d findings", len(report.Findings))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&graph, "graph", false, "print the master inheritance graph in DOT format")

	return cmd
}
