package commands

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/schemasync/schemasync/pkg/syncer"
)

func newWatchCommand() *cobra.Command {
	var singlePass bool

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-import documents when they change",
		Long: `Watch the document directory and re-import the kinds whose documents change.

Changes are debounced (workspace sync.debounce, default 500ms) so that a
burst of writes triggers a single import.`,
		Example: `  # Watch the workspace document directory
  schemasync watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			debounce, err := s.ws.DebounceDuration()
			if err != nil {
				return err
			}

			dir := s.syncDir(args)
			opts := syncer.ImportOptions{
				SinglePass: singlePass || s.ws.Sync.SinglePass,
				Kinds:      s.ws.SyncKinds(),
			}
			im := s.importer()

			w := syncer.NewWatcher(s.tel, syncer.WithDebounce(debounce))
			err = w.Watch(ctx, dir, func(ctx context.Context, paths []string) error {
				burst, ok := opts.ForChanges(dir, paths)
				if !ok {
					log.Debug().Strs("paths", paths).Msg("Changed documents are outside the synced kinds")
					return nil
				}
				log.Info().Int("documents", len(paths)).Interface("kinds", burst.Kinds).Msg("Documents changed, importing")
				report, err := im.Import(ctx, dir, burst)
				if err != nil {
					return err
				}
				return printReport(os.Stdout, report)
			})
			if err != nil {
				return err
			}
			defer w.Stop()

			log.Info().Str("dir", dir).Msg("Watching for changes, press Ctrl+C to stop")
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&singlePass, "single-pass", false, "resolve bindings per entity instead of per batch")

	return cmd
}
