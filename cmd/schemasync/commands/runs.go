package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRunsCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List sync run history",
		Long:  `List recorded import and export runs, newest first.`,
		Example: `  # Show the last 10 runs
  schemasync runs --limit 10

  # Show the items of a run
  schemasync runs show 3f0c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			runs, err := s.store.ListSyncRuns(ctx, limit, offset)
			if err != nil {
				return err
			}
			if len(runs) == 0 && !jsonOutput {
				fmt.Println("No sync runs recorded")
				return nil
			}
			return printRuns(os.Stdout, runs)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")

	cmd.AddCommand(newRunsShowCommand())

	return cmd
}

func newRunsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one sync run and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			run, err := s.store.GetSyncRun(ctx, args[0])
			if err != nil {
				return err
			}
			items, err := s.store.ListSyncItems(ctx, run.ID)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(os.Stdout, map[string]interface{}{
					"run":   run,
					"items": items,
				})
			}

			fmt.Printf("Run:       %s\n", run.ID)
			fmt.Printf("Direction: %s\n", run.Direction)
			fmt.Printf("Status:    %s\n", run.Status)
			fmt.Printf("Source:    %s\n", run.Source)
			fmt.Printf("Started:   %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
			if run.CompletedAt != nil {
				fmt.Printf("Completed: %s\n", run.CompletedAt.Local().Format("2006-01-02 15:04:05"))
			}
			if run.Error != nil {
				fmt.Printf("Error:     %s\n", *run.Error)
			}
			fmt.Println()

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CHANGE\tKIND\tALIAS\tCHANGES\tDETAIL")
			for _, item := range items {
				detail := strings.Join(item.Issues, "; ")
				if item.Error != nil {
					detail = *item.Error
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", item.Change, item.Kind, item.Alias, item.Changes, detail)
			}
			return tw.Flush()
		},
	}
}
