package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/schemasync/schemasync/pkg/config"
)

func newInitCommand() *cobra.Command {
	var (
		name  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize a schemasync workspace",
		Long: `Initialize a new workspace: write a default schemasync.cue, create the
document directory and create the SQLite database with its schema.`,
		Example: `  # Initialize the current directory
  schemasync init

  # Initialize another directory with a workspace name
  schemasync init ./site --name site`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			if name == "" {
				abs, err := filepath.Abs(dir)
				if err != nil {
					return err
				}
				name = filepath.Base(abs)
			}

			log.Info().
				Str("dir", dir).
				Str("name", name).
				Bool("force", force).
				Msg("Initializing workspace")

			path, err := config.WriteDefault(dir, name, force)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Created workspace file: %s\n", path)

			ws, err := config.NewLoader().LoadWorkspace(ctx, path)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(ws.Sync.Dir, 0o755); err != nil {
				return fmt.Errorf("failed to create document directory: %w", err)
			}
			fmt.Printf("✓ Created document directory: %s\n", ws.Sync.Dir)

			store, err := openStore(ctx, ws)
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Printf("✓ Initialized SQLite database: %s\n", ws.Store.Path)

			fmt.Printf("\nWorkspace %q initialized.\n\n", ws.Name)
			fmt.Printf("Next steps:\n")
			fmt.Printf("  1. Register data types:\n")
			fmt.Printf("     schemasync datatypes add --key <uuid> --name Textstring --editor Umbraco.TextBox\n\n")
			fmt.Printf("  2. Import documents:\n")
			fmt.Printf("     schemasync import\n\n")

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "workspace name (default: directory name)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing schemasync.cue")

	return cmd
}
