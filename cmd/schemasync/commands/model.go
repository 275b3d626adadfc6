package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/schemasync/schemasync/pkg/schema"
)

func newDataTypesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "datatypes",
		Aliases: []string{"dt"},
		Short:   "Manage data type definitions",
		Long: `Manage the data type definitions that fields reference.

Documents refer to data types by key, so a data type must exist in the
store before documents that use it can be imported.`,
	}

	cmd.AddCommand(newDataTypesListCommand())
	cmd.AddCommand(newDataTypesAddCommand())

	return cmd
}

func newDataTypesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List data type definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			defs, err := s.store.ListDataTypes(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(os.Stdout, defs)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKEY\tNAME\tEDITOR")
			for _, def := range defs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", def.ID, def.Key, def.Name, def.EditorAlias)
			}
			return tw.Flush()
		},
	}
}

func newDataTypesAddCommand() *cobra.Command {
	var (
		key    string
		name   string
		editor string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a data type definition",
		Example: `  schemasync datatypes add --key 0cc0eba1-9960-42c9-bf9b-60e150b429ae \
    --name Textstring --editor Umbraco.TextBox`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			def := &schema.DataTypeDefinition{Name: name, EditorAlias: editor}
			if key != "" {
				parsed, err := uuid.Parse(key)
				if err != nil {
					return fmt.Errorf("invalid key %q: %w", key, err)
				}
				def.Key = parsed
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			if err := s.store.SaveDataType(ctx, def); err != nil {
				return err
			}

			log.Info().
				Int64("id", def.ID).
				Str("key", def.Key.String()).
				Str("editor", def.EditorAlias).
				Msg("Saved data type")

			if jsonOutput {
				return printJSON(os.Stdout, def)
			}
			fmt.Printf("✓ Data type %s (%d) saved with key %s\n", def.Name, def.ID, def.Key)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "stable key (default: generated)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&editor, "editor", "", "property editor alias, e.g. Umbraco.TextBox")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("editor")

	return cmd
}

func newEntitiesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Inspect the live model",
	}

	cmd.AddCommand(newEntitiesListCommand())
	cmd.AddCommand(newEntitiesRemoveCommand())

	return cmd
}

func newEntitiesListCommand() *cobra.Command {
	var kinds []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			wanted := []schema.Kind{schema.KindDocumentType, schema.KindMediaType}
			if len(kinds) > 0 {
				var err error
				if wanted, err = parseKinds(kinds); err != nil {
					return err
				}
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			var entities []*schema.Entity
			for _, kind := range wanted {
				list, err := s.store.ListEntities(ctx, kind)
				if err != nil {
					return err
				}
				entities = append(entities, list...)
			}

			if jsonOutput {
				return printJSON(os.Stdout, entities)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tALIAS\tNAME\tMASTER\tGROUPS\tFIELDS")
			for _, e := range entities {
				master := "-"
				if e.Parent != nil {
					master = e.Parent.Alias
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", e.Kind, e.Alias, e.Name, master, len(e.Groupings), len(e.Fields))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "limit to kinds (DocumentType, MediaType)")

	return cmd
}

func newEntitiesRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <kind> <alias>",
		Aliases: []string{"remove"},
		Short:   "Remove an entity from the live model",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			kind, err := schema.ParseKind(args[0])
			if err != nil {
				return err
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			if err := s.store.DeleteEntity(ctx, kind, args[1]); err != nil {
				return err
			}
			fmt.Printf("✓ Removed %s %s\n", kind, args[1])
			return nil
		},
	}
}
