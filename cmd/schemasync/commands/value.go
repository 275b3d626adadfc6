package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/schemasync/schemasync/pkg/mappers"
	"github.com/schemasync/schemasync/pkg/schema"
	"github.com/schemasync/schemasync/pkg/stores"
)

func newValueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "value",
		Short: "Map property values between host-local and portable form",
		Long: `Map a property value through the value mapper registered for its data
type's editor. Nested content values carry host-local data type ids that
export replaces with portable keys, and import maps back.

Values of editors without a mapper pass through unchanged. The value is
read from the argument, or from stdin when omitted.`,
	}

	cmd.AddCommand(newValueMapCommand("export", "Map a host-local value to its portable form",
		func(ctx context.Context, r *mappers.Registry, def *schema.DataTypeDefinition, v string) (string, error) {
			return r.ExportValue(ctx, def, v)
		}))
	cmd.AddCommand(newValueMapCommand("import", "Map a portable value to its host-local form",
		func(ctx context.Context, r *mappers.Registry, def *schema.DataTypeDefinition, v string) (string, error) {
			return r.ImportValue(ctx, def, v)
		}))

	return cmd
}

type mapFunc func(ctx context.Context, r *mappers.Registry, def *schema.DataTypeDefinition, value string) (string, error)

func newValueMapCommand(use, short string, fn mapFunc) *cobra.Command {
	var dataType string

	cmd := &cobra.Command{
		Use:   use + " [value]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			key, err := uuid.Parse(dataType)
			if err != nil {
				return fmt.Errorf("invalid data type key %q: %w", dataType, err)
			}

			value, err := readValue(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			def, err := s.store.DataTypeByKey(ctx, key)
			if err != nil {
				return err
			}
			if def == nil {
				return fmt.Errorf("data type %s not found", key)
			}

			registry := mappers.NewDefaultRegistry(s.store, stores.DataTypes(s.store), s.tel.Logger)
			out, err := fn(ctx, registry, def, value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataType, "data-type", "d", "", "key of the value's data type")
	_ = cmd.MarkFlagRequired("data-type")

	return cmd
}

func readValue(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read value: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
