package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// deleteCmd builds a soft-delete command for one entity type.
func deleteCmd(e *env, use, short string, entity func(args []string) (types.EntityType, string, error), nargs int) *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, id, err := entity(args)
			if err != nil {
				return err
			}
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.bin.SoftDelete(cmd.Context(), t, id, by)
			if err != nil {
				return err
			}
			return e.output(cmd.OutOrStdout(), entry, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %s %s to the recycle bin as %s\n", t, id, entry.ID)
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "user recorded as deleter")
	return cmd
}

func newDeleteCmd(e *env) *cobra.Command {
	return deleteCmd(e, "delete <record-id>", "Move a record to the recycle bin",
		func(args []string) (types.EntityType, string, error) {
			return types.EntityRecord, args[0], nil
		}, 1)
}

func newDeleteDatasetCmd(e *env) *cobra.Command {
	return deleteCmd(e, "delete-dataset <dataset-id>", "Move a dataset and its records to the recycle bin",
		func(args []string) (types.EntityType, string, error) {
			return types.EntityDataset, args[0], nil
		}, 1)
}

func newDeleteAuxCmd(e *env) *cobra.Command {
	return deleteCmd(e, "delete-aux <kind> <id>", "Move an auxiliary entity to the recycle bin",
		func(args []string) (types.EntityType, string, error) {
			kind, err := parseAuxKind(args[0])
			if err != nil {
				return "", "", err
			}
			return types.EntityType(kind), args[1], nil
		}, 2)
}

func newRestoreCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <entry-id>",
		Short: "Restore a recycle bin entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := a.bin.Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: bin entry %s", types.ErrNotFound, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", args[0])
			return nil
		},
	}
}

func newPurgeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <entry-id>",
		Short: "Delete a recycle bin entry for good",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.bin.Purge(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %s\n", args[0])
			return nil
		},
	}
}

func newEmptyBinCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "empty-bin",
		Short: "Delete every recycle bin entry for good",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.bin.EmptyBin(cmd.Context())
			if err != nil {
				return err
			}
			return e.output(cmd.OutOrStdout(), map[string]int{"purged": n}, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d entries\n", n)
			})
		},
	}
}

func newBinCmd(e *env) *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   "bin",
		Short: "List recycle bin entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.bin.List(cmd.Context(), module)
			if err != nil {
				return err
			}
			return e.output(cmd.OutOrStdout(), entries, func() { printBin(cmd.OutOrStdout(), entries) })
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "only entries from this module")
	return cmd
}
