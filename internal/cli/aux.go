package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

func parseAuxKind(s string) (types.AuxKind, error) {
	k := types.AuxKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q (want one of %v)", types.ErrInvalidKind, s, types.AuxKinds)
	}
	return k, nil
}

func newAuxCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aux",
		Short: "Manage map overlays, sketches and attendance entries",
	}
	cmd.AddCommand(newAuxListCmd(e), newAuxAddCmd(e))
	return cmd
}

func newAuxListCmd(e *env) *cobra.Command {
	var filter types.AuxFilter
	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List auxiliary entities of one kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseAuxKind(args[0])
			if err != nil {
				return err
			}
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.orch.ListAux(cmd.Context(), kind, filter)
			if err != nil {
				return err
			}
			return e.output(cmd.OutOrStdout(), items, func() {
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No entries found.")
					return
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tMODULE\tUSER\tDATE\tFILE")
				for _, it := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Module, it.UserID, it.Date, it.FileName)
				}
				tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&filter.Module, "module", "", "only entries of this module")
	cmd.Flags().StringVar(&filter.UserID, "user", "", "only entries of this user")
	cmd.Flags().StringVar(&filter.Date, "date", "", "only entries of this date")
	return cmd
}

func newAuxAddCmd(e *env) *cobra.Command {
	var (
		item     types.AuxEntity
		bodyFile string
	)
	cmd := &cobra.Command{
		Use:   "add <kind>",
		Short: "Store an auxiliary entity",
		Long:  "Store an auxiliary entity. --body names a JSON file kept verbatim.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseAuxKind(args[0])
			if err != nil {
				return err
			}
			item.Kind = kind
			if bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return err
				}
				if !json.Valid(data) {
					return fmt.Errorf("%w: %s is not JSON", types.ErrInvalidData, bodyFile)
				}
				item.Body = data
			}
			if item.ID == "" {
				item.ID = uuid.NewString()
			}

			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			item.CreatedAt = a.clock.Now()
			if err := a.orch.PutAux(cmd.Context(), &item); err != nil {
				return err
			}
			return e.output(cmd.OutOrStdout(), &item, func() {
				fmt.Fprintln(cmd.OutOrStdout(), item.ID)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&item.ID, "id", "", "entity ID (default: generated)")
	f.StringVar(&item.Module, "module", "", "owning module")
	f.StringVar(&item.UserID, "user", "", "user the entry belongs to")
	f.StringVar(&item.Date, "date", "", "entry date")
	f.StringVar(&item.FileName, "file-name", "", "original file name")
	f.StringVar(&bodyFile, "body", "", "path to a JSON body")
	return cmd
}
