package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newExportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write every local table to JSONL files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := e.openLocal()
			if err != nil {
				return err
			}
			defer local.Detach()

			counts, err := local.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return e.output(cmd.OutOrStdout(), counts, func() { printCounts(cmd, "Exported", counts) })
		},
	}
}

func newImportBackupCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import-backup <dir>",
		Short: "Load JSONL files written by export into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := e.openLocal()
			if err != nil {
				return err
			}
			defer local.Detach()

			counts, err := local.Import(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return e.output(cmd.OutOrStdout(), counts, func() { printCounts(cmd, "Imported", counts) })
		},
	}
}

func printCounts(cmd *cobra.Command, verb string, counts map[string]int) {
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d rows from %s\n", verb, counts[t], t)
	}
}
