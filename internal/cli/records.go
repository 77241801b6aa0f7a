package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDatasetsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets <module>",
		Short: "List the datasets imported into a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ds, err := a.records.ListDatasets(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return e.output(cmd.OutOrStdout(), ds, func() { printDatasets(cmd.OutOrStdout(), ds) })
		},
	}
}

func newListCmd(e *env) *cobra.Command {
	var datasetID string
	cmd := &cobra.Command{
		Use:   "list <module>",
		Short: "List the records of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			recs, err := a.records.ListRecords(cmd.Context(), args[0], datasetID)
			if err != nil {
				return err
			}
			return e.output(cmd.OutOrStdout(), recs, func() { printRecords(cmd.OutOrStdout(), recs) })
		},
	}
	cmd.Flags().StringVar(&datasetID, "dataset", "", "only records of this dataset")
	return cmd
}

func newInsertCmd(e *env) *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "insert <dataset-id> [column=value...]",
		Short: "Insert a record by hand",
		Long: "Insert a record into a dataset. Columns of the dataset that are not\n" +
			"given are left blank. The record is flagged for review.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.records.InsertManual(cmd.Context(), args[0], values, by)
			if err != nil {
				return err
			}
			return e.output(cmd.OutOrStdout(), r, func() {
				fmt.Fprintln(cmd.OutOrStdout(), r.ID)
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "user recorded as creator")
	return cmd
}

func newEditCmd(e *env) *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "edit <record-id> column=value...",
		Short: "Change fields of a record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.records.EditRecord(cmd.Context(), args[0], changes, by)
			if err != nil {
				return err
			}
			return e.output(cmd.OutOrStdout(), r, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", r.ID)
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "user recorded as editor")
	return cmd
}

func newAckCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ack <module>",
		Short: "Clear the review flag on every record of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.records.ClearModifiedFlags(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return e.output(cmd.OutOrStdout(), map[string]int{"cleared": n}, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d records\n", n)
			})
		},
	}
}

func newAddColumnCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "add-column <dataset-id> <name>",
		Short: "Add an empty column to a dataset and its records",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.records.AddColumn(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added column %q to %s\n", args[1], args[0])
			return nil
		},
	}
}
