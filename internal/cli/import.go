package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/landrecords/internal/ingest"
	"github.com/mesh-intelligence/landrecords/pkg/types"
)

type importResult struct {
	Dataset     *types.Dataset `json:"dataset"`
	Records     int            `json:"records"`
	Unsupported bool           `json:"hadUnsupportedContent"`
}

func newImportCmd(e *env) *cobra.Command {
	var (
		by         string
		headerless bool
	)
	cmd := &cobra.Command{
		Use:   "import <module> <file>",
		Short: "Import a spreadsheet as a new dataset",
		Long: "Parse an XLSX or CSV file, detect its header row, fill merged cells and\n" +
			"store every data row as a record of module.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, path := args[0], args[1]
			if err := types.ValidateModule(module); err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			name := filepath.Base(path)
			sheet, err := ingest.Parse(name, f)
			if err != nil {
				return fmt.Errorf("reading %s: %w", name, err)
			}
			res, err := ingest.Process(sheet, ingest.Options{Headerless: headerless})
			if err != nil {
				return fmt.Errorf("reading %s: %w", name, err)
			}

			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ds, recs := res.Build(module, name, by, a.clock.Now())
			if res.HadUnsupportedContent {
				e.log.Warn("formulas or images were blanked during import", zap.String("file", name))
			}
			err = a.records.ImportDataset(cmd.Context(), ds, recs)
			var batchErr *types.BatchError
			if errors.As(err, &batchErr) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d of %d records were not saved\n",
					len(recs)-batchErr.Committed, len(recs))
			}
			if err != nil {
				return err
			}

			return e.output(cmd.OutOrStdout(), importResult{Dataset: ds, Records: len(recs), Unsupported: res.HadUnsupportedContent}, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records into %s\n", len(recs), ds.ID)
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "user recorded as uploader")
	cmd.Flags().BoolVar(&headerless, "headerless", false, "treat every row as data and name columns by position")
	return cmd
}
