package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// userErrors are failures caused by the arguments rather than the system.
var userErrors = []error{
	types.ErrNotFound,
	types.ErrInvalidID,
	types.ErrInvalidData,
	types.ErrInvalidModule,
	types.ErrInvalidKind,
	types.ErrInvalidColumn,
	types.ErrEmptySheet,
	types.ErrNoHeaders,
	types.ErrUnsupportedFormat,
	errUsage,
}

var errUsage = errors.New("usage")

// exitCode maps err to the process exit status.
func exitCode(err error) int {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

// parseAssignments turns name=value arguments into ordered columns.
func parseAssignments(args []string) (types.Columns, error) {
	var cols types.Columns
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return cols, fmt.Errorf("%w: expected column=value, got %q", errUsage, a)
		}
		cols.Set(name, value)
	}
	return cols, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func printDatasets(w io.Writer, ds []*types.Dataset) {
	if len(ds) == 0 {
		fmt.Fprintln(w, "No datasets found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tROWS\tUPLOADED")
	for _, d := range ds {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.ID, d.FileName, d.RowCount, d.UploadDate.Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

func printRecords(w io.Writer, recs []*types.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No records found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFLAGS\tCOLUMNS")
	for _, r := range recs {
		var parts []string
		r.Columns.Range(func(name, value string) bool {
			parts = append(parts, name+"="+value)
			return true
		})
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, flags(r), strings.Join(parts, " "))
	}
	tw.Flush()
}

// flags renders N (new), U (updated) and M (needs review).
func flags(r *types.Record) string {
	f := []byte("---")
	if r.IsNew {
		f[0] = 'N'
	}
	if r.IsUpdated {
		f[1] = 'U'
	}
	if r.IsModified {
		f[2] = 'M'
	}
	return string(f)
}

func printBin(w io.Writer, entries []*types.RecycleBinEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Recycle bin is empty.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY\tTYPE\tENTITY\tMODULE\tDELETED BY\tDELETED AT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.EntityType, e.EntityID, e.SourceModule, e.DeletedBy, e.DeletedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

// output prints v as JSON in --json mode, otherwise calls text.
func (e *env) output(w io.Writer, v any, text func()) error {
	if e.jsonMode {
		return printJSON(w, v)
	}
	text()
	return nil
}
