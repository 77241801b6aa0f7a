package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// HeaderScanRows is how many leading rows are searched for the header row.
const HeaderScanRows = 20

// Text markers left in cells by spreadsheet tools for embedded images.
var imageMarkers = []string{"DISPIMG(", "_xlfn.IMAGE(", "#PICTURE", "[image]"}

// Options tunes Process.
type Options struct {
	// Headerless skips header detection: every row is data and columns
	// are named by zero-based position.
	Headerless bool
}

// Result is an ingested sheet ready to become a dataset.
type Result struct {
	Columns []string
	Rows    []types.Columns
	// MergedCells are relative to the data grid: row 0 is the first data
	// row and column i is Columns[i].
	MergedCells []types.MergeRange
	// HeaderRow is the zero-based sheet row used as header, or -1.
	HeaderRow             int
	HadUnsupportedContent bool
}

// Process converts a parsed sheet. Unsupported cells are blanked and
// flagged; ingestion still succeeds. An entirely empty sheet returns
// ErrEmptySheet. A sheet whose leading rows are all blank returns
// ErrNoHeaders unless Headerless is set.
func Process(s *Sheet, opts Options) (*Result, error) {
	grid := copyGrid(s.Rows)
	if isEmpty(grid) {
		return nil, types.ErrEmptySheet
	}

	res := &Result{HeaderRow: -1, HadUnsupportedContent: s.Blanked}
	if blankUnsupported(grid) {
		res.HadUnsupportedContent = true
	}

	// Header detection runs on the unfilled grid so a banner merged
	// across the sheet does not outcount the real header row.
	headerRow := -1
	if !opts.Headerless {
		headerRow = detectHeader(grid)
		if headerRow < 0 {
			return nil, types.ErrNoHeaders
		}
	}
	res.HeaderRow = headerRow

	grid = fillMerges(grid, s.Merges)
	grid = dropTrailingEmpty(grid)
	data := grid[headerRow+1:]

	var cols []int
	width := maxWidth(grid)
	if headerRow < 0 {
		for i := 0; i < width; i++ {
			cols = append(cols, i)
			res.Columns = append(res.Columns, strconv.Itoa(i))
		}
	} else {
		cols, res.Columns = headerColumns(grid[headerRow], data, width)
	}

	for _, row := range data {
		var rec types.Columns
		for i, ci := range cols {
			rec.Set(res.Columns[i], cell(row, ci))
		}
		res.Rows = append(res.Rows, rec)
	}
	res.MergedCells = translateMerges(s.Merges, headerRow, cols, len(data))
	return res, nil
}

// Build turns the result into a dataset and imported records. Record ids
// embed batch and the one-based row ordinal so id order is row order.
func (r *Result) Build(module, fileName, by string, batch time.Time) (*types.Dataset, []*types.Record) {
	d := &types.Dataset{
		ID:         types.DatasetID(module, batch),
		FileName:   fileName,
		Module:     module,
		UploadDate: batch,
		UploadedBy: by,
		RowCount:   len(r.Rows),
		Columns:    append([]string(nil), r.Columns...),
		Metadata: types.DatasetMetadata{
			MergedCells:           append([]types.MergeRange(nil), r.MergedCells...),
			HeaderRow:             r.HeaderRow,
			HadUnsupportedContent: r.HadUnsupportedContent,
		},
	}
	recs := make([]*types.Record, len(r.Rows))
	for i, cols := range r.Rows {
		id := types.RecordID(module, types.RecordKindRow, batch, i+1)
		recs[i] = types.NewImportedRecord(id, module, d.ID, cols.Clone(), by, batch)
	}
	return d, recs
}

func copyGrid(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// cell returns the raw value at i, or "" past the end of a ragged row.
func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func rowEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func isEmpty(grid [][]string) bool {
	for _, row := range grid {
		if !rowEmpty(row) {
			return false
		}
	}
	return true
}

// unsupported reports formula text and embedded-image markers.
func unsupported(v string) bool {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "=") {
		return true
	}
	for _, m := range imageMarkers {
		if strings.Contains(v, m) {
			return true
		}
	}
	return false
}

func blankUnsupported(grid [][]string) bool {
	found := false
	for _, row := range grid {
		for i, v := range row {
			if unsupported(v) {
				row[i] = ""
				found = true
			}
		}
	}
	return found
}

// fillMerges copies each range's top-left value into every cell of the
// range, growing the grid where the range reaches past it.
func fillMerges(grid [][]string, merges []types.MergeRange) [][]string {
	for _, m := range merges {
		if m.StartRow < 0 || m.StartCol < 0 || m.EndRow < m.StartRow || m.EndCol < m.StartCol {
			continue
		}
		v := ""
		if m.StartRow < len(grid) {
			v = cell(grid[m.StartRow], m.StartCol)
		}
		for len(grid) <= m.EndRow {
			grid = append(grid, nil)
		}
		for r := m.StartRow; r <= m.EndRow; r++ {
			for len(grid[r]) <= m.EndCol {
				grid[r] = append(grid[r], "")
			}
			for c := m.StartCol; c <= m.EndCol; c++ {
				grid[r][c] = v
			}
		}
	}
	return grid
}

func dropTrailingEmpty(grid [][]string) [][]string {
	n := len(grid)
	for n > 0 && rowEmpty(grid[n-1]) {
		n--
	}
	return grid[:n]
}

// detectHeader picks the row with the most non-empty cells among the first
// HeaderScanRows rows. Ties keep the earliest row. Returns -1 when all of
// them are empty.
func detectHeader(grid [][]string) int {
	best, bestCount := -1, 0
	for i := 0; i < len(grid) && i < HeaderScanRows; i++ {
		n := 0
		for _, v := range grid[i] {
			if strings.TrimSpace(v) != "" {
				n++
			}
		}
		if n > bestCount {
			best, bestCount = i, n
		}
	}
	return best
}

// headerColumns names the columns from the header row. A blank header
// cell over a column holding data is named by its position; a blank header
// over an empty column is skipped. Repeated names get _2, _3 and so on.
func headerColumns(header []string, data [][]string, width int) ([]int, []string) {
	var (
		idx   []int
		names []string
	)
	seen := make(map[string]bool)
	for ci := 0; ci < width; ci++ {
		name := strings.TrimSpace(cell(header, ci))
		if name == "" {
			if !columnHasData(data, ci) {
				continue
			}
			name = strconv.Itoa(ci)
		}
		if seen[name] {
			base := name
			for n := 2; seen[name]; n++ {
				name = base + "_" + strconv.Itoa(n)
			}
		}
		seen[name] = true
		idx = append(idx, ci)
		names = append(names, name)
	}
	return idx, names
}

func columnHasData(data [][]string, ci int) bool {
	for _, row := range data {
		if strings.TrimSpace(cell(row, ci)) != "" {
			return true
		}
	}
	return false
}

// translateMerges maps sheet merges onto the data grid. Ranges entirely in
// or above the header row, or over skipped columns only, are dropped.
func translateMerges(merges []types.MergeRange, headerRow int, cols []int, dataRows int) []types.MergeRange {
	pos := make(map[int]int, len(cols))
	for i, ci := range cols {
		pos[ci] = i
	}
	var out []types.MergeRange
	for _, m := range merges {
		sr := m.StartRow - headerRow - 1
		er := min(m.EndRow-headerRow-1, dataRows-1)
		if er < 0 || sr > er {
			continue
		}
		sr = max(sr, 0)

		sc, ec := -1, -1
		for c := m.StartCol; c <= m.EndCol; c++ {
			p, ok := pos[c]
			if !ok {
				continue
			}
			if sc < 0 {
				sc = p
			}
			ec = p
		}
		if sc < 0 {
			continue
		}
		out = append(out, types.MergeRange{StartRow: sr, StartCol: sc, EndRow: er, EndCol: ec})
	}
	return out
}
