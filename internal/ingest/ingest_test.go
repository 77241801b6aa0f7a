package ingest

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

const sheet1 = "Sheet1"

// workbook builds an in-memory xlsx from cell assignments.
func workbook(t *testing.T, build func(f *excelize.File)) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	build(f)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func setRow(t *testing.T, f *excelize.File, cell string, values ...any) {
	t.Helper()
	require.NoError(t, f.SetSheetRow(sheet1, cell, &values))
}

func process(t *testing.T, name, content string, opts Options) (*Result, error) {
	t.Helper()
	s, err := Parse(name, strings.NewReader(content))
	require.NoError(t, err)
	return Process(s, opts)
}

func TestBannerRowIsSkipped(t *testing.T) {
	tests := []struct {
		name  string
		merge bool
	}{
		{"plain banner", false},
		{"banner merged across the header width", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := workbook(t, func(f *excelize.File) {
				setRow(t, f, "A1", "Village Account No. 2 - Melur")
				setRow(t, f, "A2", "S.No", "Survey No", "Sub Div", "Owner", "Patta", "Dry", "Wet", "Remarks")
				setRow(t, f, "A3", "1", "12", "A", "Ravi", "101", "2.5", "", "ok")
				setRow(t, f, "A4", "2", "13", "B", "Mala", "102", "", "1.0", "")
				if tt.merge {
					require.NoError(t, f.MergeCell(sheet1, "A1", "H1"))
				}
			})
			s, err := ParseXLSX(r)
			require.NoError(t, err)

			res, err := Process(s, Options{})
			require.NoError(t, err)
			assert.Equal(t, 1, res.HeaderRow)
			assert.Equal(t, []string{"S.No", "Survey No", "Sub Div", "Owner", "Patta", "Dry", "Wet", "Remarks"}, res.Columns)
			require.Len(t, res.Rows, 2)
			assert.Equal(t, "Ravi", res.Rows[0].Value("Owner"))
			assert.Equal(t, "", res.Rows[0].Value("Wet"))
			assert.Equal(t, res.Columns, res.Rows[1].Keys(), "every column is present on every row")
			assert.Empty(t, res.MergedCells)
			assert.False(t, res.HadUnsupportedContent)
		})
	}
}

func TestMergedCellsArePropagated(t *testing.T) {
	r := workbook(t, func(f *excelize.File) {
		setRow(t, f, "A1", "Survey No", "Owner")
		setRow(t, f, "A2", "12", "Ravi")
		setRow(t, f, "B3", "Mala")
		require.NoError(t, f.MergeCell(sheet1, "A2", "A3"))
	})
	s, err := ParseXLSX(r)
	require.NoError(t, err)
	require.Equal(t, []types.MergeRange{{StartRow: 1, StartCol: 0, EndRow: 2, EndCol: 0}}, s.Merges)

	res, err := Process(s, Options{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "12", res.Rows[0].Value("Survey No"))
	assert.Equal(t, "12", res.Rows[1].Value("Survey No"))
	assert.Equal(t, []types.MergeRange{{StartRow: 0, StartCol: 0, EndRow: 1, EndCol: 0}}, res.MergedCells)
}

func TestFormulaCellsAreBlanked(t *testing.T) {
	r := workbook(t, func(f *excelize.File) {
		setRow(t, f, "A1", "Dry", "Wet", "Total")
		setRow(t, f, "A2", "1", "2")
		require.NoError(t, f.SetCellFormula(sheet1, "C2", "SUM(A2:B2)"))
	})
	s, err := ParseXLSX(r)
	require.NoError(t, err)
	assert.True(t, s.Blanked)

	res, err := Process(s, Options{})
	require.NoError(t, err)
	assert.True(t, res.HadUnsupportedContent)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "1", res.Rows[0].Value("Dry"))
	assert.Equal(t, "", res.Rows[0].Value("Total"))
}

func TestUnsupportedTextIsBlanked(t *testing.T) {
	tests := []struct {
		name string
		cell string
	}{
		{"formula text", "=A1*2"},
		{"dispimg", `"=DISPIMG(""ID_0F3A"",1)"`},
		{"xlfn image", `_xlfn.IMAGE("https://example.org/fmb.png")`},
		{"picture marker", "#PICTURE"},
		{"image placeholder", "[image]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := process(t, "sheet.csv", "Owner,Sketch\nRavi,"+tt.cell+"\n", Options{})
			require.NoError(t, err)
			assert.True(t, res.HadUnsupportedContent)
			require.Len(t, res.Rows, 1)
			assert.Equal(t, "Ravi", res.Rows[0].Value("Owner"))
			assert.Equal(t, "", res.Rows[0].Value("Sketch"))
		})
	}
}

func TestEmptySheet(t *testing.T) {
	_, err := process(t, "empty.csv", "", Options{})
	assert.ErrorIs(t, err, types.ErrEmptySheet)

	_, err = process(t, "blank.csv", ",,\n , \n", Options{})
	assert.ErrorIs(t, err, types.ErrEmptySheet)

	s, err := ParseXLSX(workbook(t, func(*excelize.File) {}))
	require.NoError(t, err)
	_, err = Process(s, Options{})
	assert.ErrorIs(t, err, types.ErrEmptySheet)
}

func TestHeaderOnlyYieldsNoRecords(t *testing.T) {
	res, err := process(t, "header.csv", "Survey No,Owner\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Survey No", "Owner"}, res.Columns)
	assert.Empty(t, res.Rows)
}

func TestNoHeaderInScanWindow(t *testing.T) {
	content := strings.Repeat(",\n", HeaderScanRows) + "x,y\n"
	_, err := process(t, "late.csv", content, Options{})
	assert.ErrorIs(t, err, types.ErrNoHeaders)

	res, err := process(t, "late.csv", content, Options{Headerless: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, res.Columns)
}

func TestHeaderTieKeepsFirstRow(t *testing.T) {
	res, err := process(t, "tie.csv", "a,b\nc,d\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.HeaderRow)
	assert.Equal(t, []string{"a", "b"}, res.Columns)
	require.Len(t, res.Rows, 1)
}

func TestWideRowsAreNotTruncated(t *testing.T) {
	res, err := process(t, "wide.csv", "a,b\n1,2,3\n4\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "2"}, res.Columns)
	assert.Equal(t, "3", res.Rows[0].Value("2"))
	assert.Equal(t, "", res.Rows[1].Value("2"))
	assert.Equal(t, "", res.Rows[1].Value("b"))
}

func TestBlankHeaderCells(t *testing.T) {
	res, err := process(t, "gap.csv", "a,,c\n1,,3\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, res.Columns)

	res, err = process(t, "gap.csv", "a,,c\n1,2,3\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "1", "c"}, res.Columns)
	assert.Equal(t, "2", res.Rows[0].Value("1"))
}

func TestDuplicateHeaders(t *testing.T) {
	res, err := process(t, "dup.csv", "Name,Name, Name ,Name_2\n1,2,3,4\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Name_2", "Name_3", "Name_2_2"}, res.Columns)
	assert.Equal(t, "4", res.Rows[0].Value("Name_2_2"))
}

func TestHeaderlessUsesMaxWidth(t *testing.T) {
	res, err := process(t, "raw.csv", "1\n2,3\n4,5,6\n", Options{Headerless: true})
	require.NoError(t, err)
	assert.Equal(t, -1, res.HeaderRow)
	assert.Equal(t, []string{"0", "1", "2"}, res.Columns)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "", res.Rows[0].Value("2"))
	assert.Equal(t, "6", res.Rows[2].Value("2"))
}

func TestTrailingEmptyRowsAreDropped(t *testing.T) {
	res, err := process(t, "tail.csv", "a,b\n1,2\n,\n , \n", Options{})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
}

func TestDataCellsKeepSpaces(t *testing.T) {
	res, err := process(t, "pad.csv", " Owner ,Remarks\nRavi,  see FMB \n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Owner", "Remarks"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "  see FMB ", res.Rows[0].Value("Remarks"))
}

func TestCSVByteOrderMark(t *testing.T) {
	res, err := process(t, "bom.csv", "\xef\xbb\xbfOwner,Patta\nRavi,7\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Owner", "Patta"}, res.Columns)
}

func TestParseRejectsUnknownFormat(t *testing.T) {
	_, err := Parse("scan.pdf", strings.NewReader("%PDF"))
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)

	_, err = ParseXLSX(strings.NewReader("not a zip"))
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)
}

func TestBuild(t *testing.T) {
	res, err := process(t, "chitta.csv", "Patta,Owner\n7,Ravi\n8,Mala\n", Options{})
	require.NoError(t, err)
	batch := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	d, recs := res.Build(types.ModuleChitta, "chitta.csv", "clerk", batch)
	assert.Equal(t, types.DatasetID(types.ModuleChitta, batch), d.ID)
	assert.Equal(t, 2, d.RowCount)
	assert.Equal(t, []string{"Patta", "Owner"}, d.Columns)
	assert.Equal(t, 0, d.Metadata.HeaderRow)
	require.NoError(t, d.Validate())

	require.Len(t, recs, 2)
	assert.Equal(t, "chitta_row_1773480600000_000001", recs[0].ID)
	assert.Less(t, recs[0].ID, recs[1].ID)
	for _, r := range recs {
		assert.Equal(t, d.ID, r.FileID)
		assert.True(t, r.IsNew)
		assert.False(t, r.IsModified)
		assert.Equal(t, "clerk", r.CreatedBy)
	}
	assert.Equal(t, "Mala", recs[1].Columns.Value("Owner"))
}
