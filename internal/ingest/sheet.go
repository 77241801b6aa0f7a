// Package ingest turns an uploaded spreadsheet into a dataset schema and
// string-valued rows. Only the first sheet of a workbook is read.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mesh-intelligence/landrecords/pkg/types"
)

// Sheet is the raw cell grid of one sheet. Rows may be ragged. Merges use
// zero-based sheet coordinates.
type Sheet struct {
	Rows   [][]string
	Merges []types.MergeRange
	// Blanked is set when the reader already dropped cells it cannot
	// represent as text, such as formulas and pictures.
	Blanked bool
}

// Parse reads a spreadsheet, choosing the reader by file extension.
func Parse(name string, r io.Reader) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ParseXLSX(r)
	case ".csv":
		return ParseCSV(r)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, name)
	}
}

// ParseXLSX reads the first sheet of a workbook. Formula and picture cells
// come back blank with Blanked set.
func ParseXLSX(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnsupportedFormat, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, types.ErrEmptySheet
	}
	name := sheets[0]

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	s := &Sheet{Rows: rows}

	width := maxWidth(rows)
	for ri := range rows {
		for ci := 0; ci < width; ci++ {
			cell, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				return nil, err
			}
			formula, err := f.GetCellFormula(name, cell)
			if err != nil {
				return nil, fmt.Errorf("reading formula %s: %w", cell, err)
			}
			if formula != "" {
				s.blank(ri, ci)
			}
		}
	}

	pictures, err := f.GetPictureCells(name)
	if err != nil {
		return nil, fmt.Errorf("reading pictures: %w", err)
	}
	for _, cell := range pictures {
		col, row, err := excelize.CellNameToCoordinates(cell)
		if err != nil {
			return nil, err
		}
		s.blank(row-1, col-1)
	}

	merges, err := f.GetMergeCells(name)
	if err != nil {
		return nil, fmt.Errorf("reading merged cells: %w", err)
	}
	for _, m := range merges {
		sc, sr, err := excelize.CellNameToCoordinates(m.GetStartAxis())
		if err != nil {
			return nil, err
		}
		ec, er, err := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err != nil {
			return nil, err
		}
		s.Merges = append(s.Merges, types.MergeRange{StartRow: sr - 1, StartCol: sc - 1, EndRow: er - 1, EndCol: ec - 1})
	}
	return s, nil
}

// blank flags the cell and clears it if the grid holds it.
func (s *Sheet) blank(row, col int) {
	s.Blanked = true
	if row < len(s.Rows) && col < len(s.Rows[row]) {
		s.Rows[row][col] = ""
	}
}

// ParseCSV reads comma-separated text. A leading UTF-8 byte order mark is
// dropped and rows may have any number of fields.
func ParseCSV(r io.Reader) (*Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnsupportedFormat, err)
	}
	return &Sheet{Rows: rows}, nil
}

func maxWidth(rows [][]string) int {
	w := 0
	for _, r := range rows {
		w = max(w, len(r))
	}
	return w
}
