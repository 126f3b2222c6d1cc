// Package fetcher reads address-pair input files (XLSX or CSV) and writes
// the XLSX result report.
package fetcher

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/ddtlab/distance-cli/internal/model"
)

// Options configures input parsing.
type Options struct {
	SheetIndex int // XLSX only, default 0
	SheetName  string
	SkipRows   int // header rows to skip
	OriginCol  int // default 0
	DestCol    int // default 1
}

// ReadPairs reads the address pairs from an XLSX or CSV file, chosen by
// extension. Rows with a missing origin or destination are kept: the
// pipeline rejects them per-row rather than silently dropping input.
func ReadPairs(path string, opts Options) ([]model.AddressPair, error) {
	if opts.DestCol == 0 {
		opts.DestCol = 1
	}

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path, opts)
	case ".csv":
		rows, err = readCSV(path, opts)
	default:
		return nil, eris.Errorf("fetcher: unsupported input format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	pairs := make([]model.AddressPair, 0, len(rows))
	for i, cells := range rows {
		pairs = append(pairs, model.AddressPair{
			Row:         i,
			Origin:      cellAt(cells, opts.OriginCol),
			Destination: cellAt(cells, opts.DestCol),
		})
	}
	return pairs, nil
}

func readXLSX(path string, opts Options) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open xlsx")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readCSV(path string, opts Options) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read csv")
	}
	if opts.SkipRows >= len(all) {
		return nil, nil
	}
	return all[opts.SkipRows:], nil
}

func getSheet(f *xlsx.File, opts Options) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("fetcher: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("fetcher: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}
