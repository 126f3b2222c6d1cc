package fetcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/ddtlab/distance-cli/internal/geocache"
	"github.com/ddtlab/distance-cli/internal/model"
)

func writeTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Addresses")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(t.TempDir(), "input.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func writeTestCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadPairs_XLSX(t *testing.T) {
	path := writeTestXLSX(t, [][]string{
		{"Origin", "Destination"},
		{"PARIS", "LYON"},
		{"  MARSEILLE ", "NICE"},
	})

	pairs, err := ReadPairs(path, Options{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, model.AddressPair{Row: 0, Origin: "PARIS", Destination: "LYON"}, pairs[0])
	assert.Equal(t, "MARSEILLE", pairs[1].Origin, "cells are trimmed")
}

func TestReadPairs_CSV(t *testing.T) {
	path := writeTestCSV(t, "origin,destination\nPARIS,LYON\nLILLE,METZ\n")

	pairs, err := ReadPairs(path, Options{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "LILLE", pairs[1].Origin)
	assert.Equal(t, "METZ", pairs[1].Destination)
}

func TestReadPairs_CustomColumns(t *testing.T) {
	path := writeTestCSV(t, "id,from,to\n1,PARIS,LYON\n")

	pairs, err := ReadPairs(path, Options{SkipRows: 1, OriginCol: 1, DestCol: 2})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "PARIS", pairs[0].Origin)
	assert.Equal(t, "LYON", pairs[0].Destination)
}

func TestReadPairs_KeepsBlankRows(t *testing.T) {
	path := writeTestCSV(t, "origin,destination\nPARIS,\n,LYON\n")

	pairs, err := ReadPairs(path, Options{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, pairs, 2, "blank rows are kept for per-row rejection")
	assert.True(t, pairs[0].Blank())
	assert.True(t, pairs[1].Blank())
}

func TestReadPairs_ShortRows(t *testing.T) {
	path := writeTestCSV(t, "origin,destination\nPARIS\n")

	pairs, err := ReadPairs(path, Options{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "PARIS", pairs[0].Origin)
	assert.Empty(t, pairs[0].Destination)
}

func TestReadPairs_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := ReadPairs(path, Options{})
	require.Error(t, err)
}

func TestReadPairs_MissingSheet(t *testing.T) {
	path := writeTestXLSX(t, [][]string{{"a", "b"}})

	_, err := ReadPairs(path, Options{SheetName: "Nope"})
	require.Error(t, err)

	_, err = ReadPairs(path, Options{SheetIndex: 3})
	require.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	km := 102.5
	rows := []model.RowResult{
		{
			Pair:         model.AddressPair{Row: 0, Origin: "PARIS", Destination: "LYON"},
			Verdict:      model.VerdictAveraged,
			DistanceKM:   &km,
			Source:       "average",
			Disagreement: 0.0476,
			Measurements: []model.Measurement{
				{Provider: "nominatim", DistanceKM: 100, OK: true},
				{Provider: "ors", DistanceKM: 105, OK: true},
			},
		},
		{
			Pair:    model.AddressPair{Row: 1, Origin: "", Destination: "NICE"},
			Verdict: model.VerdictRejected,
		},
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteReport(path, rows, geocache.Stats{Hits: 3, Misses: 1}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	results, ok := f.Sheet["Results"]
	require.True(t, ok)
	require.Len(t, results.Rows, 3)
	header := make([]string, len(results.Rows[0].Cells))
	for i, c := range results.Rows[0].Cells {
		header[i] = c.String()
	}
	assert.Equal(t, []string{
		"Row", "Origin", "Destination", "Distance (km)",
		"Distance Nominatim (km)", "Distance ORS (km)",
		"Verdict", "Source", "Disagreement",
	}, header)
	assert.Equal(t, "102.50", results.Rows[1].Cells[3].String())
	assert.Equal(t, "100.00", results.Rows[1].Cells[4].String())
	assert.Equal(t, "105.00", results.Rows[1].Cells[5].String())
	assert.Equal(t, "averaged", results.Rows[1].Cells[6].String())
	assert.Equal(t, "rejected", results.Rows[2].Cells[6].String())
	assert.Empty(t, results.Rows[2].Cells[3].String())

	summary, ok := f.Sheet["Summary"]
	require.True(t, ok)
	assert.Equal(t, "Total rows", summary.Rows[0].Cells[0].String())
	assert.Equal(t, "2", summary.Rows[0].Cells[1].String())
	assert.Equal(t, "75.0%", summary.Rows[9].Cells[1].String())
}

func TestWriteReport_ProviderColumnBlankOnFailure(t *testing.T) {
	km := 280.0
	rows := []model.RowResult{{
		Pair:       model.AddressPair{Row: 0, Origin: "PARIS", Destination: "NICE"},
		Verdict:    model.VerdictSingleSource,
		DistanceKM: &km,
		Source:     "nominatim",
		Measurements: []model.Measurement{
			{Provider: "nominatim", DistanceKM: 280, OK: true},
			{Provider: "ors", OK: false},
		},
	}}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteReport(path, rows, geocache.Stats{}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	results := f.Sheet["Results"]
	require.NotNil(t, results)
	assert.Equal(t, "280.00", results.Rows[1].Cells[4].String())
	assert.Empty(t, results.Rows[1].Cells[5].String(), "failed measurement leaves the column blank")
}
