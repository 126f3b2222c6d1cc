package fetcher

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/ddtlab/distance-cli/internal/batch"
	"github.com/ddtlab/distance-cli/internal/geocache"
	"github.com/ddtlab/distance-cli/internal/model"
)

// WriteReport writes the run's results to an XLSX workbook: a Results
// sheet with one row per input pair and a Summary sheet with verdict
// counts and cache statistics.
func WriteReport(path string, rows []model.RowResult, stats geocache.Stats) error {
	f := xlsx.NewFile()

	results, err := f.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "fetcher: add results sheet")
	}
	writeRow(results,
		"Row", "Origin", "Destination", "Distance (km)",
		"Distance Nominatim (km)", "Distance ORS (km)",
		"Verdict", "Source", "Disagreement",
	)
	for _, r := range rows {
		distance := ""
		if r.DistanceKM != nil {
			distance = fmt.Sprintf("%.2f", *r.DistanceKM)
		}
		disagreement := ""
		if r.Disagreement > 0 {
			disagreement = fmt.Sprintf("%.1f%%", r.Disagreement*100)
		}
		writeRow(results,
			fmt.Sprintf("%d", r.Pair.Row+1),
			r.Pair.Origin,
			r.Pair.Destination,
			distance,
			providerDistance(r, "nominatim"),
			providerDistance(r, "ors"),
			string(r.Verdict),
			r.Source,
			disagreement,
		)
	}

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "fetcher: add summary sheet")
	}
	s := batch.Summarize(rows)
	for _, line := range [][2]string{
		{"Total rows", fmt.Sprintf("%d", s.Total)},
		{"Averaged", fmt.Sprintf("%d", s.Averaged)},
		{"Minimum picked", fmt.Sprintf("%d", s.MinimumPicked)},
		{"Single source", fmt.Sprintf("%d", s.SingleSource)},
		{"Rejected", fmt.Sprintf("%d", s.Rejected)},
		{"Both failed", fmt.Sprintf("%d", s.BothFailed)},
		{"Total distance (km)", fmt.Sprintf("%.2f", s.TotalKM)},
		{"Cache hits", fmt.Sprintf("%d", stats.Hits)},
		{"Cache misses", fmt.Sprintf("%d", stats.Misses)},
		{"Cache hit rate", fmt.Sprintf("%.1f%%", stats.HitRate()*100)},
	} {
		writeRow(summary, line[0], line[1])
	}

	return eris.Wrapf(f.Save(path), "fetcher: save report %s", path)
}

// providerDistance returns the named provider's raw measurement for the
// row, or "" when that provider failed or was not consulted.
func providerDistance(r model.RowResult, provider string) string {
	for _, m := range r.Measurements {
		if m.Provider == provider && m.OK {
			return fmt.Sprintf("%.2f", m.DistanceKM)
		}
	}
	return ""
}

func writeRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
