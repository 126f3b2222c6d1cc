package batch

import "github.com/ddtlab/distance-cli/internal/model"

// Summary aggregates a run's verdicts.
type Summary struct {
	Total         int     `json:"total"`
	Averaged      int     `json:"averaged"`
	MinimumPicked int     `json:"minimum_picked"`
	SingleSource  int     `json:"single_source"`
	Rejected      int     `json:"rejected"`
	BothFailed    int     `json:"both_failed"`
	TotalKM       float64 `json:"total_km"`
}

// Summarize tallies verdicts and the sum of trusted distances.
func Summarize(rows []model.RowResult) Summary {
	s := Summary{Total: len(rows)}
	for _, r := range rows {
		switch r.Verdict {
		case model.VerdictAveraged:
			s.Averaged++
		case model.VerdictMinimumPicked:
			s.MinimumPicked++
		case model.VerdictSingleSource:
			s.SingleSource++
		case model.VerdictRejected:
			s.Rejected++
		case model.VerdictBothFailed:
			s.BothFailed++
		}
		if r.DistanceKM != nil {
			s.TotalKM += *r.DistanceKM
		}
	}
	return s
}
