// Package model defines the domain types shared across the distance
// pipeline: address pairs, per-provider measurements, validation verdicts,
// and the session checkpoint records.
package model

import (
	"strings"
	"time"
)

// AddressPair is one input row: two free-form addresses to measure.
// Identity is the row index in the original input; either address may be
// blank, which marks the row unresolved rather than erroneous.
type AddressPair struct {
	Row         int    `json:"row"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// Blank reports whether either side of the pair is empty after trimming.
func (p AddressPair) Blank() bool {
	return strings.TrimSpace(p.Origin) == "" || strings.TrimSpace(p.Destination) == ""
}

// Measurement is one provider's distance for a pair. Measurements are
// transient: only the reconciled row result is persisted.
type Measurement struct {
	Provider   string  `json:"provider"`
	DistanceKM float64 `json:"distance_km"`
	OK         bool    `json:"ok"`
}

// Verdict classifies how a row's final distance was obtained.
type Verdict string

const (
	// VerdictAveraged: both providers agreed within the disagreement
	// threshold; final distance is their mean.
	VerdictAveraged Verdict = "averaged"

	// VerdictMinimumPicked: providers disagreed beyond the threshold; the
	// smaller measurement was kept.
	VerdictMinimumPicked Verdict = "minimum_picked"

	// VerdictRejected: blank address, or the reconciled distance exceeded
	// the ceiling. No trusted distance.
	VerdictRejected Verdict = "rejected"

	// VerdictSingleSource: exactly one provider produced a usable distance.
	VerdictSingleSource Verdict = "single_source"

	// VerdictBothFailed: neither provider produced a distance.
	VerdictBothFailed Verdict = "both_failed"
)

// RowResult is the reconciled outcome for one address pair.
type RowResult struct {
	Pair         AddressPair   `json:"pair"`
	Verdict      Verdict       `json:"verdict"`
	DistanceKM   *float64      `json:"distance_km,omitempty"`
	Disagreement float64       `json:"disagreement"`
	Source       string        `json:"source,omitempty"`
	Measurements []Measurement `json:"measurements,omitempty"`
}

// BatchRecord holds the results of one completed batch. It is written to
// the session store in a single transaction and never mutated afterwards.
type BatchRecord struct {
	SessionID string      `json:"session_id"`
	Index     int         `json:"index"`
	Rows      []RowResult `json:"rows"`
}

// SessionManifest describes a run's checkpoint state. Completed only ever
// grows; a batch index appears once its record is durable.
type SessionManifest struct {
	SessionID string    `json:"session_id"`
	TotalRows int       `json:"total_rows"`
	BatchSize int       `json:"batch_size"`
	Completed []int     `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// TotalBatches returns the number of batches the session partitions into.
func (m SessionManifest) TotalBatches() int {
	if m.BatchSize <= 0 {
		return 0
	}
	return (m.TotalRows + m.BatchSize - 1) / m.BatchSize
}

// Done reports whether every batch has been checkpointed.
func (m SessionManifest) Done() bool {
	return len(m.Completed) >= m.TotalBatches()
}
