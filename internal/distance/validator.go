package distance

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/ddtlab/distance-cli/internal/model"
)

// Config holds the reconciliation tunables. The defaults mirror the
// deployed values: 10% disagreement threshold, 300 km ceiling.
type Config struct {
	MaxDisagreement float64
	MaxDistanceKM   float64
}

// DefaultConfig returns the standard validation thresholds.
func DefaultConfig() Config {
	return Config{MaxDisagreement: 0.10, MaxDistanceKM: 300}
}

// Validator reconciles the two providers' measurements for an address
// pair into a single trusted distance and verdict. With no secondary
// distancer every pair degrades to a single-source verdict.
type Validator struct {
	primary   PairDistancer
	secondary PairDistancer
	cfg       Config
}

// NewValidator creates a Validator. secondary may be nil.
func NewValidator(primary, secondary PairDistancer, cfg Config) *Validator {
	if cfg.MaxDisagreement <= 0 {
		cfg.MaxDisagreement = 0.10
	}
	if cfg.MaxDistanceKM <= 0 {
		cfg.MaxDistanceKM = 300
	}
	return &Validator{primary: primary, secondary: secondary, cfg: cfg}
}

// Validate measures the pair with both providers and applies the
// reconciliation policy. Row-level failures come back as verdicts, never
// as errors. The distance ceiling applies to the already-reconciled value,
// not to each raw measurement.
func (v *Validator) Validate(ctx context.Context, pair model.AddressPair) model.RowResult {
	if pair.Blank() {
		return model.RowResult{Pair: pair, Verdict: model.VerdictRejected}
	}

	measurements := []model.Measurement{v.measure(ctx, v.primary, pair)}
	if v.secondary != nil {
		measurements = append(measurements, v.measure(ctx, v.secondary, pair))
	}

	result := reconcile(pair, measurements, v.cfg.MaxDisagreement)

	// Ceiling check on the reconciled value.
	if result.DistanceKM != nil && *result.DistanceKM > v.cfg.MaxDistanceKM {
		zap.L().Warn("distance exceeds ceiling, rejecting",
			zap.Int("row", pair.Row),
			zap.Float64("distance_km", *result.DistanceKM),
			zap.Float64("ceiling_km", v.cfg.MaxDistanceKM),
		)
		result.Verdict = model.VerdictRejected
		result.DistanceKM = nil
	}

	return result
}

func (v *Validator) measure(ctx context.Context, d PairDistancer, pair model.AddressPair) model.Measurement {
	km, err := d.PairDistance(ctx, pair.Origin, pair.Destination)
	if err != nil {
		zap.L().Debug("measurement failed",
			zap.Int("row", pair.Row),
			zap.String("provider", d.Provider()),
			zap.Error(err),
		)
		return model.Measurement{Provider: d.Provider(), OK: false}
	}
	return model.Measurement{Provider: d.Provider(), DistanceKM: km, OK: true}
}

// reconcile combines the per-provider measurements into one result.
func reconcile(pair model.AddressPair, measurements []model.Measurement, maxDisagreement float64) model.RowResult {
	result := model.RowResult{Pair: pair, Measurements: measurements}

	var ok []model.Measurement
	for _, m := range measurements {
		if m.OK {
			ok = append(ok, m)
		}
	}

	switch len(ok) {
	case 0:
		result.Verdict = model.VerdictBothFailed
		return result

	case 1:
		result.Verdict = model.VerdictSingleSource
		result.Source = ok[0].Provider
		result.DistanceKM = ptr(ok[0].DistanceKM)
		return result
	}

	d1, d2 := ok[0].DistanceKM, ok[1].DistanceKM

	// Zero handling: both zero means both providers agree the endpoints
	// are the same place; exactly one zero means one lookup collapsed and
	// the non-zero measurement is the credible one.
	switch {
	case d1 == 0 && d2 == 0:
		result.Verdict = model.VerdictAveraged
		result.Source = "average"
		result.DistanceKM = ptr(0.0)
		return result

	case d1 == 0 || d2 == 0:
		picked := ok[0]
		if d2 > d1 {
			picked = ok[1]
		}
		result.Verdict = model.VerdictSingleSource
		result.Source = picked.Provider
		result.DistanceKM = ptr(picked.DistanceKM)
		return result
	}

	ratio := math.Abs(d1-d2) / math.Max(d1, d2)
	result.Disagreement = ratio

	if ratio < maxDisagreement {
		result.Verdict = model.VerdictAveraged
		result.Source = "average"
		result.DistanceKM = ptr(math.Round((d1+d2)/2*100) / 100)
		return result
	}

	picked := ok[0]
	if d2 < d1 {
		picked = ok[1]
	}
	zap.L().Warn("providers disagree, picking minimum",
		zap.Int("row", pair.Row),
		zap.Float64("disagreement", ratio),
		zap.String("picked", picked.Provider),
	)
	result.Verdict = model.VerdictMinimumPicked
	result.Source = picked.Provider
	result.DistanceKM = ptr(picked.DistanceKM)
	return result
}

func ptr(f float64) *float64 { return &f }
