package pipeline

import (
	"github.com/yashar0011/T4D-project/internal/settings"
)

// metersToMM converts baseline-relative displacement to millimetres
const metersToMM = 1000.0

// ComputeDelta turns a filtered sample into a cleaned, baseline-adjusted
// one. Vertical displacement is always computed; horizontal only for
// Reflective points with configured N/E baselines.
func ComputeDelta(s RawSample, row settings.Row) CleanedSample {
	out := CleanedSample{
		RawSample: s,
		DeltaHmm:  (s.Elevation - row.BaselineH) * metersToMM,
	}
	if row.IsReflective() {
		if row.BaselineN != nil {
			dn := (s.Northing - *row.BaselineN) * metersToMM
			out.DeltaNmm = &dn
		}
		if row.BaselineE != nil {
			de := (s.Easting - *row.BaselineE) * metersToMM
			out.DeltaEmm = &de
		}
	}
	return out
}

// ComputeDeltas maps ComputeDelta over a batch
func ComputeDeltas(samples []RawSample, row settings.Row) []CleanedSample {
	out := make([]CleanedSample, len(samples))
	for i, s := range samples {
		out[i] = ComputeDelta(s, row)
	}
	return out
}
