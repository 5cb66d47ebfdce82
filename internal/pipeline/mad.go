package pipeline

import (
	"math"
	"sort"
)

// madConsistency scales the MAD z-score so it is comparable to a standard
// z-score under normality.
const madConsistency = 0.6745

// FilterColumn selects which sample dimension the outlier filter scores
type FilterColumn int

const (
	ColNorthing FilterColumn = iota
	ColEasting
	ColElevation
)

// FilterColumnsFor returns the dimensions the filter applies to a point
// type: elevation only for reflectless points, all three for reflective.
func FilterColumnsFor(reflective bool) []FilterColumn {
	if reflective {
		return []FilterColumn{ColNorthing, ColEasting, ColElevation}
	}
	return []FilterColumn{ColElevation}
}

func (c FilterColumn) value(s RawSample) float64 {
	switch c {
	case ColNorthing:
		return s.Northing
	case ColEasting:
		return s.Easting
	default:
		return s.Elevation
	}
}

// Baselines are subtracted from their columns before scoring so a
// legitimate static offset is not mistaken for dispersion. Nil entries
// leave the column unshifted.
type Baselines struct {
	Northing  *float64
	Easting   *float64
	Elevation *float64
}

func (b Baselines) offset(c FilterColumn) float64 {
	var p *float64
	switch c {
	case ColNorthing:
		p = b.Northing
	case ColEasting:
		p = b.Easting
	default:
		p = b.Elevation
	}
	if p == nil || math.IsNaN(*p) {
		return 0
	}
	return *p
}

// median returns the middle value of vs, ignoring NaNs. NaN when nothing
// finite remains.
func median(vs []float64) float64 {
	finite := make([]float64, 0, len(vs))
	for _, v := range vs {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	sort.Float64s(finite)
	mid := len(finite) / 2
	if len(finite)%2 == 1 {
		return finite[mid]
	}
	return (finite[mid-1] + finite[mid]) / 2
}

// MADScores returns the robust z-score 0.6745*|x-median|/MAD for each
// value, computed over the whole batch. A degenerate batch (MAD zero, or
// undefined because of NaNs) scores zero everywhere so a constant column
// never rejects rows. NaN values score NaN, which no threshold exceeds.
func MADScores(values []float64) []float64 {
	med := median(values)
	scores := make([]float64, len(values))
	if math.IsNaN(med) {
		return scores
	}

	dev := make([]float64, len(values))
	anyNaN := false
	for i, v := range values {
		dev[i] = math.Abs(v - med)
		if math.IsNaN(dev[i]) {
			anyNaN = true
		}
	}
	// MAD over the raw deviations: any NaN poisons the estimate and the
	// column then contributes no rejection at all
	if anyNaN {
		return scores
	}
	mad := median(dev)
	if mad == 0 || math.IsNaN(mad) {
		return scores
	}
	for i := range values {
		scores[i] = madConsistency * dev[i] / mad
	}
	return scores
}

// FilterOutliers removes samples whose MAD z-score exceeds threshold in
// ANY of the listed columns — an OR across dimensions, not a joint test.
// The MAD statistic is computed over the batch it is given.
func FilterOutliers(samples []RawSample, cols []FilterColumn, threshold float64, baselines Baselines) []RawSample {
	if len(samples) == 0 || len(cols) == 0 {
		return samples
	}

	reject := make([]bool, len(samples))
	for _, col := range cols {
		values := make([]float64, len(samples))
		off := baselines.offset(col)
		for i, s := range samples {
			values[i] = col.value(s) - off
		}
		for i, score := range MADScores(values) {
			if score > threshold {
				reject[i] = true
			}
		}
	}

	out := make([]RawSample, 0, len(samples))
	for i, s := range samples {
		if !reject[i] {
			out = append(out, s)
		}
	}
	return out
}
