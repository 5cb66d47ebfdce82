package pipeline

import (
	"strings"
	"time"

	"github.com/yashar0011/T4D-project/internal/settings"
)

// ClipWindow keeps the samples that belong to one slice: at or after the
// slice start, strictly before the next slice's start (when one exists),
// and strictly after the watermark (when one exists). Zero nextStart
// leaves the slice unbounded above; zero watermark disables the lower
// progress bound.
func ClipWindow(samples []RawSample, sliceStart, nextStart, watermark time.Time) []RawSample {
	out := make([]RawSample, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.Before(sliceStart) {
			continue
		}
		if !nextStart.IsZero() && !s.Timestamp.Before(nextStart) {
			continue
		}
		if !watermark.IsZero() && !s.Timestamp.After(watermark) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// MatchPoint reports whether a raw point label belongs to the configured
// point. Matching is a case-insensitive prefix match, so raw exports that
// suffix sub-ids (PT01_A, pt01-2) still attach to PT01.
func MatchPoint(raw, configured string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(raw)),
		strings.ToUpper(strings.TrimSpace(configured)))
}

// FilterPoint keeps the samples whose raw point label prefix-matches the
// configured point name.
func FilterPoint(samples []RawSample, configured string) []RawSample {
	out := make([]RawSample, 0, len(samples))
	for _, s := range samples {
		if MatchPoint(s.PointRaw, configured) {
			out = append(out, s)
		}
	}
	return out
}

// NextSliceStart returns the earliest StartUTC strictly after row's own
// start among rows for the same sensor and point. Zero when row owns the
// open-ended latest slice. This is what makes multiple historical
// baseline segments for one point non-overlapping.
func NextSliceStart(rows []settings.Row, row settings.Row) time.Time {
	var next time.Time
	for _, other := range rows {
		if other.SensorID != row.SensorID || other.PointName != row.PointName {
			continue
		}
		if !other.StartUTC.After(row.StartUTC) {
			continue
		}
		if next.IsZero() || other.StartUTC.Before(next) {
			next = other.StartUTC
		}
	}
	return next
}
