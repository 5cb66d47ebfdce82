package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashar0011/T4D-project/internal/settings"
)

func sampleAt(ts time.Time) RawSample {
	return RawSample{Timestamp: ts, PointRaw: "PT01", Elevation: 100.0}
}

func TestClipWindow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	next := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	wm := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	samples := []RawSample{
		sampleAt(start.Add(-time.Second)),  // before slice
		sampleAt(start),                    // inclusive lower bound, but <= watermark? no, wm later
		sampleAt(wm),                       // equal to watermark: excluded
		sampleAt(wm.Add(time.Second)),      // kept
		sampleAt(next.Add(-time.Second)),   // kept
		sampleAt(next),                     // exclusive upper bound
		sampleAt(next.Add(time.Hour)),      // beyond
	}

	got := ClipWindow(samples, start, next, wm)
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.Equal(wm.Add(time.Second)))
	assert.True(t, got[1].Timestamp.Equal(next.Add(-time.Second)))
}

func TestClipWindow_NoUpperBoundNoWatermark(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := []RawSample{
		sampleAt(start.Add(-time.Minute)),
		sampleAt(start),
		sampleAt(start.AddDate(10, 0, 0)),
	}
	got := ClipWindow(samples, start, time.Time{}, time.Time{})
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.Equal(start))
}

func TestClipWindow_BoundaryBelongsToNextSlice(t *testing.T) {
	// Two slices for the same point with starts T0 and T1: a sample at
	// exactly T1 belongs to slice 2, never slice 1.
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	boundary := sampleAt(t1)

	slice1 := ClipWindow([]RawSample{boundary}, t0, t1, time.Time{})
	slice2 := ClipWindow([]RawSample{boundary}, t1, time.Time{}, time.Time{})
	assert.Empty(t, slice1)
	assert.Len(t, slice2, 1)
}

func TestMatchPoint(t *testing.T) {
	assert.True(t, MatchPoint("PT01", "PT01"))
	assert.True(t, MatchPoint("pt01_a", "PT01"))
	assert.True(t, MatchPoint("PT01-2", "pt01"))
	assert.True(t, MatchPoint("  PT01 ", "PT01"))
	assert.False(t, MatchPoint("PT0", "PT01"))
	assert.False(t, MatchPoint("XPT01", "PT01"))
}

func TestFilterPoint(t *testing.T) {
	samples := []RawSample{
		{PointRaw: "PT01_A"},
		{PointRaw: "PT02"},
		{PointRaw: "pt01"},
	}
	got := FilterPoint(samples, "PT01")
	require.Len(t, got, 2)
}

func TestNextSliceStart(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)

	rows := []settings.Row{
		testRow("PT01", 1, t0),
		testRow("PT01", 1, t2),
		testRow("PT01", 1, t1),
		testRow("PT02", 1, t1),  // different point, ignored
		testRow("PT01", 99, t1), // different sensor, ignored
	}

	next := NextSliceStart(rows, rows[0])
	assert.True(t, next.Equal(t1), "earliest strictly-later start wins")

	next = NextSliceStart(rows, rows[2])
	assert.True(t, next.Equal(t2))

	next = NextSliceStart(rows, rows[1])
	assert.True(t, next.IsZero(), "latest slice is open-ended")
}
