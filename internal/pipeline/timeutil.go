package pipeline

import (
	"strings"
	"time"
)

// rawLayouts are the naive timestamp layouts accepted in raw export files
var rawLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
}

// dstProbe brackets a possible zone transition around a wall time.
// Transitions are months apart, so a day on each side is plenty.
const dstProbe = 24 * time.Hour

// TimeNormalizer converts local timestamp text to UTC instants, applying
// the DST policy: ambiguous local times (fall-back transition) are
// invalid and dropped, nonexistent local times (spring-forward gap) are
// shifted forward to the first valid instant.
type TimeNormalizer struct{}

// NewTimeNormalizer creates a normalizer
func NewTimeNormalizer() *TimeNormalizer {
	return &TimeNormalizer{}
}

// ToUTC parses text and resolves it to a UTC instant. A nil location
// means the text is already UTC. The second return is false for
// unparseable text and for ambiguous local times.
func (n *TimeNormalizer) ToUTC(text string, loc *time.Location) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	// Absolute timestamps carry their own offset regardless of profile
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t.UTC(), true
	}

	var wall time.Time
	parsed := false
	for _, layout := range rawLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			wall = t
			parsed = true
			break
		}
	}
	if !parsed {
		return time.Time{}, false
	}

	if loc == nil {
		// Already UTC
		return wall, true
	}
	return localize(wall, loc)
}

// localize maps a naive wall-clock time (carried as a UTC time.Time) onto
// an instant in loc. Ambiguous wall times are rejected; wall times inside
// a spring-forward gap resolve to the transition instant.
func localize(wall time.Time, loc *time.Location) (time.Time, bool) {
	offBefore := zoneOffset(wall.Add(-dstProbe), loc)
	offAfter := zoneOffset(wall.Add(dstProbe), loc)

	if offBefore == offAfter {
		return wall.Add(-offBefore), true
	}

	c1 := wall.Add(-offBefore)
	c2 := wall.Add(-offAfter)
	v1 := sameWall(c1, loc, wall)
	v2 := sameWall(c2, loc, wall)

	switch {
	case v1 && v2 && !c1.Equal(c2):
		// Two instants share this wall clock: fall-back ambiguity
		return time.Time{}, false
	case v1:
		return c1, true
	case v2:
		return c2, true
	default:
		// Neither candidate reads back as the requested wall clock: the
		// time sits inside the spring-forward gap. The first valid
		// instant is the transition itself, somewhere between the two
		// candidates; binary-search the offset change.
		lo, hi := c1, c2
		if hi.Before(lo) {
			lo, hi = hi, lo
		}
		target := zoneOffset(hi, loc)
		for hi.Sub(lo) > time.Second {
			mid := lo.Add(hi.Sub(lo) / 2)
			if zoneOffset(mid, loc) == target {
				hi = mid
			} else {
				lo = mid
			}
		}
		return hi, true
	}
}

func zoneOffset(t time.Time, loc *time.Location) time.Duration {
	_, off := t.In(loc).Zone()
	return time.Duration(off) * time.Second
}

func sameWall(t time.Time, loc *time.Location, wall time.Time) bool {
	lt := t.In(loc)
	return lt.Year() == wall.Year() &&
		lt.Month() == wall.Month() &&
		lt.Day() == wall.Day() &&
		lt.Hour() == wall.Hour() &&
		lt.Minute() == wall.Minute() &&
		lt.Second() == wall.Second()
}
