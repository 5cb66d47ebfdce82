// Package pipeline implements the incremental slice-processing engine:
// the configuration cache/diff that decides what must be reprocessed, the
// window and timezone logic that decides which raw rows belong to a slice,
// and the robust outlier filter applied before delta computation.
package pipeline

import (
	"fmt"
	"time"

	"github.com/yashar0011/T4D-project/internal/settings"
)

// SliceKey is the stable identity of one reprocessing unit:
// (SensorID, PointName, StartUTC) serialized as a single string.
type SliceKey string

// KeyFor derives the slice key for a settings row
func KeyFor(row settings.Row) SliceKey {
	return SliceKey(fmt.Sprintf("%d|%s|%s", row.SensorID, row.PointName,
		row.StartUTC.UTC().Format(time.RFC3339)))
}

// RawRecord is one row as read from a raw export file, before timestamp
// normalization. TimeText is the verbatim cell; Northing/Easting are NaN
// when the source file has no such column.
type RawRecord struct {
	TimeText  string
	PointRaw  string
	Northing  float64
	Easting   float64
	Elevation float64
}

// RawSample is a raw record with its timestamp resolved to UTC
type RawSample struct {
	Timestamp time.Time // UTC
	PointRaw  string
	Northing  float64
	Easting   float64
	Elevation float64
}

// CleanedSample is a filtered, baseline-adjusted sample. DeltaNmm and
// DeltaEmm are nil for Reflectless points.
type CleanedSample struct {
	RawSample
	DeltaHmm float64
	DeltaNmm *float64
	DeltaEmm *float64
}

// SliceRequest carries everything the processor needs for one slice.
// Zero NextStart means the slice is unbounded above; zero Watermark means
// no progress has been recorded yet.
type SliceRequest struct {
	Key       SliceKey
	Row       settings.Row
	NextStart time.Time
	Watermark time.Time
}

// SliceInfo identifies a slice towards output sinks
type SliceInfo struct {
	Site       string
	Point      string
	Sensor     int
	SliceStart time.Time
	RunDate    time.Time
	ExportRoot string
	Reflective bool
	DBImport   bool
}

// SliceStamp renders the slice start for filename derivation,
// e.g. 20240101T000000Z.
func (s SliceInfo) SliceStamp() string {
	return s.SliceStart.UTC().Format("20060102T150405Z")
}

// State labels one phase of the slice processing state machine
type State string

const (
	StateLoading    State = "loading"
	StateWindowing  State = "windowing"
	StateFiltering  State = "filtering"
	StateComputing  State = "computing"
	StatePublishing State = "publishing"
	StateDone       State = "done"
	// StateEmpty is the absorbing terminal for slices with nothing to do;
	// it is not an error and yields no watermark.
	StateEmpty State = "empty"
)

// SliceResult reports what one processing pass did. Watermark is zero when
// the slice ended Empty.
type SliceResult struct {
	State      State
	Watermark  time.Time
	Loaded     int
	Normalized int
	Clipped    int
	Rejected   int
	Cleaned    int
}

// Command is an opaque control instruction for the watcher loop
type Command string

const (
	CommandRunOnce   Command = "run_once"
	CommandFullBuild Command = "full_build"
	CommandStop      Command = "stop"
)

// ParseCommand validates an externally supplied command token
func ParseCommand(s string) (Command, bool) {
	switch Command(s) {
	case CommandRunOnce, CommandFullBuild, CommandStop:
		return Command(s), true
	default:
		return "", false
	}
}

// Event types broadcast over the websocket hub during processing
const (
	EventCycleStart    = "cycle:start"
	EventCycleComplete = "cycle:complete"
	EventSliceComplete = "slice:complete"
	EventSliceEmpty    = "slice:empty"
	EventSliceError    = "slice:error"
)

// EventPublisher receives pipeline lifecycle events. Implementations must
// not block; a nil publisher disables broadcasting.
type EventPublisher interface {
	PublishEvent(eventType string, payload interface{})
}
