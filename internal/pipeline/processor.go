package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/yashar0011/T4D-project/internal/settings"
)

// RawLoader is the boundary to raw file discovery and column mapping
type RawLoader interface {
	Load(importDir, profileName string) []RawRecord
}

// Sink receives the cleaned sequence for one slice. Sinks are best-effort:
// the processor logs a failed publish and moves on.
type Sink interface {
	Name() string
	Publish(ctx context.Context, info SliceInfo, samples []CleanedSample) error
}

// Processor orchestrates one slice end-to-end:
// Loading → Windowing → Filtering → Computing → Publishing → Done, with
// Empty as the absorbing terminal for slices that have nothing to do.
type Processor struct {
	source     RawLoader
	profiles   *settings.ProfileSet
	normalizer *TimeNormalizer
	sinks      []Sink
	logger     *slog.Logger
	metrics    *Metrics
	now        func() time.Time
}

// NewProcessor creates a slice processor publishing to the given sinks
func NewProcessor(source RawLoader, profiles *settings.ProfileSet, sinks []Sink, logger *slog.Logger, metrics *Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		source:     source,
		profiles:   profiles,
		normalizer: NewTimeNormalizer(),
		sinks:      sinks,
		logger:     logger.With(slog.String("component", "slice_processor")),
		metrics:    metrics,
		now:        time.Now,
	}
}

// Process runs one slice through the state machine and returns the result.
// An Empty result carries a zero watermark and is not an error. The
// processor never mutates the cache; the caller applies the watermark.
func (p *Processor) Process(ctx context.Context, req SliceRequest) (SliceResult, error) {
	ctx, span := startSliceSpan(ctx, req.Key)
	res, err := p.process(ctx, req)
	endSliceSpan(span, res, err)
	p.metrics.observeResult(res)
	return res, err
}

func (p *Processor) process(ctx context.Context, req SliceRequest) (SliceResult, error) {
	row := req.Row
	log := p.logger.With(
		slog.String("point", row.PointName),
		slog.Int("sensor", row.SensorID),
		slog.Time("slice_start", row.StartUTC))
	res := SliceResult{State: StateLoading}

	// Loading
	records := p.source.Load(row.ImportFolder, row.FileProfile)
	res.Loaded = len(records)
	if len(records) == 0 {
		log.Warn("no raw data", slog.String("profile", row.FileProfile))
		return p.empty(res), nil
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	// Timestamp normalization; invalid stamps are dropped, not fatal
	var loc *time.Location
	if prof, ok := p.profiles.Get(row.FileProfile); ok {
		loc = prof.Location()
	}
	samples := make([]RawSample, 0, len(records))
	for _, rec := range records {
		ts, ok := p.normalizer.ToUTC(rec.TimeText, loc)
		if !ok {
			continue
		}
		samples = append(samples, RawSample{
			Timestamp: ts,
			PointRaw:  rec.PointRaw,
			Northing:  rec.Northing,
			Easting:   rec.Easting,
			Elevation: rec.Elevation,
		})
	}
	res.Normalized = len(samples)
	if len(samples) == 0 {
		log.Warn("no samples with valid timestamps")
		return p.empty(res), nil
	}

	// Windowing
	res.State = StateWindowing
	samples = FilterPoint(samples, row.PointName)
	samples = ClipWindow(samples, row.StartUTC, req.NextStart, req.Watermark)
	res.Clipped = len(samples)
	if len(samples) == 0 {
		return p.empty(res), nil
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	// Filtering
	res.State = StateFiltering
	clean := FilterOutliers(samples,
		FilterColumnsFor(row.IsReflective()),
		row.OutlierMAD,
		Baselines{Northing: row.BaselineN, Easting: row.BaselineE, Elevation: &row.BaselineH})
	res.Rejected = len(samples) - len(clean)
	if len(clean) == 0 {
		log.Warn("all samples rejected by outlier filter",
			slog.Int("rejected", res.Rejected))
		return p.empty(res), nil
	}

	// Computing
	res.State = StateComputing
	cleaned := ComputeDeltas(clean, row)
	res.Cleaned = len(cleaned)

	// Publishing — side effects only; sink failures never fail the slice
	res.State = StatePublishing
	info := SliceInfo{
		Site:       row.Site,
		Point:      row.PointName,
		Sensor:     row.SensorID,
		SliceStart: row.StartUTC,
		RunDate:    p.now().UTC(),
		ExportRoot: exportRoot(row),
		Reflective: row.IsReflective(),
		DBImport:   row.DBImport,
	}
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, info, cleaned); err != nil {
			log.Error("sink publish failed",
				slog.String("sink", sink.Name()),
				slog.String("error", err.Error()))
		}
	}

	res.State = StateDone
	res.Watermark = maxTimestamp(cleaned)
	log.Info("slice processed",
		slog.Int("cleaned", res.Cleaned),
		slog.Int("rejected", res.Rejected),
		slog.Time("watermark", res.Watermark))
	return res, nil
}

func (p *Processor) empty(res SliceResult) SliceResult {
	res.State = StateEmpty
	res.Watermark = time.Time{}
	return res
}

func exportRoot(row settings.Row) string {
	if row.ExportFolder != "" {
		return row.ExportFolder
	}
	return row.ImportFolder
}

func maxTimestamp(samples []CleanedSample) time.Time {
	var max time.Time
	for _, s := range samples {
		if s.Timestamp.After(max) {
			max = s.Timestamp
		}
	}
	return max
}
