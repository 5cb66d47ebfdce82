package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/yashar0011/T4D-project/internal/config"
	apperrors "github.com/yashar0011/T4D-project/internal/errors"
	"github.com/yashar0011/T4D-project/internal/settings"
)

// ConfigSource yields validated active settings rows. Structural errors
// are fatal for the reload cycle; it never returns partially-invalid rows.
type ConfigSource interface {
	Load(path string) ([]settings.Row, error)
}

// SliceRunner processes one slice; implemented by *Processor
type SliceRunner interface {
	Process(ctx context.Context, req SliceRequest) (SliceResult, error)
}

// commandBuffer bounds the FIFO control queue feeding the watch loop
const commandBuffer = 32

// Watcher drives the incremental pipeline: it reloads configuration when
// the settings workbook changes (or on an idle tick or external command),
// asks the cache which slices changed, and runs the processor over each.
// Run cycles are serialized by a single mutex, so concurrent triggers can
// never race on the cache or double-update watermarks.
type Watcher struct {
	cfg      config.PipelineConfig
	source   ConfigSource
	cache    *Cache
	runner   SliceRunner
	events   EventPublisher
	logger   *slog.Logger
	metrics  *Metrics
	commands chan Command

	mu       sync.Mutex
	firstRun bool
}

// NewWatcher wires a watch loop over the given collaborators. events and
// metrics may be nil.
func NewWatcher(cfg config.PipelineConfig, source ConfigSource, cache *Cache, runner SliceRunner, events EventPublisher, logger *slog.Logger, metrics *Metrics) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:      cfg,
		source:   source,
		cache:    cache,
		runner:   runner,
		events:   events,
		logger:   logger.With(slog.String("component", "watcher")),
		metrics:  metrics,
		commands: make(chan Command, commandBuffer),
	}
}

// Enqueue pushes a control command onto the FIFO queue. It reports false
// when the queue is full rather than blocking the caller.
func (w *Watcher) Enqueue(cmd Command) bool {
	select {
	case w.commands <- cmd:
		return true
	default:
		w.logger.Warn("command queue full, dropping command",
			slog.String("command", string(cmd)))
		return false
	}
}

// Run executes the watch loop until ctx is cancelled, a stop command
// arrives, or a fatal configuration error surfaces. The initial pass runs
// immediately.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	w.firstRun = true
	w.mu.Unlock()

	if err := w.cycle(ctx, w.cfg.ForceFull, "startup"); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create filesystem watcher: %w", err)
	}
	defer fw.Close()

	// Watch the directory: editors save workbooks by replacing the file,
	// which would orphan a watch on the file itself
	settingsPath := filepath.Clean(w.cfg.SettingsPath)
	if err := fw.Add(filepath.Dir(settingsPath)); err != nil {
		return fmt.Errorf("cannot watch settings directory: %w", err)
	}
	w.logger.Info("watching settings workbook",
		slog.String("path", settingsPath),
		slog.Duration("poll_interval", w.cfg.PollInterval))

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	// Debounce timer armed on the first interesting event of a burst
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-w.commands:
			switch cmd {
			case CommandStop:
				w.logger.Info("stop command received")
				return nil
			case CommandFullBuild:
				if err := w.cycle(ctx, true, "command:full_build"); err != nil {
					return err
				}
			case CommandRunOnce:
				if err := w.cycle(ctx, false, "command:run_once"); err != nil {
					return err
				}
			default:
				w.logger.Warn("unknown command ignored", slog.String("command", string(cmd)))
			}

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != settingsPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(w.cfg.Debounce)

		case <-debounce.C:
			if err := w.cycle(ctx, w.cfg.ForceFull, "settings_change"); err != nil {
				return err
			}

		case <-ticker.C:
			if err := w.cycle(ctx, w.cfg.ForceFull, "poll"); err != nil {
				return err
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watcher error", slog.String("error", err.Error()))
		}
	}
}

// RunOnce executes a single pass outside the watch loop (CLI usage)
func (w *Watcher) RunOnce(ctx context.Context, full bool) error {
	w.mu.Lock()
	w.firstRun = true
	w.mu.Unlock()
	trigger := "run_once"
	if full {
		trigger = "full_build"
	}
	// A requested full build must rebuild even though this is the first
	// and only pass; clearing an already-empty cache is harmless
	if full {
		w.mu.Lock()
		w.cache.Clear()
		w.mu.Unlock()
	}
	return w.cycle(ctx, false, trigger)
}

// cycle performs one reload-diff-process-save pass. Configuration errors
// are fatal and returned; everything else is contained and logged.
func (w *Watcher) cycle(ctx context.Context, full bool, trigger string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	runID := uuid.NewString()[:8]
	start := time.Now()
	log := w.logger.With(slog.String("run_id", runID), slog.String("trigger", trigger))

	rows, err := w.source.Load(w.cfg.SettingsPath)
	if err != nil {
		if apperrors.IsConfigValidation(err) {
			log.Error("configuration invalid, stopping watch loop",
				slog.String("error", err.Error()))
			return err
		}
		return fmt.Errorf("settings reload failed: %w", err)
	}
	if len(rows) == 0 {
		log.Info("no active settings rows, nothing to process")
		w.firstRun = false
		return nil
	}

	// A forced full rebuild wipes the cache so the diff flags every row;
	// never on the very first pass, which already reprocesses whatever
	// the persisted cache does not cover
	if full && !w.firstRun {
		log.Info("full rebuild requested, clearing slice cache")
		w.cache.Clear()
	}
	w.firstRun = false

	changed := w.cache.Diff(rows, KeyFor)
	if len(changed) == 0 {
		log.Info("no configuration changes detected")
		w.finishCycle(start)
		return nil
	}

	ctx, span := startCycleSpan(ctx, runID, trigger, len(changed))
	defer span.End()

	log.Info("processing changed slices", slog.Int("count", len(changed)))
	w.publish(EventCycleStart, map[string]interface{}{
		"run_id":  runID,
		"trigger": trigger,
		"changed": len(changed),
	})

	processed, failed := 0, 0
	for _, ch := range changed {
		if err := ctx.Err(); err != nil {
			return err
		}

		// A row edited while being turned off still shows up as changed;
		// it is skipped and its watermark never advances
		if !ch.Row.Active {
			log.Info("skipping inactive slice", slog.String("key", string(ch.Key)))
			if w.metrics != nil {
				w.metrics.SlicesSkipped.Inc()
			}
			continue
		}

		wm, _ := w.cache.Watermark(ch.Key)
		req := SliceRequest{
			Key:       ch.Key,
			Row:       ch.Row,
			NextStart: NextSliceStart(rows, ch.Row),
			Watermark: wm,
		}

		res, err := w.processOne(ctx, req)
		if err != nil {
			// Isolated: this slice makes no progress, the rest proceed
			failed++
			if w.metrics != nil {
				w.metrics.SlicesFailed.Inc()
			}
			log.Error("slice processing failed",
				slog.String("key", string(ch.Key)),
				slog.String("error", err.Error()))
			w.publish(EventSliceError, map[string]interface{}{
				"key": string(ch.Key), "error": err.Error(),
			})
			continue
		}

		if res.State == StateDone && !res.Watermark.IsZero() {
			w.cache.UpdateWatermark(ch.Key, res.Watermark)
			processed++
			w.publish(EventSliceComplete, map[string]interface{}{
				"key":       string(ch.Key),
				"cleaned":   res.Cleaned,
				"rejected":  res.Rejected,
				"watermark": res.Watermark.Format(time.RFC3339),
			})
		} else {
			w.publish(EventSliceEmpty, map[string]interface{}{"key": string(ch.Key)})
		}
	}

	// One save per batch, not per slice: bounds I/O, and a crash mid-batch
	// just reprocesses the in-flight slices next run
	if err := w.cache.Save(); err != nil {
		log.Error("cache save failed, in-memory state remains authoritative",
			slog.String("error", err.Error()))
	}

	w.finishCycle(start)
	w.publish(EventCycleComplete, map[string]interface{}{
		"run_id":    runID,
		"processed": processed,
		"failed":    failed,
		"duration":  time.Since(start).String(),
	})
	log.Info("cycle complete",
		slog.Int("processed", processed),
		slog.Int("failed", failed),
		slog.Duration("took", time.Since(start)))
	return nil
}

// processOne isolates a single slice run, converting panics from a
// misbehaving parser or sink into a contained processing error.
func (w *Watcher) processOne(ctx context.Context, req SliceRequest) (res SliceResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewSliceProcessingError(string(req.Key), fmt.Errorf("panic: %v", r))
		}
	}()
	res, err = w.runner.Process(ctx, req)
	if err != nil {
		err = apperrors.NewSliceProcessingError(string(req.Key), err)
	}
	return res, err
}

func (w *Watcher) finishCycle(start time.Time) {
	if w.metrics == nil {
		return
	}
	w.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	w.metrics.CacheEntries.Set(float64(w.cache.Len()))
	w.metrics.LastCycleUnix.Set(float64(time.Now().Unix()))
}

func (w *Watcher) publish(eventType string, payload interface{}) {
	if w.events == nil {
		return
	}
	w.events.PublishEvent(eventType, payload)
}
