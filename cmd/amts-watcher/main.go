package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yashar0011/T4D-project/internal/config"
	"github.com/yashar0011/T4D-project/internal/exporter"
	"github.com/yashar0011/T4D-project/internal/pipeline"
	"github.com/yashar0011/T4D-project/internal/settings"
)

// amts-watcher runs the slice pipeline headless: no HTTP API, no
// websocket hub. Useful on field laptops where only the exports matter.
func main() {
	settingsPath := flag.String("settings", "Settings.xlsx", "settings workbook path")
	outputRoot := flag.String("output-root", "output", "fallback export root for rows without an ExportFolder")
	poll := flag.Duration("poll", 60*time.Second, "idle interval between passes")
	debounce := flag.Duration("debounce", 2*time.Second, "quiet period after a workbook save")
	once := flag.Bool("once", false, "run a single pass and exit")
	full := flag.Bool("full", false, "ignore the cache and reprocess every slice")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.PipelineConfig{
		SettingsPath: *settingsPath,
		OutputRoot:   *outputRoot,
		PollInterval: *poll,
		Debounce:     *debounce,
	}

	profiles := settings.LoadProfiles(cfg.SettingsPath, logger)
	source := pipeline.NewRawSource(profiles, logger)
	sinks := []pipeline.Sink{
		exporter.NewCSVSink(logger),
		exporter.NewDataloggerSink(logger),
		exporter.NewExcelSink(logger),
	}
	processor := pipeline.NewProcessor(source, profiles, sinks, logger, nil)
	cache := pipeline.NewCache(cfg.SettingsPath, logger)
	loader := settings.NewLoader(logger)

	watcher := pipeline.NewWatcher(cfg, workbookSource{loader}, cache, processor, nil, logger, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once || *full {
		if err := watcher.RunOnce(ctx, *full); err != nil {
			logger.Error("pass failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("watch loop failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type workbookSource struct {
	loader *settings.Loader
}

func (s workbookSource) Load(path string) ([]settings.Row, error) {
	return s.loader.Load(path)
}
