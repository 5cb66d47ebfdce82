package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yashar0011/T4D-project/internal/settings"
	"github.com/yashar0011/T4D-project/internal/splitter"
)

func main() {
	settingsPath := flag.String("settings", "Settings.xlsx", "settings workbook holding the FileProfiles sheet")
	exportRoot := flag.String("export-root", "", "folder with raw instrument CSVs")
	separatedRoot := flag.String("separated-root", "", "where per-point CSVs go")
	once := flag.Bool("once", false, "process once and exit")
	sleep := flag.Duration("sleep", 60*time.Second, "delay between passes")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *exportRoot == "" || *separatedRoot == "" {
		logger.Error("both -export-root and -separated-root are required")
		flag.Usage()
		os.Exit(2)
	}

	profiles := settings.LoadProfiles(*settingsPath, logger)
	if len(profiles.Names()) == 0 {
		logger.Error("no file profiles found in workbook",
			slog.String("settings", *settingsPath))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := splitter.New(*exportRoot, *separatedRoot, profiles, logger)
	if *once {
		s.RunOnce(ctx)
		return
	}
	if err := s.Run(ctx, *sleep); err != nil && ctx.Err() == nil {
		logger.Error("splitter loop failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
