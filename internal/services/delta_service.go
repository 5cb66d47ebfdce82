package services

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yashar0011/T4D-project/internal/exporter"
)

// Look-back window bounds for delta queries, in hours
const (
	MinLookbackHours     = 1
	MaxLookbackHours     = 168
	DefaultLookbackHours = 24
)

// DeltaService reads the datalogger CSV history written by the pipeline.
// It never fails towards the caller: any problem along the way collapses
// to an empty result, which the UI handles better than an error page.
type DeltaService struct {
	settings *SettingsService
	logger   *slog.Logger
	now      func() time.Time
}

func NewDeltaService(settings *SettingsService, logger *slog.Logger) *DeltaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeltaService{
		settings: settings,
		logger:   logger.With(slog.String("component", "delta_service")),
		now:      time.Now,
	}
}

// Deltas returns the last hours of height deltas for the named point,
// merged across every *_dl.csv under the point's output tree and sorted
// by timestamp. hours is clamped to the allowed window.
func (s *DeltaService) Deltas(ctx context.Context, point string, hours int) []exporter.DataloggerRow {
	if hours < MinLookbackHours {
		hours = MinLookbackHours
	}
	if hours > MaxLookbackHours {
		hours = MaxLookbackHours
	}

	row, ok, err := s.settings.Find(ctx, point)
	if err != nil || !ok {
		if err != nil {
			s.logger.Warn("settings unavailable for delta query",
				slog.String("error", err.Error()))
		}
		return nil
	}

	exportRoot := row.ExportFolder
	if exportRoot == "" {
		exportRoot = row.ImportFolder
	}
	if exportRoot == "" || row.Site == "" {
		return nil
	}

	var merged []exporter.DataloggerRow
	for _, path := range s.findDataloggerFiles(filepath.Join(exportRoot, row.Site), point) {
		rows, err := exporter.ReadDatalogger(path)
		if err != nil {
			s.logger.Warn("skipping unreadable datalogger file",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		merged = append(merged, rows...)
	}

	cutoff := s.now().UTC().Add(-time.Duration(hours) * time.Hour)
	filtered := merged[:0]
	for _, r := range merged {
		if !r.Timestamp.Before(cutoff) {
			filtered = append(filtered, r)
		}
	}
	sort.Slice(filtered, func(a, b int) bool {
		return filtered[a].Timestamp.Before(filtered[b].Timestamp)
	})
	return filtered
}

// findDataloggerFiles walks <siteRoot>/**/<point>/*_dl.csv. The run-date
// layer between site and point varies, so this is a walk rather than a
// fixed-depth glob.
func (s *DeltaService) findDataloggerFiles(siteRoot, point string) []string {
	var paths []string
	filepath.WalkDir(siteRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), "_dl.csv") {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) != point {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	return paths
}
