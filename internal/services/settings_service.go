// Package services holds the application services behind the HTTP layer:
// settings access and patching, delta history reads, the outputs browser
// and health reporting. Services never expose transport concerns; the
// handlers translate their results and errors into JSON.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/yashar0011/T4D-project/internal/pipeline"
	"github.com/yashar0011/T4D-project/internal/settings"
)

// CommandQueue accepts pipeline control commands; implemented by the
// watcher. Enqueue reports false when the queue is full.
type CommandQueue interface {
	Enqueue(cmd pipeline.Command) bool
}

// SettingsService serves the configuration rows to the API and patches
// single cells back into the workbook. Rows are cached after the first
// load; a patch (or an explicit Refresh) invalidates the cache so the
// next read sees the new workbook state.
type SettingsService struct {
	path   string
	loader *settings.Loader
	queue  CommandQueue
	logger *slog.Logger

	mu     sync.Mutex
	rows   []settings.Row
	loaded bool
}

func NewSettingsService(path string, queue CommandQueue, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{
		path:   path,
		loader: settings.NewLoader(logger),
		queue:  queue,
		logger: logger.With(slog.String("component", "settings_service")),
	}
}

// Rows returns the enabled configuration rows, loading the workbook on
// first use.
func (s *SettingsService) Rows(ctx context.Context) ([]settings.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		rows, err := s.loader.Load(s.path)
		if err != nil {
			return nil, err
		}
		s.rows = rows
		s.loaded = true
	}
	return append([]settings.Row(nil), s.rows...), nil
}

// Refresh drops the cached rows so the next read rereads the workbook
func (s *SettingsService) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.rows = nil
}

// Points returns every configured point name, deduplicated and sorted
func (s *SettingsService) Points(ctx context.Context) ([]string, error) {
	rows, err := s.Rows(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(rows))
	var points []string
	for _, row := range rows {
		if !seen[row.PointName] {
			seen[row.PointName] = true
			points = append(points, row.PointName)
		}
	}
	sort.Strings(points)
	return points, nil
}

// Find returns the first configuration row for the named point
func (s *SettingsService) Find(ctx context.Context, point string) (settings.Row, bool, error) {
	rows, err := s.Rows(ctx)
	if err != nil {
		return settings.Row{}, false, err
	}
	for _, row := range rows {
		if row.PointName == point {
			return row, true, nil
		}
	}
	return settings.Row{}, false, nil
}

// Patch writes one cell of the given data row back into the workbook,
// invalidates the cache and nudges the watcher to run a cycle so the
// change takes effect immediately.
func (s *SettingsService) Patch(ctx context.Context, rowID int, field, value string) error {
	rows, err := s.Rows(ctx)
	if err != nil {
		return err
	}
	known := false
	for _, row := range rows {
		if row.SheetRow == rowID {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("row %d not found", rowID)
	}

	if err := settings.PatchCell(s.path, rowID, field, value); err != nil {
		return fmt.Errorf("patch failed: %w", err)
	}
	s.Refresh()

	if s.queue != nil && !s.queue.Enqueue(pipeline.CommandRunOnce) {
		s.logger.Warn("could not queue pipeline run after settings patch")
	}
	s.logger.Info("settings cell patched",
		slog.Int("row", rowID),
		slog.String("field", field))
	return nil
}
