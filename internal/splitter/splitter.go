// Package splitter breaks instrument export CSVs into per-point files.
// Each pass matches files in the export root against the configured file
// profiles, splits their rows by point under the separated root, and
// archives the processed originals so a file is never split twice.
package splitter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "github.com/yashar0011/T4D-project/internal/errors"
	"github.com/yashar0011/T4D-project/internal/pipeline"
	"github.com/yashar0011/T4D-project/internal/settings"
)

const timestampLayout = "2006-01-02 15:04:05"

// Column fallbacks for profiles that leave a mapping blank
const (
	defaultColumnTime      = "Event Time (UTC)"
	defaultColumnPoint     = "Point Name"
	defaultColumnNorthing  = "Northing"
	defaultColumnEasting   = "Easting"
	defaultColumnElevation = "Elevation"
)

// Splitter performs the profile-driven split passes
type Splitter struct {
	exportRoot    string
	separatedRoot string
	profiles      *settings.ProfileSet
	normalizer    *pipeline.TimeNormalizer
	logger        *slog.Logger
}

func New(exportRoot, separatedRoot string, profiles *settings.ProfileSet, logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{
		exportRoot:    exportRoot,
		separatedRoot: separatedRoot,
		profiles:      profiles,
		normalizer:    pipeline.NewTimeNormalizer(),
		logger:        logger.With(slog.String("component", "splitter")),
	}
}

// Run executes split passes every interval until ctx is cancelled
func (s *Splitter) Run(ctx context.Context, interval time.Duration) error {
	s.logger.Info("splitter loop started",
		slog.String("export_root", s.exportRoot),
		slog.String("separated_root", s.separatedRoot),
		slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass over every profile. Per-file failures
// are contained: the file is left in place for the next pass and logged.
func (s *Splitter) RunOnce(ctx context.Context) {
	for _, name := range s.profiles.Names() {
		if ctx.Err() != nil {
			return
		}
		prof, _ := s.profiles.Get(name)
		if prof.Match == "" {
			continue
		}
		s.runProfile(ctx, prof)
	}
}

func (s *Splitter) runProfile(ctx context.Context, prof settings.Profile) {
	matches, err := filepath.Glob(filepath.Join(s.exportRoot, prof.Match))
	if err != nil {
		s.logger.Warn("bad profile glob",
			slog.String("profile", prof.Name),
			slog.String("pattern", prof.Match),
			slog.String("error", err.Error()))
		return
	}

	for _, path := range matches {
		if ctx.Err() != nil {
			return
		}
		name := filepath.Base(path)
		archived := filepath.Join(s.exportRoot, "archive", name)
		if _, err := os.Stat(archived); err == nil {
			continue
		}

		if err := s.splitFile(path, prof); err != nil {
			s.logger.Error("split failed, file left for next pass",
				slog.String("file", name),
				slog.String("error", err.Error()))
			continue
		}
		if err := s.archive(path, archived); err != nil {
			s.logger.Warn("could not archive processed file",
				slog.String("file", name),
				slog.String("error", err.Error()))
		}
	}
}

// splitFile reads one export CSV and writes its rows into per-point
// files named <stem>_<point>_<stamp>.csv under the separated root. The
// stamp comes from the export filename; rows whose local timestamp is
// ambiguous or unparseable keep an empty TIMESTAMP field.
func (s *Splitter) splitFile(path string, prof settings.Profile) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.NewSourceReadError(path, "unreadable", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return apperrors.NewSourceReadError(path, "missing header row", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	timeIdx, okT := cols[orDefault(prof.ColumnTime, defaultColumnTime)]
	pointIdx, okP := cols[orDefault(prof.ColumnPoint, defaultColumnPoint)]
	elevIdx, okH := cols[orDefault(prof.ColumnElevation, defaultColumnElevation)]
	if !okT || !okP || !okH {
		return apperrors.NewSourceReadError(path, "missing mandatory columns", nil)
	}
	northIdx, hasN := cols[orDefault(prof.ColumnNorthing, defaultColumnNorthing)]
	eastIdx, hasE := cols[orDefault(prof.ColumnEasting, defaultColumnEasting)]

	loc := prof.Location()
	byPoint := make(map[string][][]string)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return apperrors.NewSourceReadError(path, "malformed CSV", err)
		}

		point := strings.TrimSpace(field(row, pointIdx))
		if point == "" {
			continue
		}
		local := field(row, timeIdx)
		stamp := ""
		if ts, ok := s.normalizer.ToUTC(local, loc); ok {
			stamp = ts.Format(timestampLayout)
		}
		out := []string{stamp, local, point, "", "", field(row, elevIdx)}
		if hasN {
			out[3] = field(row, northIdx)
		}
		if hasE {
			out[4] = field(row, eastIdx)
		}
		byPoint[point] = append(byPoint[point], out)
	}

	stem, stamp := stemAndStamp(filepath.Base(path))
	points := make([]string, 0, len(byPoint))
	for p := range byPoint {
		points = append(points, p)
	}
	sort.Strings(points)

	for _, point := range points {
		if err := s.writePointFile(stem, point, stamp, byPoint[point]); err != nil {
			return err
		}
		s.logger.Info("split point file written",
			slog.String("source", filepath.Base(path)),
			slog.String("point", point),
			slog.Int("rows", len(byPoint[point])))
	}
	return nil
}

var splitHeader = []string{"TIMESTAMP", "LOCAL_TIME", "POINT_RAW", "Northing", "Easting", "Elevation"}

func (s *Splitter) writePointFile(stem, point, stamp string, rows [][]string) error {
	dir := filepath.Join(s.separatedRoot, stem+"_"+point)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create point directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.csv", stem, point, stamp))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create point file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(splitHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Splitter) archive(path, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.Rename(path, dest)
}

// stemAndStamp derives the instrument stem and an ISO-ish stamp from an
// export filename like "Integrity Monitor [OLS]_20250311_200102_UTC.csv":
// everything before the date/time suffix is the stem, the date/time pair
// becomes the stamp. Names without the suffix keep the full stem and get
// the stamp "unknown".
func stemAndStamp(filename string) (string, string) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return base, "unknown"
	}
	datePart := parts[len(parts)-3] + "_" + parts[len(parts)-2]
	ts, err := time.Parse("20060102_150405", datePart)
	if err != nil {
		return base, "unknown"
	}
	stem := strings.Join(parts[:len(parts)-3], "_")
	if stem == "" {
		stem = base
	}
	return stem, ts.Format("2006-01-02T150405Z")
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
