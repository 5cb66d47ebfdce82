package pipeline

import (
	"encoding/csv"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/yashar0011/T4D-project/internal/errors"
	"github.com/yashar0011/T4D-project/internal/settings"
)

// RawSource discovers and column-maps raw export files for a profile.
// It owns no state beyond its profile lookup; every call is a fresh read.
type RawSource struct {
	profiles *settings.ProfileSet
	logger   *slog.Logger
}

// NewRawSource creates a raw loader over the given profile set
func NewRawSource(profiles *settings.ProfileSet, logger *slog.Logger) *RawSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &RawSource{
		profiles: profiles,
		logger:   logger.With(slog.String("component", "raw_source")),
	}
}

// Load reads every file matching the profile's glob inside importDir and
// returns the column-mapped records. It never fails: a missing profile,
// no matching files, or unreadable files all collapse to an empty (or
// partial) result at this boundary, with each skipped file logged.
func (s *RawSource) Load(importDir, profileName string) []RawRecord {
	records, errs := s.load(importDir, profileName)
	for _, err := range errs {
		s.logger.Warn("raw file skipped",
			slog.String("import_dir", importDir),
			slog.String("profile", profileName),
			slog.String("error", err.Error()))
	}
	return records
}

// load is the internal result-typed variant so failure reasons stay
// assertable in tests.
func (s *RawSource) load(importDir, profileName string) ([]RawRecord, []error) {
	prof, ok := s.profiles.Get(profileName)
	if !ok {
		return nil, []error{apperrors.NewSourceReadError(importDir,
			"file profile "+strconv.Quote(profileName)+" not found", nil)}
	}

	matches, err := filepath.Glob(filepath.Join(importDir, prof.Match))
	if err != nil {
		return nil, []error{apperrors.NewSourceReadError(importDir, "bad glob pattern", err)}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	var records []RawRecord
	var errs []error
	for _, path := range matches {
		fileRecords, err := readRawFile(path, prof)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, fileRecords...)
	}
	return records, errs
}

// readRawFile parses one CSV and maps its columns per the profile.
// Missing mandatory columns (time, point, elevation) fail the whole file;
// absent optional N/E columns yield NaN values.
func readRawFile(path string, prof settings.Profile) ([]RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewSourceReadError(path, "unreadable", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, apperrors.NewSourceReadError(path, "missing header row", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	timeIdx, okT := lookupColumn(cols, prof.ColumnTime)
	pointIdx, okP := lookupColumn(cols, prof.ColumnPoint)
	elevIdx, okH := lookupColumn(cols, prof.ColumnElevation)
	if !okT || !okP || !okH {
		return nil, apperrors.NewSourceReadError(path, "missing mandatory columns", nil)
	}
	northIdx, hasN := lookupColumn(cols, prof.ColumnNorthing)
	eastIdx, hasE := lookupColumn(cols, prof.ColumnEasting)

	var records []RawRecord
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewSourceReadError(path, "malformed CSV", err)
		}

		rec := RawRecord{
			TimeText:  field(row, timeIdx),
			PointRaw:  field(row, pointIdx),
			Northing:  math.NaN(),
			Easting:   math.NaN(),
			Elevation: parseFloatOrNaN(field(row, elevIdx)),
		}
		if hasN {
			rec.Northing = parseFloatOrNaN(field(row, northIdx))
		}
		if hasE {
			rec.Easting = parseFloatOrNaN(field(row, eastIdx))
		}
		records = append(records, rec)
	}
	return records, nil
}

func lookupColumn(cols map[string]int, name string) (int, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false
	}
	idx, ok := cols[name]
	return idx, ok
}

func field(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseFloatOrNaN(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
