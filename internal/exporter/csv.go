// Package exporter contains the output sinks fed by the slice processor:
// an append-only slice CSV, a two-column datalogger CSV for database bulk
// loads, and a per-run Excel report.
package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/yashar0011/T4D-project/internal/pipeline"
)

// timestampLayout matches the datalogger convention; no zone suffix, the
// values are always UTC.
const timestampLayout = "2006-01-02 15:04:05"

// sliceDir resolves <ExportRoot>/<Site>/<runDate>/<Point> and creates it.
func sliceDir(info pipeline.SliceInfo) (string, error) {
	dir := filepath.Join(info.ExportRoot, info.Site,
		info.RunDate.UTC().Format("2006-01-02"), info.Point)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}

// appendCSV opens path for appending, writing the header only when the
// file did not exist yet.
func appendCSV(path string, header []string, records [][]string) error {
	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if writeHeader {
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

func formatMM(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatMeters(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptMM(v *float64) string {
	if v == nil {
		return ""
	}
	return formatMM(*v)
}

// CSVSink appends cleaned samples to the per-slice CSV,
// <Point>_<Sensor>_<sliceStamp>.csv under the slice output directory.
// Successive runs of the same slice keep appending, so the file grows into
// the full cleaned history of that slice.
type CSVSink struct {
	logger *slog.Logger
}

func NewCSVSink(logger *slog.Logger) *CSVSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVSink{logger: logger.With(slog.String("component", "csv_sink"))}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Publish(ctx context.Context, info pipeline.SliceInfo, samples []pipeline.CleanedSample) error {
	if len(samples) == 0 {
		return nil
	}
	dir, err := sliceDir(info)
	if err != nil {
		return err
	}

	header := []string{"TIMESTAMP", "POINT_RAW", "Northing", "Easting", "Elevation", "Delta_H_mm"}
	if info.Reflective {
		header = append(header, "Delta_N_mm", "Delta_E_mm")
	}
	records := make([][]string, 0, len(samples))
	for _, s := range samples {
		rec := []string{
			s.Timestamp.UTC().Format(timestampLayout),
			s.PointRaw,
			formatMeters(s.Northing),
			formatMeters(s.Easting),
			formatMeters(s.Elevation),
			formatMM(s.DeltaHmm),
		}
		if info.Reflective {
			rec = append(rec, formatOptMM(s.DeltaNmm), formatOptMM(s.DeltaEmm))
		}
		records = append(records, rec)
	}

	name := fmt.Sprintf("%s_%d_%s.csv", info.Point, info.Sensor, info.SliceStamp())
	path := filepath.Join(dir, name)
	if err := appendCSV(path, header, records); err != nil {
		return fmt.Errorf("slice csv %s: %w", name, err)
	}
	s.logger.Info("appended slice CSV",
		slog.String("path", path),
		slog.Int("rows", len(records)))
	return nil
}

// DataloggerSink mirrors the height deltas into <Point>_<Sensor>_dl.csv,
// a two-column file shaped for SQL bulk loads. It only writes for slices
// flagged for database import and is a no-op otherwise.
type DataloggerSink struct {
	logger *slog.Logger
}

func NewDataloggerSink(logger *slog.Logger) *DataloggerSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataloggerSink{logger: logger.With(slog.String("component", "datalogger_sink"))}
}

func (s *DataloggerSink) Name() string { return "datalogger" }

func (s *DataloggerSink) Publish(ctx context.Context, info pipeline.SliceInfo, samples []pipeline.CleanedSample) error {
	if !info.DBImport || len(samples) == 0 {
		return nil
	}
	dir, err := sliceDir(info)
	if err != nil {
		return err
	}

	records := make([][]string, 0, len(samples))
	for _, s := range samples {
		records = append(records, []string{
			s.Timestamp.UTC().Format(timestampLayout),
			formatMM(s.DeltaHmm),
		})
	}

	name := fmt.Sprintf("%s_%d_dl.csv", info.Point, info.Sensor)
	path := filepath.Join(dir, name)
	if err := appendCSV(path, []string{"TIMESTAMP", "Delta_H_mm"}, records); err != nil {
		return fmt.Errorf("datalogger csv %s: %w", name, err)
	}
	s.logger.Info("appended datalogger CSV",
		slog.String("path", path),
		slog.Int("rows", len(records)))
	return nil
}

// DataloggerRow is one parsed row of a *_dl.csv file
type DataloggerRow struct {
	Timestamp time.Time
	DeltaHmm  float64
}

// ReadDatalogger parses a *_dl.csv written by DataloggerSink. Rows with
// unparseable fields are skipped rather than failing the whole file; the
// files are append-only and a torn final line must not poison history.
func ReadDatalogger(path string) ([]DataloggerRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	var rows []DataloggerRow
	for i, rec := range all {
		if i == 0 || len(rec) < 2 {
			continue
		}
		ts, err := time.ParseInLocation(timestampLayout, rec[0], time.UTC)
		if err != nil {
			continue
		}
		delta, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			continue
		}
		rows = append(rows, DataloggerRow{Timestamp: ts, DeltaHmm: delta})
	}
	return rows, nil
}
