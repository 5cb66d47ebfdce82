package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/yashar0011/T4D-project/internal/pipeline"
)

// ExcelSink writes the per-run report workbook
// <Point>_<Sensor>_<runDate>.xlsx with two sheets: Combined holds the
// cleaned samples of this run, Summary holds descriptive statistics per
// delta column. The workbook is rewritten on every run of the slice.
type ExcelSink struct {
	logger *slog.Logger
}

func NewExcelSink(logger *slog.Logger) *ExcelSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelSink{logger: logger.With(slog.String("component", "excel_sink"))}
}

func (s *ExcelSink) Name() string { return "excel" }

func (s *ExcelSink) Publish(ctx context.Context, info pipeline.SliceInfo, samples []pipeline.CleanedSample) error {
	if len(samples) == 0 {
		return nil
	}
	dir, err := sliceDir(info)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	combined := f.GetSheetName(0)
	f.SetSheetName(combined, "Combined")

	header := []interface{}{"TIMESTAMP", "POINT_RAW", "Northing", "Easting", "Elevation", "Delta_H_mm"}
	if info.Reflective {
		header = append(header, "Delta_N_mm", "Delta_E_mm")
	}
	if err := f.SetSheetRow("Combined", "A1", &header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}
	for i, sample := range samples {
		row := []interface{}{
			sample.Timestamp.UTC().Format(timestampLayout),
			sample.PointRaw,
			sample.Northing,
			sample.Easting,
			sample.Elevation,
			sample.DeltaHmm,
		}
		if info.Reflective {
			row = append(row, optCell(sample.DeltaNmm), optCell(sample.DeltaEmm))
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow("Combined", cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if err := writeSummarySheet(f, info, samples); err != nil {
		return err
	}

	name := fmt.Sprintf("%s_%d_%s.xlsx", info.Point, info.Sensor,
		info.RunDate.UTC().Format("2006-01-02"))
	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", name, err)
	}
	s.logger.Info("wrote report workbook",
		slog.String("path", path),
		slog.Int("rows", len(samples)))
	return nil
}

func optCell(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// columnStats is a describe-style summary of one numeric column
type columnStats struct {
	Column string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
}

func describe(column string, values []float64) columnStats {
	st := columnStats{Column: column, Count: len(values)}
	if len(values) == 0 {
		return st
	}
	st.Min, st.Max = values[0], values[0]
	sum := 0.0
	for _, v := range values {
		sum += v
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
	}
	st.Mean = sum / float64(len(values))
	if len(values) > 1 {
		ss := 0.0
		for _, v := range values {
			d := v - st.Mean
			ss += d * d
		}
		// Sample standard deviation, ddof=1
		st.Std = math.Sqrt(ss / float64(len(values)-1))
	}
	return st
}

func writeSummarySheet(f *excelize.File, info pipeline.SliceInfo, samples []pipeline.CleanedSample) error {
	if _, err := f.NewSheet("Summary"); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	heights := make([]float64, 0, len(samples))
	var norths, easts []float64
	for _, s := range samples {
		heights = append(heights, s.DeltaHmm)
		if s.DeltaNmm != nil {
			norths = append(norths, *s.DeltaNmm)
		}
		if s.DeltaEmm != nil {
			easts = append(easts, *s.DeltaEmm)
		}
	}

	stats := []columnStats{describe("Delta_H_mm", heights)}
	if info.Reflective {
		stats = append(stats,
			describe("Delta_N_mm", norths),
			describe("Delta_E_mm", easts))
	}

	header := []interface{}{"Column", "Count", "Mean", "Std", "Min", "Max"}
	if err := f.SetSheetRow("Summary", "A1", &header); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	for i, st := range stats {
		row := []interface{}{st.Column, st.Count, st.Mean, st.Std, st.Min, st.Max}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow("Summary", cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i, err)
		}
	}
	return nil
}
