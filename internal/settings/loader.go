package settings

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/yashar0011/T4D-project/internal/errors"
)

// SettingsSheet is the worksheet holding point configuration rows
const SettingsSheet = "Settings"

// requiredColumns must all be present in the header row; a missing one is
// a structural error that fails the whole reload cycle.
var requiredColumns = []string{
	"Active", "SensorID", "Site", "PointName", "Type",
	"ImportFolder", "BaselineH", "OutlierMAD", "StartUTC",
	"CSVImport", "FileProfile",
}

// knownColumns are consumed into typed Row fields; anything else lands in
// Row.Extra untouched.
var knownColumns = map[string]bool{
	"Active": true, "SensorID": true, "Site": true, "PointName": true,
	"Type": true, "ImportFolder": true, "ExportFolder": true,
	"BaselineN": true, "BaselineE": true, "BaselineH": true,
	"OutlierMAD": true, "StartUTC": true, "CSVImport": true,
	"DBImport": true, "FileProfile": true,
}

// startLayouts are the timestamp layouts accepted for StartUTC cells
var startLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
	"1/2/06 15:04",
	"01-02-06 15:04",
}

// Loader reads validated configuration rows from the Settings workbook
type Loader struct {
	logger   *slog.Logger
	validate *validator.Validate
}

// NewLoader creates a workbook loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger:   logger.With(slog.String("component", "settings")),
		validate: validator.New(),
	}
}

// Load reads the Settings sheet and returns only the rows meant to be
// processed (CSVImport = true), sorted by SensorID for reproducibility.
// Structural problems (missing sheet or column, invalid enabled row)
// return a *ConfigValidationError and no rows.
func (l *Loader) Load(path string) ([]Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewConfigValidationError(fmt.Sprintf("cannot open workbook %s: %v", path, err))
	}
	defer f.Close()

	sheet := SettingsSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		// Single-sheet workbooks exported without a sheet rename
		sheet = f.GetSheetName(0)
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewConfigValidationError(fmt.Sprintf("cannot read sheet %q: %v", sheet, err))
	}
	if len(cells) == 0 {
		return nil, apperrors.NewConfigValidationError("settings sheet is empty")
	}

	header := headerIndex(cells[0])
	for _, col := range requiredColumns {
		if _, ok := header[col]; !ok {
			return nil, apperrors.NewConfigValidationError(fmt.Sprintf("missing required column %q", col))
		}
	}

	var rows []Row
	for i, record := range cells[1:] {
		sheetRow := i + 2 // 1-based, after the header
		if isBlank(record) {
			continue
		}
		if !ParseFlag(cell(record, header, "CSVImport")) {
			continue
		}
		row, err := l.parseRow(record, header, sheetRow)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(a, b int) bool {
		if rows[a].SensorID != rows[b].SensorID {
			return rows[a].SensorID < rows[b].SensorID
		}
		if rows[a].PointName != rows[b].PointName {
			return rows[a].PointName < rows[b].PointName
		}
		return rows[a].StartUTC.Before(rows[b].StartUTC)
	})

	l.logger.Info("settings loaded",
		slog.String("path", path),
		slog.Int("active_rows", len(rows)))
	return rows, nil
}

func (l *Loader) parseRow(record []string, header map[string]int, sheetRow int) (Row, error) {
	row := Row{
		Active:       ParseFlag(cell(record, header, "Active")),
		Site:         strings.TrimSpace(cell(record, header, "Site")),
		PointName:    strings.TrimSpace(cell(record, header, "PointName")),
		ImportFolder: strings.TrimSpace(cell(record, header, "ImportFolder")),
		ExportFolder: strings.TrimSpace(cell(record, header, "ExportFolder")),
		CSVImport:    true,
		DBImport:     ParseFlag(cell(record, header, "DBImport")),
		FileProfile:  strings.TrimSpace(cell(record, header, "FileProfile")),
		SheetRow:     sheetRow - 1,
	}

	pt, ok := ParsePointType(cell(record, header, "Type"))
	if !ok {
		return Row{}, apperrors.NewRowValidationError(sheetRow, "Type",
			fmt.Sprintf("must be Reflective or Reflectless, got %q", cell(record, header, "Type")))
	}
	row.Type = pt

	id, err := strconv.Atoi(strings.TrimSpace(cell(record, header, "SensorID")))
	if err != nil {
		return Row{}, apperrors.NewRowValidationError(sheetRow, "SensorID", "must be an integer")
	}
	row.SensorID = id

	h, err := parseFloatCell(cell(record, header, "BaselineH"))
	if err != nil || h == nil {
		return Row{}, apperrors.NewRowValidationError(sheetRow, "BaselineH", "mandatory numeric baseline")
	}
	row.BaselineH = *h

	if row.BaselineN, err = parseFloatCell(cell(record, header, "BaselineN")); err != nil {
		return Row{}, apperrors.NewRowValidationError(sheetRow, "BaselineN", "must be numeric")
	}
	if row.BaselineE, err = parseFloatCell(cell(record, header, "BaselineE")); err != nil {
		return Row{}, apperrors.NewRowValidationError(sheetRow, "BaselineE", "must be numeric")
	}
	if row.IsReflective() && (row.BaselineN == nil || row.BaselineE == nil) {
		return Row{}, apperrors.NewRowValidationError(sheetRow, "BaselineN",
			"Reflective points require BaselineN and BaselineE")
	}

	mad, err := parseFloatCell(cell(record, header, "OutlierMAD"))
	if err != nil {
		return Row{}, apperrors.NewRowValidationError(sheetRow, "OutlierMAD", "must be numeric")
	}
	if mad == nil {
		row.OutlierMAD = DefaultOutlierMAD
	} else {
		row.OutlierMAD = *mad
	}

	start, err := parseStartUTC(cell(record, header, "StartUTC"))
	if err != nil {
		return Row{}, apperrors.NewRowValidationError(sheetRow, "StartUTC",
			fmt.Sprintf("unparseable timestamp %q", cell(record, header, "StartUTC")))
	}
	row.StartUTC = start

	for name, idx := range header {
		if knownColumns[name] || idx >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[idx]); v != "" {
			if row.Extra == nil {
				row.Extra = make(map[string]string)
			}
			row.Extra[name] = v
		}
	}

	if err := l.validate.Struct(&row); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			return Row{}, apperrors.NewRowValidationError(sheetRow, verrs[0].Field(),
				fmt.Sprintf("failed %q constraint", verrs[0].Tag()))
		}
		return Row{}, apperrors.NewRowValidationError(sheetRow, "", err.Error())
	}
	return row, nil
}

// PatchCell writes one cell in the Settings sheet. rowID is the 1-based
// data row index (sheet row minus the header). Used by the HTTP settings
// endpoint; the watcher picks the change up through its normal reload.
func PatchCell(path string, rowID int, field, value string) error {
	if rowID < 1 {
		return fmt.Errorf("row %d out of range", rowID)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("cannot open workbook: %w", err)
	}
	defer f.Close()

	sheet := SettingsSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(0)
	}
	cells, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("cannot read sheet %q: %w", sheet, err)
	}
	if len(cells) == 0 {
		return fmt.Errorf("settings sheet is empty")
	}
	header := headerIndex(cells[0])
	col, ok := header[field]
	if !ok {
		return fmt.Errorf("unknown field %q", field)
	}
	if rowID+1 > len(cells) {
		return fmt.Errorf("row %d out of range", rowID)
	}

	axis, err := excelize.CoordinatesToCellName(col+1, rowID+1)
	if err != nil {
		return fmt.Errorf("cannot build cell reference: %w", err)
	}
	if err := f.SetCellValue(sheet, axis, value); err != nil {
		return fmt.Errorf("cannot set cell: %w", err)
	}
	return f.Save()
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name != "" {
			idx[name] = i
		}
	}
	return idx
}

func cell(record []string, header map[string]int, name string) string {
	idx, ok := header[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func isBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseFloatCell(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseStartUTC(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty StartUTC")
	}
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable StartUTC %q", s)
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}
