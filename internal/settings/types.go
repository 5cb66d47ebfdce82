// Package settings loads and validates the monitoring configuration
// workbook: the Settings sheet (one row per monitored point slice) and the
// FileProfiles sheet (column-mapping/timezone descriptors for raw exports).
package settings

import (
	"strconv"
	"strings"
	"time"
)

// PointType determines whether horizontal displacement is tracked in
// addition to vertical.
type PointType string

const (
	PointReflective  PointType = "Reflective"
	PointReflectless PointType = "Reflectless"
)

// ParsePointType normalizes a workbook Type cell
func ParsePointType(s string) (PointType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reflective":
		return PointReflective, true
	case "reflectless":
		return PointReflectless, true
	default:
		return "", false
	}
}

// DefaultOutlierMAD is applied when the OutlierMAD cell is blank
const DefaultOutlierMAD = 3.5

// Row is one validated monitored-point configuration entry.
// BaselineN/E are nil for Reflectless points.
type Row struct {
	Active       bool
	SensorID     int    `validate:"gte=0"`
	Site         string `validate:"required"`
	PointName    string `validate:"required"`
	Type         PointType
	ImportFolder string `validate:"required"`
	ExportFolder string
	BaselineN    *float64
	BaselineE    *float64
	BaselineH    float64
	OutlierMAD   float64 `validate:"gt=0"`
	StartUTC     time.Time
	CSVImport    bool
	DBImport     bool
	FileProfile  string `validate:"required"`

	// SheetRow is the 1-based data row in the Settings sheet (header
	// excluded), the address PatchCell takes. Not part of the content
	// hash: reordering rows must not flag them as changed.
	SheetRow int

	// Extra carries unrecognized workbook columns verbatim. They take no
	// part in processing or content hashing.
	Extra map[string]string
}

// IsReflective reports whether horizontal deltas apply to this row
func (r *Row) IsReflective() bool {
	return r.Type == PointReflective
}

// hashFieldSep joins the hashed field subset; the watermark and Extra
// columns are deliberately excluded so progress and cosmetic edits never
// flag a row as changed.
const hashFieldSep = "||"

// ContentKey returns the canonical string over the fixed ordered field
// subset that determines whether a row's configuration has changed.
func (r *Row) ContentKey() string {
	parts := []string{
		strconv.FormatBool(r.Active),
		strconv.Itoa(r.SensorID),
		r.Site,
		r.PointName,
		string(r.Type),
		r.ImportFolder,
		r.ExportFolder,
		formatOptFloat(r.BaselineN),
		formatOptFloat(r.BaselineE),
		strconv.FormatFloat(r.BaselineH, 'g', -1, 64),
		strconv.FormatFloat(r.OutlierMAD, 'g', -1, 64),
		r.StartUTC.UTC().Format(time.RFC3339),
	}
	return strings.Join(parts, hashFieldSep)
}

func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}

// ParseFlag coerces the heterogeneous truthy encodings that show up in
// spreadsheets. Accepted true tokens: "true", "1", "yes" (case and
// whitespace insensitive). Everything else, including blank, is false.
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
