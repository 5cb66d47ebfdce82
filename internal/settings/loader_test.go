package settings

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/yashar0011/T4D-project/internal/errors"
)

var settingsHeader = []interface{}{
	"Active", "SensorID", "Site", "PointName", "Type", "ImportFolder",
	"ExportFolder", "BaselineN", "BaselineE", "BaselineH", "OutlierMAD",
	"StartUTC", "CSVImport", "DBImport", "FileProfile", "Notes",
}

func writeWorkbook(t *testing.T, rows [][]interface{}, profiles [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", SettingsSheet))
	require.NoError(t, f.SetSheetRow(SettingsSheet, "A1", &settingsHeader))
	for i, row := range rows {
		axis := fmt.Sprintf("A%d", i+2)
		require.NoError(t, f.SetSheetRow(SettingsSheet, axis, &row))
	}

	if profiles != nil {
		_, err := f.NewSheet(ProfilesSheet)
		require.NoError(t, err)
		header := []interface{}{
			"Profile", "Match", "ColumnTime", "ColumnPoint",
			"ColumnNorthing", "ColumnEasting", "ColumnElevation", "TimeZone",
		}
		require.NoError(t, f.SetSheetRow(ProfilesSheet, "A1", &header))
		for i, row := range profiles {
			axis := fmt.Sprintf("A%d", i+2)
			require.NoError(t, f.SetSheetRow(ProfilesSheet, axis, &row))
		}
	}

	path := filepath.Join(t.TempDir(), "Settings.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func activeRow(point string, sensor int, start string) []interface{} {
	return []interface{}{
		"TRUE", sensor, "SiteA", point, "Reflective", "/import", "/export",
		"1000.5", "2000.25", "100.0", "3.5", start, "yes", "no", "IM", "free text",
	}
}

func TestLoad_ActiveRowsOnly(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		activeRow("PT01", 12, "2024-01-01 00:00:00"),
		{"TRUE", 13, "SiteA", "PT02", "Reflectless", "/import", "", "", "", "55.1", "", "2024-02-01 00:00:00", "FALSE", "", "IM", ""},
		activeRow("PT03", 14, "2024-03-01 00:00:00"),
	}, nil)

	rows, err := NewLoader(slog.Default()).Load(path)
	require.NoError(t, err)
	require.Len(t, rows, 2, "CSVImport=FALSE row must be dropped")

	assert.Equal(t, "PT01", rows[0].PointName)
	assert.Equal(t, 12, rows[0].SensorID)
	assert.True(t, rows[0].Active)
	assert.Equal(t, PointReflective, rows[0].Type)
	require.NotNil(t, rows[0].BaselineN)
	assert.InDelta(t, 1000.5, *rows[0].BaselineN, 1e-9)
	assert.InDelta(t, 100.0, rows[0].BaselineH, 1e-9)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rows[0].StartUTC)
	assert.Equal(t, "free text", rows[0].Extra["Notes"])
}

func TestLoad_SortedBySensorID(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		activeRow("PT09", 99, "2024-01-01 00:00:00"),
		activeRow("PT01", 3, "2024-01-01 00:00:00"),
		activeRow("PT05", 42, "2024-01-01 00:00:00"),
	}, nil)

	rows, err := NewLoader(nil).Load(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int{3, 42, 99}, []int{rows[0].SensorID, rows[1].SensorID, rows[2].SensorID})
}

func TestLoad_DefaultOutlierMAD(t *testing.T) {
	row := activeRow("PT01", 1, "2024-01-01 00:00:00")
	row[10] = "" // blank OutlierMAD
	path := writeWorkbook(t, [][]interface{}{row}, nil)

	rows, err := NewLoader(nil).Load(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, DefaultOutlierMAD, rows[0].OutlierMAD, 1e-9)
}

func TestLoad_StructuralErrors(t *testing.T) {
	t.Run("missing required column", func(t *testing.T) {
		f := excelize.NewFile()
		defer f.Close()
		require.NoError(t, f.SetSheetName("Sheet1", SettingsSheet))
		header := []interface{}{"Active", "SensorID", "PointName"} // far too few
		require.NoError(t, f.SetSheetRow(SettingsSheet, "A1", &header))
		path := filepath.Join(t.TempDir(), "Settings.xlsx")
		require.NoError(t, f.SaveAs(path))

		_, err := NewLoader(nil).Load(path)
		require.Error(t, err)
		assert.True(t, apperrors.IsConfigValidation(err))
	})

	t.Run("missing workbook", func(t *testing.T) {
		_, err := NewLoader(nil).Load(filepath.Join(t.TempDir(), "nope.xlsx"))
		require.Error(t, err)
		assert.True(t, apperrors.IsConfigValidation(err))
	})
}

func TestLoad_RowValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]interface{})
	}{
		{"bad type", func(r []interface{}) { r[4] = "Prism" }},
		{"reflective without northing baseline", func(r []interface{}) { r[7] = "" }},
		{"missing elevation baseline", func(r []interface{}) { r[9] = "" }},
		{"non-positive threshold", func(r []interface{}) { r[10] = "-1" }},
		{"bad sensor id", func(r []interface{}) { r[1] = "twelve" }},
		{"unparseable start", func(r []interface{}) { r[11] = "whenever" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := activeRow("PT01", 1, "2024-01-01 00:00:00")
			tt.mutate(row)
			path := writeWorkbook(t, [][]interface{}{row}, nil)

			_, err := NewLoader(nil).Load(path)
			require.Error(t, err)
			assert.True(t, apperrors.IsConfigValidation(err))
		})
	}
}

func TestLoad_ReflectlessWithoutHorizontalBaselines(t *testing.T) {
	row := []interface{}{
		"1", 7, "SiteB", "RL01", "reflectless", "/import", "", "", "", "88.25",
		"4", "2024-06-01 12:00:00", "TRUE", "TRUE", "IM", "",
	}
	path := writeWorkbook(t, [][]interface{}{row}, nil)

	rows, err := NewLoader(nil).Load(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, PointReflectless, rows[0].Type)
	assert.Nil(t, rows[0].BaselineN)
	assert.Nil(t, rows[0].BaselineE)
	assert.True(t, rows[0].DBImport)
}

func TestPatchCell(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		activeRow("PT01", 12, "2024-01-01 00:00:00"),
	}, nil)

	require.NoError(t, PatchCell(path, 1, "OutlierMAD", "5.0"))

	rows, err := NewLoader(nil).Load(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 5.0, rows[0].OutlierMAD, 1e-9)

	assert.Error(t, PatchCell(path, 1, "NoSuchColumn", "x"))
	assert.Error(t, PatchCell(path, 99, "OutlierMAD", "x"))
	assert.Error(t, PatchCell(path, 0, "OutlierMAD", "x"))
}
