package splitter

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashar0011/T4D-project/internal/settings"
	"github.com/xuri/excelize/v2"
)

const exportContent = "Point Name,Event Time (UTC),Northing,Easting,Elevation\n" +
	"PT01,2024-01-02 00:00:00,500.001,600.002,100.001\n" +
	"PT02,2024-01-02 00:00:00,500.101,600.102,100.101\n" +
	"PT01,2024-01-02 01:00:00,500.002,600.001,100.002\n"

func profileWorkbook(t *testing.T, dir string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := "FileProfiles"
	f.SetSheetName(f.GetSheetName(0), sheet)
	header := []interface{}{"Profile", "Match", "ColumnTime", "ColumnPoint",
		"ColumnNorthing", "ColumnEasting", "ColumnElevation", "TimeZone"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(dir, "Settings.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func splitterFixture(t *testing.T) (*Splitter, string, string) {
	t.Helper()
	exportRoot := t.TempDir()
	separatedRoot := t.TempDir()
	wb := profileWorkbook(t, t.TempDir(), [][]interface{}{
		{"IM", "Integrity Monitor*.csv", "Event Time (UTC)", "Point Name",
			"Northing", "Easting", "Elevation", ""},
	})
	profiles := settings.LoadProfiles(wb, nil)
	return New(exportRoot, separatedRoot, profiles, nil), exportRoot, separatedRoot
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunOnce_SplitsPerPointAndArchives(t *testing.T) {
	s, exportRoot, separatedRoot := splitterFixture(t)
	name := "Integrity Monitor [OLS]_20250311_200102_UTC.csv"
	require.NoError(t, os.WriteFile(filepath.Join(exportRoot, name), []byte(exportContent), 0644))

	s.RunOnce(context.Background())

	pt1 := filepath.Join(separatedRoot, "Integrity Monitor [OLS]_PT01",
		"Integrity Monitor [OLS]_PT01_2025-03-11T200102Z.csv")
	rows := readCSV(t, pt1)
	require.Len(t, rows, 3)
	assert.Equal(t, splitHeader, rows[0])
	assert.Equal(t, "2024-01-02 00:00:00", rows[1][0])
	assert.Equal(t, "PT01", rows[1][2])
	assert.Equal(t, "100.001", rows[1][5])

	pt2 := filepath.Join(separatedRoot, "Integrity Monitor [OLS]_PT02",
		"Integrity Monitor [OLS]_PT02_2025-03-11T200102Z.csv")
	assert.Len(t, readCSV(t, pt2), 2)

	_, err := os.Stat(filepath.Join(exportRoot, "archive", name))
	assert.NoError(t, err, "processed file moved to archive")
	_, err = os.Stat(filepath.Join(exportRoot, name))
	assert.True(t, os.IsNotExist(err))
}

func TestRunOnce_SkipsAlreadyArchivedFiles(t *testing.T) {
	s, exportRoot, separatedRoot := splitterFixture(t)
	name := "Integrity Monitor [OLS]_20250311_200102_UTC.csv"
	require.NoError(t, os.MkdirAll(filepath.Join(exportRoot, "archive"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(exportRoot, "archive", name), []byte(exportContent), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(exportRoot, name), []byte(exportContent), 0644))

	s.RunOnce(context.Background())

	entries, err := os.ReadDir(separatedRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "file with an archived copy is never re-split")
}

func TestRunOnce_BadFileLeftForNextPass(t *testing.T) {
	s, exportRoot, _ := splitterFixture(t)
	name := "Integrity Monitor [bad]_20250311_200102_UTC.csv"
	require.NoError(t, os.WriteFile(filepath.Join(exportRoot, name),
		[]byte("Wrong,Header\n1,2\n"), 0644))

	s.RunOnce(context.Background())

	_, err := os.Stat(filepath.Join(exportRoot, name))
	assert.NoError(t, err, "unsplittable file stays in place")
	_, err = os.Stat(filepath.Join(exportRoot, "archive", name))
	assert.True(t, os.IsNotExist(err))
}

func TestSplitFile_InvalidTimestampKeptWithEmptyField(t *testing.T) {
	s, exportRoot, separatedRoot := splitterFixture(t)
	content := "Point Name,Event Time (UTC),Northing,Easting,Elevation\n" +
		"PT01,not a time,500.001,600.002,100.001\n"
	name := "Integrity Monitor [OLS]_20250311_200102_UTC.csv"
	require.NoError(t, os.WriteFile(filepath.Join(exportRoot, name), []byte(content), 0644))

	s.RunOnce(context.Background())

	rows := readCSV(t, filepath.Join(separatedRoot, "Integrity Monitor [OLS]_PT01",
		"Integrity Monitor [OLS]_PT01_2025-03-11T200102Z.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[1][0])
	assert.Equal(t, "not a time", rows[1][1])
}

func TestStemAndStamp(t *testing.T) {
	tests := []struct {
		name  string
		stem  string
		stamp string
	}{
		{"Integrity Monitor [OLS]_20250311_200102_UTC.csv", "Integrity Monitor [OLS]", "2025-03-11T200102Z"},
		{"Monitor_KB04_20250311_200102_UTC.csv", "Monitor_KB04", "2025-03-11T200102Z"},
		{"plain.csv", "plain", "unknown"},
		{"a_b_c.csv", "a_b_c", "unknown"},
	}
	for _, tt := range tests {
		stem, stamp := stemAndStamp(tt.name)
		assert.Equal(t, tt.stem, stem, tt.name)
		assert.Equal(t, tt.stamp, stamp, tt.name)
	}
}
