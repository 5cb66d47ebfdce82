package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfiles(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		activeRow("PT01", 1, "2024-01-01 00:00:00"),
	}, [][]interface{}{
		{"IM", "Integrity Monitor*.csv", "Event Time (Eastern Standard Time)", "Point Name", "Northing", "Easting", "Elevation", "America/Toronto"},
		{"GEN", "*.csv", "Time", "Point", "", "", "Height", ""},
		{"IM", "dup*.csv", "", "", "", "", "", ""}, // duplicate, keep first
		{"BADTZ", "*.csv", "Time", "Point", "", "", "H", "Mars/Olympus"},
	})

	set := LoadProfiles(path, nil)
	assert.Equal(t, []string{"BADTZ", "GEN", "IM"}, set.Names())

	im, ok := set.Get("IM")
	require.True(t, ok)
	assert.Equal(t, "Integrity Monitor*.csv", im.Match)
	assert.Equal(t, "Point Name", im.ColumnPoint)
	assert.Equal(t, "America/Toronto", im.TimeZone)
	require.NotNil(t, im.Location())
	assert.Equal(t, "America/Toronto", im.Location().String())

	gen, ok := set.Get("GEN")
	require.True(t, ok)
	assert.Nil(t, gen.Location(), "no timezone means already-UTC")

	bad, ok := set.Get("BADTZ")
	require.True(t, ok)
	assert.Empty(t, bad.TimeZone, "invalid zone falls back to UTC")

	_, ok = set.Get("MISSING")
	assert.False(t, ok)
}

func TestLoadProfiles_MissingSheet(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		activeRow("PT01", 1, "2024-01-01 00:00:00"),
	}, nil)

	set := LoadProfiles(path, nil)
	assert.Empty(t, set.Names())
}

func TestLoadProfiles_MissingWorkbook(t *testing.T) {
	set := LoadProfiles(filepath.Join(t.TempDir(), "nope.xlsx"), nil)
	assert.Empty(t, set.Names())
}
