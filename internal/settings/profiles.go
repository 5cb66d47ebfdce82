package settings

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ProfilesSheet is the worksheet holding raw-file column mappings
const ProfilesSheet = "FileProfiles"

// Profile tells the raw loader how to interpret one file naming/column
// convention: which files to pick up, how its columns map onto the
// canonical sample fields, and which timezone its timestamps are in.
type Profile struct {
	Name            string
	Match           string // glob pattern relative to the import folder
	ColumnTime      string
	ColumnPoint     string
	ColumnNorthing  string
	ColumnEasting   string
	ColumnElevation string
	TimeZone        string // validated Olson name, empty means UTC
}

// Location resolves the profile timezone. Empty or invalid names resolve
// to nil, which the time normalizer treats as "already UTC".
func (p Profile) Location() *time.Location {
	if p.TimeZone == "" {
		return nil
	}
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return nil
	}
	return loc
}

// ProfileSet is an immutable lookup of profiles keyed by name
type ProfileSet struct {
	byName map[string]Profile
}

// Get returns the named profile
func (s *ProfileSet) Get(name string) (Profile, bool) {
	if s == nil {
		return Profile{}, false
	}
	p, ok := s.byName[name]
	return p, ok
}

// Names returns the profile names in sorted order
func (s *ProfileSet) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadProfiles reads the FileProfiles sheet from the workbook. It never
// fails: a missing sheet, unreadable workbook or malformed row degrades to
// an empty (or partial) set with a logged warning, so one bad profile row
// cannot take the pipeline down.
func LoadProfiles(path string, logger *slog.Logger) *ProfileSet {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "file_profiles"))
	set := &ProfileSet{byName: make(map[string]Profile)}

	f, err := excelize.OpenFile(path)
	if err != nil {
		logger.Warn("cannot open workbook for profiles",
			slog.String("path", path), slog.String("error", err.Error()))
		return set
	}
	defer f.Close()

	cells, err := f.GetRows(ProfilesSheet)
	if err != nil || len(cells) == 0 {
		logger.Warn("FileProfiles sheet missing or empty",
			slog.String("path", path))
		return set
	}

	header := headerIndex(cells[0])
	if _, ok := header["Profile"]; !ok {
		logger.Warn("FileProfiles sheet has no Profile column")
		return set
	}
	if _, ok := header["Match"]; !ok {
		logger.Warn("FileProfiles sheet has no Match column")
		return set
	}

	for _, record := range cells[1:] {
		name := strings.TrimSpace(cell(record, header, "Profile"))
		match := strings.TrimSpace(cell(record, header, "Match"))
		if name == "" || match == "" {
			continue
		}
		if _, dup := set.byName[name]; dup {
			logger.Warn("duplicate FileProfile row, keeping first",
				slog.String("profile", name))
			continue
		}

		p := Profile{
			Name:            name,
			Match:           match,
			ColumnTime:      strings.TrimSpace(cell(record, header, "ColumnTime")),
			ColumnPoint:     strings.TrimSpace(cell(record, header, "ColumnPoint")),
			ColumnNorthing:  strings.TrimSpace(cell(record, header, "ColumnNorthing")),
			ColumnEasting:   strings.TrimSpace(cell(record, header, "ColumnEasting")),
			ColumnElevation: strings.TrimSpace(cell(record, header, "ColumnElevation")),
		}
		if tz := strings.TrimSpace(cell(record, header, "TimeZone")); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				logger.Warn("invalid TimeZone in FileProfiles, defaulting to UTC",
					slog.String("profile", name), slog.String("timezone", tz))
			} else {
				p.TimeZone = tz
			}
		}
		set.byName[name] = p
	}
	return set
}
