package pipeline

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/yashar0011/T4D-project/internal/errors"
	"github.com/yashar0011/T4D-project/internal/settings"
)

// CacheName is the on-disk cache file, stored next to the settings workbook
const CacheName = ".amts_cache.json"

// CacheEntry records what the cache knows about one slice: the content
// hash of its configuration row and the latest processed timestamp.
type CacheEntry struct {
	Hash     string     `json:"hash"`
	LatestTS *time.Time `json:"latest_ts"`
}

// Changed pairs a slice key with the settings row that triggered it
type Changed struct {
	Key SliceKey
	Row settings.Row
}

// HashRow returns the hex SHA-1 of the row's hashed field subset. The
// watermark and free-text columns are not part of it, so progress and
// cosmetic edits never read as configuration changes.
func HashRow(row settings.Row) string {
	sum := sha1.Sum([]byte(row.ContentKey()))
	return hex.EncodeToString(sum[:])
}

// Cache is the persistent map of slice-key to {content hash, watermark}.
// It exclusively owns its on-disk mirror; the processor never touches it
// directly. Not safe for concurrent use — the watcher serializes access.
type Cache struct {
	path    string
	logger  *slog.Logger
	entries map[SliceKey]*CacheEntry
}

// NewCache loads the cache stored next to settingsPath. A missing or
// corrupt cache file degrades to an empty cache (full reprocessing),
// never a fatal error.
func NewCache(settingsPath string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		path:    filepath.Join(filepath.Dir(settingsPath), CacheName),
		logger:  logger.With(slog.String("component", "slice_cache")),
		entries: make(map[SliceKey]*CacheEntry),
	}
	c.load()
	return c
}

func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("cannot read cache file, starting fresh",
				slog.String("path", c.path), slog.String("error", err.Error()))
		}
		return
	}
	var entries map[SliceKey]*CacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("corrupt cache file, starting fresh",
			slog.String("path", c.path), slog.String("error", err.Error()))
		return
	}
	c.entries = entries
	c.logger.Info("cache loaded",
		slog.String("path", c.path), slog.Int("entries", len(entries)))
}

// Diff compares the current configuration against the cached hashes and
// returns every new or changed row. As a side effect the in-memory state
// is replaced wholesale: watermarks of surviving keys are carried over,
// keys absent from rows are dropped silently.
func (c *Cache) Diff(rows []settings.Row, keyFn func(settings.Row) SliceKey) []Changed {
	if keyFn == nil {
		keyFn = KeyFor
	}
	current := make(map[SliceKey]*CacheEntry, len(rows))
	var changed []Changed
	for _, row := range rows {
		k := keyFn(row)
		h := HashRow(row)

		entry := &CacheEntry{Hash: h}
		if prev, ok := c.entries[k]; ok {
			entry.LatestTS = prev.LatestTS
		}
		current[k] = entry

		if prev, ok := c.entries[k]; !ok || prev.Hash != h {
			changed = append(changed, Changed{Key: k, Row: row})
		}
	}
	c.entries = current
	return changed
}

// Watermark returns the latest processed timestamp for key, if any
func (c *Cache) Watermark(k SliceKey) (time.Time, bool) {
	entry, ok := c.entries[k]
	if !ok || entry.LatestTS == nil {
		return time.Time{}, false
	}
	return *entry.LatestTS, true
}

// UpdateWatermark advances the watermark for key. Unknown keys are
// ignored; an earlier timestamp never rewinds an existing watermark.
func (c *Cache) UpdateWatermark(k SliceKey, ts time.Time) {
	entry, ok := c.entries[k]
	if !ok {
		return
	}
	if entry.LatestTS != nil && ts.Before(*entry.LatestTS) {
		c.logger.Debug("ignoring watermark rewind",
			slog.String("key", string(k)),
			slog.Time("have", *entry.LatestTS),
			slog.Time("got", ts))
		return
	}
	ts = ts.UTC()
	entry.LatestTS = &ts
}

// Clear wipes the in-memory map; the next Diff treats every row as
// changed. Used for explicit full rebuilds only.
func (c *Cache) Clear() {
	c.entries = make(map[SliceKey]*CacheEntry)
}

// Len returns the number of tracked slices
func (c *Cache) Len() int {
	return len(c.entries)
}

// Save persists the map to disk. A write failure is returned as a
// *CachePersistenceError for the caller to log; the in-memory state stays
// authoritative either way.
func (c *Cache) Save() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return apperrors.NewCachePersistenceError(c.path, err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return apperrors.NewCachePersistenceError(c.path, err)
	}
	return nil
}
