package audible

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"audiostacker/internal/catalog"
	"audiostacker/internal/logging"
	"audiostacker/internal/metrics"
)

// DefaultCacheTTL is how long a cached page stays fresh.
const DefaultCacheTTL = 24 * time.Hour

const cacheExt = ".json"

// Cache persists fetched result pages on disk, one JSON file per page keyed
// by a fingerprint of the query parameters. A file's modification time is
// its age.
//
// The cache is an optimization only: unreadable or corrupt files are logged
// and reported as misses. A nil *Cache always misses and stores nothing.
type Cache struct {
	dir     string
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
	metrics *metrics.Recorder
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheClock overrides the time source used for TTL checks.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheMetrics records lookups on rec.
func WithCacheMetrics(rec *metrics.Recorder) CacheOption {
	return func(c *Cache) {
		c.metrics = rec
	}
}

// CacheStats summarizes the files in the cache directory.
type CacheStats struct {
	Dir     string    `json:"dir"`
	Entries int       `json:"entries"`
	Expired int       `json:"expired"`
	Bytes   int64     `json:"bytes"`
	Oldest  time.Time `json:"oldest"`
	Newest  time.Time `json:"newest"`
}

// NewCache initialises a cache rooted at dir. A ttl of zero makes every read
// a miss while still storing pages.
func NewCache(dir string, ttl time.Duration, logger *slog.Logger, opts ...CacheOption) (*Cache, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("cache directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	c := &Cache{
		dir:    dir,
		ttl:    ttl,
		logger: logging.NewComponentLogger(logger, "audible-cache"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key fingerprints a search page. The query is compared case-insensitively.
func Key(query string, field catalog.SearchField, page, pageSize int) string {
	raw := fmt.Sprintf("%s:%s:%d:%d", strings.ToLower(strings.TrimSpace(query)), field, page, pageSize)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ProductKey fingerprints a single product lookup.
func ProductKey(asin string) string {
	sum := md5.Sum([]byte("asin:" + strings.TrimSpace(asin)))
	return hex.EncodeToString(sum[:])
}

// Dir exposes the backing directory for inspection.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// TTL reports the freshness window.
func (c *Cache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// Get returns the entries stored under key when a fresh, readable file exists.
func (c *Cache) Get(key string) ([]catalog.Entry, bool) {
	if c == nil || key == "" {
		return nil, false
	}
	path := c.path(key)
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.warn("cache stat failed", key, err)
		}
		c.metrics.CacheLookup("miss")
		return nil, false
	}
	if c.expired(info.ModTime()) {
		c.logger.Debug("cache entry expired", logging.String("key", key), logging.Time("stored_at", info.ModTime()))
		c.metrics.CacheLookup("expired")
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		c.warn("cache read failed", key, err)
		c.metrics.CacheLookup("corrupt")
		return nil, false
	}
	var entries []catalog.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.warn("cache entry corrupt", key, err)
		c.metrics.CacheLookup("corrupt")
		return nil, false
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	c.metrics.CacheLookup("hit")
	return entries, true
}

// Put stores entries under key, replacing any previous value.
func (c *Cache) Put(key string, entries []catalog.Entry) error {
	if c == nil {
		return nil
	}
	if key == "" {
		return errors.New("cache key is empty")
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}
	if err := writeFileAtomic(c.path(key), data, 0o644); err != nil {
		return err
	}
	c.logger.Debug("cache stored", logging.String("key", key), logging.Int("entries", len(entries)))
	return nil
}

// Stats walks the cache directory.
func (c *Cache) Stats() (CacheStats, error) {
	stats := CacheStats{Dir: c.Dir()}
	if c == nil {
		return stats, nil
	}
	err := c.walk(func(path string, info os.FileInfo) error {
		stats.Entries++
		stats.Bytes += info.Size()
		if c.expired(info.ModTime()) {
			stats.Expired++
		}
		mod := info.ModTime()
		if stats.Oldest.IsZero() || mod.Before(stats.Oldest) {
			stats.Oldest = mod
		}
		if mod.After(stats.Newest) {
			stats.Newest = mod
		}
		return nil
	})
	return stats, err
}

// Clear removes every cached page and returns how many were removed.
func (c *Cache) Clear() (int, error) {
	if c == nil {
		return 0, nil
	}
	removed := 0
	err := c.walk(func(path string, _ os.FileInfo) error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove cache entry: %w", err)
		}
		removed++
		return nil
	})
	return removed, err
}

// Prune removes expired pages and returns how many were removed.
func (c *Cache) Prune() (int, error) {
	if c == nil {
		return 0, nil
	}
	removed := 0
	err := c.walk(func(path string, info os.FileInfo) error {
		if !c.expired(info.ModTime()) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove cache entry: %w", err)
		}
		removed++
		return nil
	})
	return removed, err
}

func (c *Cache) walk(fn func(path string, info os.FileInfo) error) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != cacheExt {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat cache entry: %w", err)
		}
		if err := fn(filepath.Join(c.dir, entry.Name()), info); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) expired(storedAt time.Time) bool {
	if c.ttl <= 0 {
		return true
	}
	return c.now().Sub(storedAt) > c.ttl
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+cacheExt)
}

func (c *Cache) warn(msg, key string, err error) {
	logging.WarnWithContext(c.logger, msg, "cache_io_failed",
		logging.String("key", key),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "delete the cache file or run `audiostacker cache clear`"),
		logging.String(logging.FieldImpact, "page will be fetched from the catalog API"),
	)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
