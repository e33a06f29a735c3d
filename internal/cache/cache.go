// Package cache is the disk-backed request cache. Keys are derived from the
// full request parameter set; values are JSON documents or binary artifacts
// (CSV, GeoTIFF). A small in-memory LRU tier fronts the JSON entries.
//
// The cache is strictly best-effort: every I/O failure degrades to a miss on
// read and a no-op on write, and is logged at warn level.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type Cache struct {
	dir string
	ttl time.Duration
	mem *lru.Cache[string, memEntry]
	log *slog.Logger
	now func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// memEntry carries the write time alongside the bytes so the memory tier
// expires on the same clock as the disk files.
type memEntry struct {
	b  []byte
	at time.Time
}

type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	MemEntries int   `json:"mem_entries"`
	DiskFiles  int   `json:"disk_files"`
}

func New(dir string, ttl time.Duration, memEntries int, log *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if memEntries <= 0 {
		memEntries = 256
	}
	mem, err := lru.New[string, memEntry](memEntries)
	if err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: ttl, mem: mem, log: log, now: time.Now}, nil
}

// Key derives the deterministic cache key for a parameter set. Marshaling a
// map sorts its keys, so logically equal parameter sets share a key.
func Key(params map[string]any) string {
	b, err := json.Marshal(params)
	if err != nil {
		// only non-serializable params get here; make them uncacheable
		b = []byte(time.Now().String())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// GetJSON loads a cached document into out. Returns false on miss, expiry
// or any read/decode failure. Expired entries are unlinked on access; the
// periodic sweep only covers keys nobody asks for again.
func (c *Cache) GetJSON(key string, out any) bool {
	if e, ok := c.mem.Get(key); ok {
		switch {
		case c.expired(e.at):
			c.mem.Remove(key)
			_ = os.Remove(c.path(key, "json"))
		case json.Unmarshal(e.b, out) == nil:
			c.hits.Add(1)
			return true
		default:
			c.mem.Remove(key)
		}
	}

	path := c.path(key, "json")
	at, ok := c.freshOrRemove(path)
	if !ok {
		c.misses.Add(1)
		return false
	}
	b, err := os.ReadFile(path)
	if err != nil {
		c.misses.Add(1)
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		c.log.Warn("cache entry corrupt, discarding", "key", key, "err", err)
		_ = os.Remove(path)
		c.misses.Add(1)
		return false
	}
	c.mem.Add(key, memEntry{b: b, at: at})
	c.hits.Add(1)
	return true
}

// SetJSON stores a document under key. Write failures are logged and
// swallowed.
func (c *Cache) SetJSON(key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", "key", key, "err", err)
		return
	}
	path := c.path(key, "json")
	if err := writeAtomic(path, b); err != nil {
		c.log.Warn("cache write failed", "key", key, "err", err)
		return
	}
	c.touch(path)
	c.mem.Add(key, memEntry{b: b, at: c.now()})
}

// GetFile returns the path of a cached binary artifact, or "" on miss.
func (c *Cache) GetFile(key, ext string) string {
	path := c.path(key, ext)
	if _, ok := c.freshOrRemove(path); !ok {
		c.misses.Add(1)
		return ""
	}
	c.hits.Add(1)
	return path
}

// SetFile copies src into the cache under key and returns the cached path.
func (c *Cache) SetFile(key, ext, src string) string {
	dst := c.path(key, ext)
	if err := copyFile(src, dst); err != nil {
		c.log.Warn("cache file write failed", "key", key, "err", err)
		return ""
	}
	c.touch(dst)
	return dst
}

// Sweep removes expired entries that were never read again. Called
// periodically from the janitor.
func (c *Cache) Sweep() int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.Warn("cache sweep failed", "err", err)
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if c.expired(fi.ModTime()) {
			if os.Remove(filepath.Join(c.dir, e.Name())) == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		c.log.Info("cache sweep", "removed", removed)
	}
	return removed
}

func (c *Cache) Stats() Stats {
	files := 0
	if entries, err := os.ReadDir(c.dir); err == nil {
		files = len(entries)
	}
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		MemEntries: c.mem.Len(),
		DiskFiles:  files,
	}
}

func (c *Cache) expired(at time.Time) bool {
	return c.ttl > 0 && c.now().Sub(at) > c.ttl
}

// freshOrRemove stats path and unlinks it when past the TTL, returning the
// write time of a live entry.
func (c *Cache) freshOrRemove(path string) (time.Time, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	if c.expired(fi.ModTime()) {
		_ = os.Remove(path)
		return time.Time{}, false
	}
	return fi.ModTime(), true
}

// touch stamps the artifact with the cache clock so TTL math follows the
// injected time source.
func (c *Cache) touch(path string) {
	t := c.now()
	_ = os.Chtimes(path, t, t)
}

func (c *Cache) path(key, ext string) string {
	return filepath.Join(c.dir, key+"."+ext)
}

func writeAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst + ".tmp")
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(dst+".tmp", dst)
}
