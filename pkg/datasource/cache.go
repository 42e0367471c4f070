package datasource

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cache stores the last fully successful fetch per resource as compressed
// JSON. Writes go to a temp file in the same directory and are renamed into
// place, so concurrent readers never observe a partial download.
type Cache struct {
	Dir    string
	MaxAge time.Duration
}

// NewCache returns a cache rooted at dir; entries older than maxAge are
// treated as absent on read.
func NewCache(dir string, maxAge time.Duration) *Cache {
	return &Cache{Dir: dir, MaxAge: maxAge}
}

func (c *Cache) path(resource string) string {
	name := strings.NewReplacer("/", "_", ":", "_").Replace(resource)
	return filepath.Join(c.Dir, name+".json.gz")
}

// Write atomically persists records for resource.
func (c *Cache) Write(resource string, records []json.RawMessage) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(c.Dir, ".cache-*")
	if err != nil {
		return fmt.Errorf("cache temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	if err := json.NewEncoder(zw).Encode(records); err != nil {
		tmp.Close()
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("cache gzip close: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("cache sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache close: %w", err)
	}
	return os.Rename(tmp.Name(), c.path(resource))
}

// Read returns the cached records and the entry age. It fails when the entry
// is absent or older than MaxAge.
func (c *Cache) Read(resource string) ([]json.RawMessage, time.Duration, error) {
	path := c.path(resource)
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("cache miss for %s: %w", resource, err)
	}
	age := time.Since(info.ModTime())
	if c.MaxAge > 0 && age > c.MaxAge {
		return nil, age, fmt.Errorf("cache entry for %s is %s old, max %s", resource, age.Round(time.Minute), c.MaxAge)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, age, err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, age, fmt.Errorf("cache gzip: %w", err)
	}
	defer zr.Close()
	var records []json.RawMessage
	if err := json.NewDecoder(zr).Decode(&records); err != nil {
		return nil, age, fmt.Errorf("cache decode: %w", err)
	}
	return records, age, nil
}

// Invalidate removes the entry for resource, if any.
func (c *Cache) Invalidate(resource string) error {
	err := os.Remove(c.path(resource))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
