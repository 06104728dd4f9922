package cache

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// fileMagic starts every entry file. It is followed by the expiry as Unix
// nanoseconds (0 = never), a newline and the raw value.
const fileMagic = "tscache1 "

// FileCache stores entries as files under a directory, sharded by the first
// byte of the key hash. Values are written as-is so cached SVGs stay
// readable on disk. Concurrent writers to the same key are last-writer-wins.
type FileCache struct {
	dir string
	now func() time.Time
}

// NewFileCache creates a file cache in dir, creating it if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir, now: time.Now}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Clear removes every entry.
func (c *FileCache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value for key. Expired and unreadable entries are removed
// and reported as a miss.
func (c *FileCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	expires, data, ok := decodeEntry(raw)
	if !ok || (!expires.IsZero() && c.now().After(expires)) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return data, true, nil
}

// Set writes the value through a temporary file so readers never see a
// partial entry.
func (c *FileCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	var expires int64
	if ttl > 0 {
		expires = c.now().Add(ttl).UnixNano()
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s%d\n", fileMagic, expires)
	buf.Write(data)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Delete removes key. Missing keys are not an error.
func (c *FileCache) Delete(_ context.Context, key string) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (c *FileCache) Close() error { return nil }

func (c *FileCache) path(key string) string {
	h := Hash([]byte(key))
	return filepath.Join(c.dir, h[:2], h[2:])
}

func decodeEntry(raw []byte) (time.Time, []byte, bool) {
	rest, ok := bytes.CutPrefix(raw, []byte(fileMagic))
	if !ok {
		return time.Time{}, nil, false
	}
	header, data, ok := bytes.Cut(rest, []byte("\n"))
	if !ok {
		return time.Time{}, nil, false
	}
	ns, err := strconv.ParseInt(string(header), 10, 64)
	if err != nil {
		return time.Time{}, nil, false
	}
	if ns == 0 {
		return time.Time{}, data, true
	}
	return time.Unix(0, ns), data, true
}

var _ Cache = (*FileCache)(nil)
