package insight

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Cache stores generated narratives on disk keyed by dataset hash.
type Cache struct {
	dir    string
	maxAge time.Duration
}

// NewCache creates a narrative cache in dir. Entries older than maxAge are
// ignored; zero keeps them forever.
func NewCache(dir string, maxAge time.Duration) *Cache {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("could not create insight cache directory", "component", "insight", "dir", dir, "error", err)
	}
	return &Cache{dir: dir, maxAge: maxAge}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, fmt.Sprintf("narrative_%s.txt", key))
}

// Get returns the cached narrative for key if present and fresh.
func (c *Cache) Get(key string) (string, bool) {
	path := c.path(key)
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if c.maxAge > 0 && time.Since(info.ModTime()) > c.maxAge {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (c *Cache) Set(key, text string) error {
	return os.WriteFile(c.path(key), []byte(text), 0644)
}
