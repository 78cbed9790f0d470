// Package caching keeps fetched site metadata on disk for a limited time
// so repeated runs against the same wiki do not query its API again.
package caching

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dtnitsch/mw2dict/internal/common"
)

// Cache is a directory of files named by the hash of their key.
type Cache struct {
	path string
	ttl  time.Duration
}

// NewCache creates a new Cache instance.
// The cache path will be created if it doesn't exist.
func NewCache(path string, ttl time.Duration) (*Cache, error) {
	path = common.ExpandHome(path)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{path: path, ttl: ttl}, nil
}

// SiteinfoKey is the cache key of the siteinfo of site read through apiPath.
func SiteinfoKey(site, apiPath string) string {
	return "siteinfo\x00" + site + "\x00" + apiPath
}

func (c *Cache) file(key string) string {
	return filepath.Join(c.path, common.ContentHash([]byte(key))+".json")
}

// Get returns the cached data for key when present and younger than the TTL.
func (c *Cache) Get(key string) ([]byte, bool) {
	filePath := c.file(key)

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, false
	}
	if c.ttl > 0 && time.Since(info.ModTime()) > c.ttl {
		return nil, false
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores data under key.
func (c *Cache) Set(key string, data []byte) error {
	if err := os.WriteFile(c.file(key), data, 0o644); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	return nil
}
