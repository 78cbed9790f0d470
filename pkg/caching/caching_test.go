package caching

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := NewCache(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewCache() failed: %v", err)
	}

	key := SiteinfoKey("https://en.wikipedia.org", "/w/api.php")
	if _, ok := c.Get(key); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	if err := c.Set(key, []byte(`{"general":{}}`)); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	data, ok := c.Get(key)
	if !ok || string(data) != `{"general":{}}` {
		t.Fatalf("Get() = %q, %v", data, ok)
	}
	if _, ok := c.Get(SiteinfoKey("https://de.wikipedia.org", "/w/api.php")); ok {
		t.Error("hit for a different site")
	}
}

func TestCacheExpiry(t *testing.T) {
	c, err := NewCache(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatalf("NewCache() failed: %v", err)
	}
	key := SiteinfoKey("https://en.wikipedia.org", "/w/api.php")
	if err := c.Set(key, []byte("{}")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	old := time.Now().Add(-2 * time.Minute)
	if err := os.Chtimes(c.file(key), old, old); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(key); ok {
		t.Error("expired entry returned")
	}
}
