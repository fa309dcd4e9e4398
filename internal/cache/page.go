// Package cache keeps fetched pages on disk so repeated runs can revalidate
// with conditional GETs instead of downloading bodies again.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	metaSuffix = ".meta.json"
	bodySuffix = ".body"
)

// Entry is the metadata stored next to a cached body.
type Entry struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	Size         int       `json:"size"`
	SavedAt      time.Time `json:"saved_at"`
}

// PageCache stores each page as <sha256(url)>.body plus <sha256(url)>.meta.json
// in Dir. There is no eviction; see PurgeOlderThan.
type PageCache struct {
	Dir string
	// StrictPerms restricts the directory to 0700 and files to 0600.
	StrictPerms bool
}

func (c *PageCache) perms() (os.FileMode, os.FileMode) {
	if c.StrictPerms {
		return 0o700, 0o600
	}
	return 0o755, 0o644
}

func (c *PageCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	dirMode, _ := c.perms()
	if err := os.MkdirAll(c.Dir, dirMode); err != nil {
		return err
	}
	if c.StrictPerms {
		return os.Chmod(c.Dir, dirMode)
	}
	return nil
}

func keyFor(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}

func (c *PageCache) path(url, suffix string) string {
	return filepath.Join(c.Dir, keyFor(url)+suffix)
}

// Meta returns the stored metadata for url.
func (c *PageCache) Meta(_ context.Context, url string) (*Entry, error) {
	if err := c.ensureDir(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(c.path(url, metaSuffix))
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return &e, nil
}

// Body returns the stored body for url.
func (c *PageCache) Body(_ context.Context, url string) ([]byte, error) {
	if err := c.ensureDir(); err != nil {
		return nil, err
	}
	return os.ReadFile(c.path(url, bodySuffix))
}

// Save writes body and then its metadata. The metadata is renamed into place
// last so a reader never sees metadata for a partially written body.
func (c *PageCache) Save(_ context.Context, url, contentType, etag, lastModified string, body []byte) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	_, fileMode := c.perms()
	if err := os.WriteFile(c.path(url, bodySuffix), body, fileMode); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	meta, err := json.Marshal(Entry{
		URL:          url,
		ContentType:  contentType,
		ETag:         etag,
		LastModified: lastModified,
		Size:         len(body),
		SavedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	final := c.path(url, metaSuffix)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, meta, fileMode); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return os.Rename(tmp, final)
}
