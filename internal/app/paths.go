package app

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases s and collapses every run of other characters into one
// hyphen.
func slugify(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// baseNameForURL returns a stable file name stem for rawURL: the slug of host
// and path followed by a short hash of the full URL, so that two URLs with the
// same slug never share files.
func baseNameForURL(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	slug := ""
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		slug = slugify(u.Host + u.Path)
	} else {
		slug = slugify(raw)
	}
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	if slug == "" {
		slug = "page"
	}
	h := sha256.Sum256([]byte(raw))
	return slug + "-" + hex.EncodeToString(h[:])[:8]
}
