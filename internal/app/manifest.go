package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// URL outcome recorded in the manifest.
const (
	StatusOK       = "ok"
	StatusNoTables = "no_tables"
	StatusFailed   = "failed"
)

// manifestEntry is the record for one input URL.
type manifestEntry struct {
	URL       string   `json:"url"`
	Status    string   `json:"status"`
	Error     string   `json:"error,omitempty"`
	SHA256    string   `json:"sha256,omitempty"`
	Bytes     int      `json:"bytes"`
	FromCache bool     `json:"from_cache"`
	Tables    int      `json:"tables"`
	Files     []string `json:"files,omitempty"`
}

type manifestMeta struct {
	Version     string    `json:"version"`
	OutputDir   string    `json:"output_dir"`
	PDF         string    `json:"pdf,omitempty"`
	URLCount    int       `json:"url_count"`
	TableCount  int       `json:"table_count"`
	HTTPCache   bool      `json:"http_cache"`
	GeneratedAt time.Time `json:"generated_at"`
}

func computeSHA256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func marshalManifestJSON(meta manifestMeta, entries []manifestEntry) ([]byte, error) {
	payload := struct {
		Meta    manifestMeta    `json:"meta"`
		Sources []manifestEntry `json:"sources"`
	}{Meta: meta, Sources: entries}
	return json.MarshalIndent(payload, "", "  ")
}

// writeManifest writes the sidecar via a temporary file so readers never see
// a partial document.
func writeManifest(path string, meta manifestMeta, entries []manifestEntry) error {
	b, err := marshalManifestJSON(meta, entries)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return os.Rename(tmp, path)
}

// deriveManifestPath returns the default manifest location inside the output
// directory.
func deriveManifestPath(outputDir string) string {
	return filepath.Join(outputDir, "manifest.json")
}
