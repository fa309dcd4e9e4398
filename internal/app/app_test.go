package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperifyio/tablegrab/internal/htmltree"
)

const teaPage = `<!DOCTYPE html>
<html><body>
<table>
<tr><th>Item</th><th>Cost</th></tr>
<tr><td>Green tea</td><td>3.50</td></tr>
</table>
</body></html>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tea", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(teaPage))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><p>nothing</p></body></html>"))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><div"))
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_EndToEnd(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	cfg := Config{
		URLs:          []string{srv.URL + "/tea", srv.URL + "/empty", srv.URL + "/broken", srv.URL + "/down"},
		OutputDir:     out,
		PDFPath:       filepath.Join(dir, "preview.pdf"),
		Timeout:       5 * time.Second,
		MaxConcurrent: 2,
		CacheDir:      filepath.Join(dir, "cache"),
	}
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sum, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Tables != 1 || sum.Failed != 2 {
		t.Fatalf("unexpected summary: tables=%d failed=%d", sum.Tables, sum.Failed)
	}

	wantStatus := []string{StatusOK, StatusNoTables, StatusFailed, StatusFailed}
	for i, r := range sum.Results {
		if r.URL != cfg.URLs[i] || r.Status != wantStatus[i] {
			t.Fatalf("result %d: url=%s status=%s", i, r.URL, r.Status)
		}
	}
	if !errors.Is(sum.Results[2].Err, htmltree.ErrInvalidHTML) {
		t.Fatalf("broken page should fail with ErrInvalidHTML, got %v", sum.Results[2].Err)
	}

	files := sum.Results[0].Files
	if len(files) != 1 {
		t.Fatalf("expected one csv, got %v", files)
	}
	b, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if got, want := string(b), "\"Item\",\"Cost\"\n\"Green tea\",\"3.50\"\n"; got != want {
		t.Fatalf("csv mismatch:\n got %q\nwant %q", got, want)
	}

	if st, err := os.Stat(cfg.PDFPath); err != nil || st.Size() == 0 {
		t.Fatalf("pdf not written: %v", err)
	}

	mb, err := os.ReadFile(sum.Manifest)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m struct {
		Meta    manifestMeta    `json:"meta"`
		Sources []manifestEntry `json:"sources"`
	}
	if err := json.Unmarshal(mb, &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if m.Meta.TableCount != 1 || len(m.Sources) != 4 || !m.Meta.HTTPCache {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if m.Sources[0].SHA256 != computeSHA256Hex([]byte(teaPage)) {
		t.Fatalf("body digest mismatch")
	}
	if m.Sources[3].Error == "" {
		t.Fatalf("failed source should carry its error")
	}
}

func TestRun_NoTables(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	a, err := New(context.Background(), Config{URLs: []string{srv.URL + "/empty"}, OutputDir: dir})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = a.Run(context.Background())
	if !errors.Is(err, ErrNoTables) {
		t.Fatalf("expected ErrNoTables, got %v", err)
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	srv := newSite(t)
	out := filepath.Join(t.TempDir(), "out")
	a, err := New(context.Background(), Config{URLs: []string{srv.URL + "/tea"}, OutputDir: out, DryRun: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sum, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Tables != 1 || len(sum.Results[0].Files) != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if OutputExists(out) {
		t.Fatalf("dry run created output")
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	if _, err := New(context.Background(), Config{OutputDir: "x"}); err == nil {
		t.Fatalf("expected error without URLs")
	}
}

func TestExtractTables_ManyDocumentsConcurrently(t *testing.T) {
	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			found, err := extractTables([]byte(teaPage))
			if err == nil && len(found) != 1 {
				err = errors.New("wrong table count")
			}
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent extract: %v", err)
		}
	}
}
