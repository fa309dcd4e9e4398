package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperifyio/tablegrab/internal/app"
)

func TestParseConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tablegrab.yaml")
	content := "out: file-out\nfetch:\n  userAgent: file-ua\n  timeout: 9s\n  maxConcurrent: 7\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TABLEGRAB_UA", "env-ua")
	t.Setenv("TABLEGRAB_MAX_CONCURRENT", "5")
	t.Setenv("TABLEGRAB_OUT", "")
	t.Setenv("TABLEGRAB_TIMEOUT", "")

	args := []string{"-config", cfgPath, "-env", "", "-max.concurrent", "2", "https://example.com/a"}
	cfg, _, err := parseConfig(args, io.Discard)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.OutputDir != "file-out" {
		t.Fatalf("file should beat defaults, got %q", cfg.OutputDir)
	}
	if cfg.UserAgent != "env-ua" {
		t.Fatalf("env should beat file, got %q", cfg.UserAgent)
	}
	if cfg.MaxConcurrent != 2 {
		t.Fatalf("flag should beat env, got %d", cfg.MaxConcurrent)
	}
	if cfg.Timeout != 9*time.Second {
		t.Fatalf("timeout from file, got %s", cfg.Timeout)
	}
	if len(cfg.URLs) != 1 || cfg.URLs[0] != "https://example.com/a" {
		t.Fatalf("urls: %v", cfg.URLs)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	t.Setenv("TABLEGRAB_URLS", "")
	if _, _, err := parseConfig([]string{"-env", ""}, io.Discard); err == nil {
		t.Fatalf("expected error without URLs")
	}
	if _, _, err := parseConfig([]string{"-nope"}, io.Discard); err == nil {
		t.Fatalf("expected unknown flag error")
	}
	_, version, err := parseConfig([]string{"-version"}, io.Discard)
	if err != nil || !version {
		t.Fatalf("version flag: %v %v", version, err)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/t" {
			_, _ = w.Write([]byte("<table><tr><td>a</td></tr></table>"))
			return
		}
		_, _ = w.Write([]byte("<p>none</p>"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := app.Config{URLs: []string{srv.URL + "/t"}, OutputDir: filepath.Join(dir, "out")}
	if code := exitCode(run(context.Background(), cfg)); code != exitOK {
		t.Fatalf("expected exit %d, got %d", exitOK, code)
	}

	cfg = app.Config{URLs: []string{srv.URL + "/none"}, OutputDir: filepath.Join(dir, "out2")}
	err := run(context.Background(), cfg)
	if !errors.Is(err, app.ErrNoTables) {
		t.Fatalf("expected ErrNoTables, got %v", err)
	}
	if code := exitCode(err); code != exitNoTables {
		t.Fatalf("expected exit %d, got %d", exitNoTables, code)
	}
	if code := exitCode(errors.New("disk full")); code != exitFailed {
		t.Fatalf("expected exit %d, got %d", exitFailed, code)
	}
}
