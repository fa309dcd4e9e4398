package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.Getenv("TABLEGRAB_OUT")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = os.Getenv("TABLEGRAB_UA")
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = os.Getenv("CACHE_DIR")
	}
	if len(cfg.URLs) == 0 {
		cfg.URLs = splitList(os.Getenv("TABLEGRAB_URLS"))
	}
	if cfg.Timeout == 0 {
		setDuration(&cfg.Timeout, "TABLEGRAB_TIMEOUT")
	}
	if cfg.CacheMaxAge == 0 {
		setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")
	}
	if cfg.MaxBodyBytes == 0 {
		setInt64(&cfg.MaxBodyBytes, "TABLEGRAB_MAX_BODY")
	}
	if cfg.MaxConcurrent == 0 {
		var n int64
		if setInt64(&n, "TABLEGRAB_MAX_CONCURRENT") {
			cfg.MaxConcurrent = int(n)
		}
	}

	// Booleans only switch on here
	for _, b := range boolEnv(cfg) {
		if !*b.dst && truthy(os.Getenv(b.key)) {
			*b.dst = true
		}
	}
}

// ApplyEnvOverrides forcefully overrides cfg fields with environment variables
// when the corresponding env vars are set. This lets env take precedence over
// a config file while flags remain highest precedence.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if v := os.Getenv("TABLEGRAB_OUT"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("TABLEGRAB_UA"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := splitList(os.Getenv("TABLEGRAB_URLS")); len(v) > 0 {
		cfg.URLs = v
	}
	setDuration(&cfg.Timeout, "TABLEGRAB_TIMEOUT")
	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")
	setInt64(&cfg.MaxBodyBytes, "TABLEGRAB_MAX_BODY")
	var n int64
	if setInt64(&n, "TABLEGRAB_MAX_CONCURRENT") {
		cfg.MaxConcurrent = int(n)
	}

	for _, b := range boolEnv(cfg) {
		s := strings.ToLower(strings.TrimSpace(os.Getenv(b.key)))
		switch s {
		case "1", "true", "yes", "on":
			*b.dst = true
		case "0", "false", "no", "off":
			*b.dst = false
		}
	}
}

type boolBinding struct {
	dst *bool
	key string
}

func boolEnv(cfg *Config) []boolBinding {
	return []boolBinding{
		{&cfg.DryRun, "DRY_RUN"},
		{&cfg.Verbose, "VERBOSE"},
		{&cfg.CacheClear, "CACHE_CLEAR"},
		{&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS"},
		{&cfg.BypassCache, "CACHE_BYPASS"},
	}
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func setDuration(dst *time.Duration, key string) {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			*dst = d
		}
	}
}

func setInt64(dst *int64, key string) bool {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return false
	}
	*dst = n
	return true
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			list = append(list, v)
		}
	}
	return list
}
