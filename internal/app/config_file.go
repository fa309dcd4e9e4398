package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	URLs     []string `yaml:"urls" json:"urls"`
	Out      string   `yaml:"out" json:"out"`
	PDF      string   `yaml:"pdf" json:"pdf"`
	Manifest string   `yaml:"manifest" json:"manifest"`

	Fetch struct {
		UserAgent     string        `yaml:"userAgent" json:"userAgent"`
		Timeout       time.Duration `yaml:"timeout" json:"timeout"`
		MaxBodyBytes  int64         `yaml:"maxBodyBytes" json:"maxBodyBytes"`
		MaxConcurrent int           `yaml:"maxConcurrent" json:"maxConcurrent"`
	} `yaml:"fetch" json:"fetch"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
		Bypass      bool          `yaml:"bypass" json:"bypass"`
	} `yaml:"cache" json:"cache"`

	DryRun  bool `yaml:"dryRun" json:"dryRun"`
	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc into cfg for any fields that are
// unset or still at their flag default.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if len(cfg.URLs) == 0 && len(fc.URLs) > 0 {
		cfg.URLs = append([]string{}, fc.URLs...)
	}
	if (cfg.OutputDir == "" || cfg.OutputDir == DefaultOutputDir) && fc.Out != "" {
		cfg.OutputDir = fc.Out
	}
	if cfg.PDFPath == "" && fc.PDF != "" {
		cfg.PDFPath = fc.PDF
	}
	if cfg.ManifestPath == "" && fc.Manifest != "" {
		cfg.ManifestPath = fc.Manifest
	}

	if (cfg.UserAgent == "" || cfg.UserAgent == DefaultUserAgent()) && fc.Fetch.UserAgent != "" {
		cfg.UserAgent = fc.Fetch.UserAgent
	}
	if (cfg.Timeout == 0 || cfg.Timeout == DefaultTimeout) && fc.Fetch.Timeout > 0 {
		cfg.Timeout = fc.Fetch.Timeout
	}
	if (cfg.MaxBodyBytes == 0 || cfg.MaxBodyBytes == DefaultMaxBodyBytes) && fc.Fetch.MaxBodyBytes > 0 {
		cfg.MaxBodyBytes = fc.Fetch.MaxBodyBytes
	}
	if (cfg.MaxConcurrent == 0 || cfg.MaxConcurrent == DefaultMaxConcurrent) && fc.Fetch.MaxConcurrent > 0 {
		cfg.MaxConcurrent = fc.Fetch.MaxConcurrent
	}

	if cfg.CacheDir == "" && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	cfg.CacheClear = cfg.CacheClear || fc.Cache.Clear
	cfg.CacheStrictPerms = cfg.CacheStrictPerms || fc.Cache.StrictPerms
	cfg.BypassCache = cfg.BypassCache || fc.Cache.Bypass
	cfg.DryRun = cfg.DryRun || fc.DryRun
	cfg.Verbose = cfg.Verbose || fc.Verbose
}

// ValidateConfig performs minimal validation of required settings.
func ValidateConfig(cfg Config) error {
	if len(cfg.URLs) == 0 {
		return errors.New("config: at least one URL is required")
	}
	for _, u := range cfg.URLs {
		if strings.TrimSpace(u) == "" {
			return errors.New("config: empty URL")
		}
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return errors.New("config: output directory is required")
	}
	if cfg.MaxBodyBytes < 0 || cfg.MaxConcurrent < 0 || cfg.Timeout < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}
