package app

import "time"

// Config holds runtime configuration for the application.
type Config struct {
	URLs []string

	// Output
	OutputDir    string
	PDFPath      string
	ManifestPath string

	// Fetching
	UserAgent     string
	Timeout       time.Duration
	MaxBodyBytes  int64
	MaxConcurrent int

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	BypassCache      bool

	// Behavior
	DryRun  bool
	Verbose bool
}

// Defaults used by the CLI flags. ApplyFileConfig treats a field still holding
// its default as unset.
const (
	DefaultOutputDir     = "tables"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxBodyBytes  = 2 << 20
	DefaultMaxConcurrent = 4
)

// DefaultUserAgent identifies the tool and its build version.
func DefaultUserAgent() string {
	return "tablegrab/" + BuildVersion + " (+https://github.com/hyperifyio/tablegrab)"
}
