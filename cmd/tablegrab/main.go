package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/tablegrab/internal/app"
)

// Exit codes.
const (
	exitOK       = 0
	exitConfig   = 1
	exitNoTables = 2
	exitFailed   = 3
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, showVersion, err := parseConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(exitOK)
	}
	if showVersion {
		fmt.Println(app.VersionString())
		os.Exit(exitOK)
	}
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(exitConfig)
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(exitCode(run(ctx, cfg)))
}

// parseConfig builds the configuration with precedence flags > env > config
// file > defaults.
func parseConfig(args []string, stderr io.Writer) (app.Config, bool, error) {
	fs := flag.NewFlagSet("tablegrab", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: tablegrab [flags] URL...\n\nFlags:\n")
		fs.PrintDefaults()
	}

	var (
		cfg         app.Config
		configPath  string
		envFiles    string
		showVersion bool
	)
	fs.StringVar(&cfg.OutputDir, "out", app.DefaultOutputDir, "Directory for CSV files")
	fs.StringVar(&cfg.PDFPath, "pdf", "", "Optional path for a PDF preview of all tables")
	fs.StringVar(&cfg.ManifestPath, "manifest", "", "Manifest path (default <out>/manifest.json)")
	fs.StringVar(&cfg.UserAgent, "ua", app.DefaultUserAgent(), "User-Agent for page requests")
	fs.DurationVar(&cfg.Timeout, "timeout", app.DefaultTimeout, "Per-request timeout")
	fs.Int64Var(&cfg.MaxBodyBytes, "max.body", app.DefaultMaxBodyBytes, "Maximum decoded page size in bytes")
	fs.IntVar(&cfg.MaxConcurrent, "max.concurrent", app.DefaultMaxConcurrent, "Documents processed in parallel")
	fs.StringVar(&cfg.CacheDir, "cache.dir", "", "Page cache directory (empty disables caching)")
	fs.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", 0, "Purge cached pages older than this before the run; 0 disables")
	fs.BoolVar(&cfg.CacheClear, "cache.clear", false, "Clear the cache directory before the run")
	fs.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.BoolVar(&cfg.BypassCache, "cache.bypass", false, "Skip conditional requests but still refresh the cache")
	fs.StringVar(&configPath, "config", os.Getenv("TABLEGRAB_CONFIG"), "Path to a YAML or JSON config file")
	fs.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files to load")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Fetch and parse but write nothing")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return cfg, false, err
	}
	if showVersion {
		return cfg, true, nil
	}

	flagCfg := cfg
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if err := app.LoadEnvFiles(strings.Split(envFiles, ",")...); err != nil {
		return cfg, false, err
	}
	if configPath == "" {
		configPath = os.Getenv("TABLEGRAB_CONFIG")
	}
	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return cfg, false, fmt.Errorf("config file: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)
	reapplyFlags(&cfg, flagCfg, set)

	if urls := fs.Args(); len(urls) > 0 {
		cfg.URLs = urls
	}
	return cfg, false, app.ValidateConfig(cfg)
}

// reapplyFlags restores every explicitly passed flag on top of file and env
// values.
func reapplyFlags(cfg *app.Config, f app.Config, set map[string]bool) {
	apply := map[string]func(){
		"out":               func() { cfg.OutputDir = f.OutputDir },
		"pdf":               func() { cfg.PDFPath = f.PDFPath },
		"manifest":          func() { cfg.ManifestPath = f.ManifestPath },
		"ua":                func() { cfg.UserAgent = f.UserAgent },
		"timeout":           func() { cfg.Timeout = f.Timeout },
		"max.body":          func() { cfg.MaxBodyBytes = f.MaxBodyBytes },
		"max.concurrent":    func() { cfg.MaxConcurrent = f.MaxConcurrent },
		"cache.dir":         func() { cfg.CacheDir = f.CacheDir },
		"cache.maxAge":      func() { cfg.CacheMaxAge = f.CacheMaxAge },
		"cache.clear":       func() { cfg.CacheClear = f.CacheClear },
		"cache.strictPerms": func() { cfg.CacheStrictPerms = f.CacheStrictPerms },
		"cache.bypass":      func() { cfg.BypassCache = f.BypassCache },
		"dry-run":           func() { cfg.DryRun = f.DryRun },
		"v":                 func() { cfg.Verbose = f.Verbose },
	}
	for name := range set {
		if fn, ok := apply[name]; ok {
			fn()
		}
	}
}

func run(ctx context.Context, cfg app.Config) error {
	if !cfg.DryRun && app.OutputExists(cfg.OutputDir) {
		log.Warn().Str("path", cfg.OutputDir).Msg("output directory is not empty; files may be overwritten")
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	sum, err := a.Run(ctx)
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		log.Warn().Int("failed", sum.Failed).Msg("some URLs could not be processed")
	}
	return nil
}

// exitCode maps run errors onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, app.ErrNoTables):
		log.Error().Err(err).Msg("run failed")
		return exitNoTables
	default:
		log.Error().Err(err).Msg("run failed")
		return exitFailed
	}
}
