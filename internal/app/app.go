package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/tablegrab/internal/bytebuf"
	"github.com/hyperifyio/tablegrab/internal/cache"
	"github.com/hyperifyio/tablegrab/internal/fetch"
	"github.com/hyperifyio/tablegrab/internal/htmltree"
	"github.com/hyperifyio/tablegrab/internal/tables"
)

// ErrNoTables is returned by Run when no input URL produced a table. The CLI
// maps it to a dedicated exit code.
var ErrNoTables = errors.New("no tables extracted")

type App struct {
	cfg     Config
	fetcher *fetch.Client
}

// Result is the outcome for one URL.
type Result struct {
	URL       string
	Status    string
	Err       error
	Tables    []tables.Table
	Files     []string
	SHA256    string
	Bytes     int
	FromCache bool
}

// Summary aggregates a run. Results keep the input order.
type Summary struct {
	Results  []Result
	Tables   int
	Failed   int
	PDF      string
	Manifest string
}

func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}

	fc := &fetch.Client{
		HTTPClient:        newHTTPClient(cfg.MaxConcurrent),
		UserAgent:         cfg.UserAgent,
		PerRequestTimeout: cfg.Timeout,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		BypassCache:       cfg.BypassCache,
	}
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.Clear(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			n, err := cache.PurgeOlderThan(cfg.CacheDir, cfg.CacheMaxAge)
			if err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache purge failed")
			} else if n > 0 {
				log.Debug().Int("removed", n).Msg("purged stale cache entries")
			}
		}
		fc.Cache = &cache.PageCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}
	return &App{cfg: cfg, fetcher: fc}, nil
}

// Run fetches every URL, extracts its tables and writes them as CSV. Failures
// of single URLs are recorded in the summary; only output errors abort the run.
func (a *App) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	results := make([]Result, len(a.cfg.URLs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxConcurrent)
	for i, u := range a.cfg.URLs {
		i, u := i, strings.TrimSpace(u)
		g.Go(func() error {
			r, err := a.processURL(gctx, u)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{Results: results}, err
	}

	sum := Summary{Results: results}
	var all []tables.Table
	for _, r := range results {
		if r.Status == StatusFailed {
			sum.Failed++
		}
		sum.Tables += len(r.Tables)
		all = append(all, r.Tables...)
	}

	if !a.cfg.DryRun {
		if a.cfg.PDFPath != "" && len(all) > 0 {
			if err := tables.WritePDF(a.cfg.PDFPath, "tablegrab", all); err != nil {
				return sum, fmt.Errorf("write pdf: %w", err)
			}
			sum.PDF = a.cfg.PDFPath
			log.Info().Str("path", a.cfg.PDFPath).Int("tables", len(all)).Msg("wrote pdf")
		}
		sum.Manifest = a.cfg.ManifestPath
		if sum.Manifest == "" {
			sum.Manifest = deriveManifestPath(a.cfg.OutputDir)
		}
		if err := writeManifest(sum.Manifest, a.manifestMeta(sum), manifestEntries(results)); err != nil {
			return sum, err
		}
	}

	log.Info().
		Int("urls", len(results)).
		Int("tables", sum.Tables).
		Int("failed", sum.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("run complete")

	if sum.Tables == 0 {
		return sum, ErrNoTables
	}
	return sum, nil
}

// processURL handles one document end to end. The returned error is non-nil
// only for output failures.
func (a *App) processURL(ctx context.Context, rawURL string) (Result, error) {
	r := Result{URL: rawURL}
	page, err := a.fetcher.Get(ctx, rawURL)
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("fetch failed")
		r.Status, r.Err = StatusFailed, err
		return r, nil
	}
	r.SHA256 = computeSHA256Hex(page.Body)
	r.Bytes = len(page.Body)
	r.FromCache = page.FromCache

	found, err := extractTables(page.Body)
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Int("bytes", r.Bytes).Msg("parse failed")
		r.Status, r.Err = StatusFailed, err
		return r, nil
	}
	r.Tables = found
	if len(found) == 0 {
		r.Status = StatusNoTables
		log.Info().Str("url", rawURL).Msg("no tables")
		return r, nil
	}
	r.Status = StatusOK

	if a.cfg.DryRun {
		log.Info().Str("url", rawURL).Int("tables", len(found)).Msg("dry run; not writing")
		return r, nil
	}
	files, err := tables.WriteFiles(a.cfg.OutputDir, baseNameForURL(rawURL), found)
	r.Files = files
	if err != nil {
		return r, fmt.Errorf("%s: %w", rawURL, err)
	}
	log.Info().Str("url", rawURL).Int("tables", len(found)).Strs("files", files).Msg("wrote tables")
	return r, nil
}

// extractTables parses body with a parser owned by this call.
func extractTables(body []byte) ([]tables.Table, error) {
	buf := bytebuf.NewFromBytes(body)
	defer buf.Release()

	p := htmltree.NewParser()
	defer p.Close()
	if err := p.Parse(buf); err != nil {
		var pe *htmltree.ParseError
		if errors.As(err, &pe) && pe.Cause != nil {
			log.Debug().AnErr("cause", pe.Cause).Msg("parse error detail")
		}
		return nil, err
	}
	return tables.Collect(p.Tree(), p.Root()), nil
}

func (a *App) manifestMeta(sum Summary) manifestMeta {
	return manifestMeta{
		Version:     BuildVersion,
		OutputDir:   a.cfg.OutputDir,
		PDF:         sum.PDF,
		URLCount:    len(sum.Results),
		TableCount:  sum.Tables,
		HTTPCache:   a.cfg.CacheDir != "",
		GeneratedAt: time.Now().UTC(),
	}
}

func manifestEntries(results []Result) []manifestEntry {
	out := make([]manifestEntry, 0, len(results))
	for _, r := range results {
		e := manifestEntry{
			URL:       r.URL,
			Status:    r.Status,
			SHA256:    r.SHA256,
			Bytes:     r.Bytes,
			FromCache: r.FromCache,
			Tables:    len(r.Tables),
			Files:     r.Files,
		}
		if r.Err != nil {
			e.Error = r.Err.Error()
		}
		out = append(out, e)
	}
	return out
}

// OutputExists reports whether dir already holds files. The CLI uses it to
// warn before mixing runs.
func OutputExists(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
