package fetch

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"

	"github.com/hyperifyio/tablegrab/internal/cache"
)

// DefaultMaxBodyBytes caps a page body when Client.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 2 << 20

// ErrBodyTooLarge is returned when a body exceeds the client's limit.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// Client fetches complete HTML documents. Each URL gets exactly one attempt.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// PerRequestTimeout bounds each request. Zero means no extra bound.
	PerRequestTimeout time.Duration
	// MaxBodyBytes caps the decoded body. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// Optional on-disk cache for conditional revalidation.
	Cache *cache.PageCache
	// If true, skip conditional headers but still save the fresh response.
	BypassCache bool

	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int

	limiter     chan struct{}
	limiterOnce sync.Once
}

// Page is a fetched document, decoded to UTF-8.
type Page struct {
	URL         string
	ContentType string
	Body        []byte
	// FromCache is true when the server answered 304 and Body came from disk.
	FromCache bool
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirectFunc()}
}

func (c *Client) maxBody() int64 {
	if c.MaxBodyBytes > 0 {
		return c.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}

// Get fetches rawURL and returns its fully buffered body.
func (c *Client) Get(ctx context.Context, rawURL string) (Page, error) {
	var etag, lastMod string
	if c.Cache != nil && !c.BypassCache {
		if meta, err := c.Cache.Meta(ctx, rawURL); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}

	c.acquire()
	defer c.release()

	resp, err := c.do(ctx, rawURL, etag, lastMod)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode == http.StatusNotModified && c.Cache != nil {
		body, err := c.Cache.Body(ctx, rawURL)
		if err != nil {
			return Page{}, fmt.Errorf("load cached body: %w", err)
		}
		if meta, err := c.Cache.Meta(ctx, rawURL); err == nil && contentType == "" {
			contentType = meta.ContentType
		}
		log.Debug().Str("url", rawURL).Int("bytes", len(body)).Msg("not modified; using cached page")
		return Page{URL: rawURL, ContentType: contentType, Body: body, FromCache: true}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	var r io.Reader = resp.Body
	if !isAllowedHTMLContentType(contentType) {
		if !isSniffable(contentType) {
			return Page{}, fmt.Errorf("unsupported content type: %s", contentType)
		}
		br := bufio.NewReaderSize(resp.Body, sniffLen)
		head, _ := br.Peek(sniffLen)
		detected := mimetype.Detect(head)
		if !detected.Is("text/html") {
			return Page{}, fmt.Errorf("unsupported content type: %q sniffed as %s", contentType, detected.String())
		}
		log.Debug().Str("url", rawURL).Str("sniffed", detected.String()).Msg("content type sniffed")
		contentType = detected.String()
		r = br
	}

	body, err := c.readBody(r, contentType)
	if err != nil {
		return Page{}, err
	}
	if c.Cache != nil {
		if err := c.Cache.Save(ctx, rawURL, contentType, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), body); err != nil {
			log.Warn().Err(err).Str("url", rawURL).Msg("cache save failed")
		}
	}
	return Page{URL: rawURL, ContentType: contentType, Body: body}, nil
}

func (c *Client) do(ctx context.Context, rawURL, etag, lastMod string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	// Reject non-HTTP(S) schemes early
	if !isHTTPScheme(req.URL) {
		return nil, fmt.Errorf("unsupported URL scheme: %q", req.URL.String())
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		req = req.WithContext(ctx)
		resp, err := c.getHTTPClient().Do(req)
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return c.getHTTPClient().Do(req)
}

// readBody decodes the body to UTF-8 and enforces the size limit on the
// decoded bytes. A leading UTF-8 byte order mark is dropped.
func (c *Client) readBody(r io.Reader, contentType string) ([]byte, error) {
	limit := c.maxBody()
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	b, err := io.ReadAll(io.LimitReader(decoded, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}
	return bytes.TrimPrefix(b, []byte("\xef\xbb\xbf")), nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		// Only allow http/https during redirects
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// sniffLen is how much of an unlabeled body is inspected.
const sniffLen = 3072

// isSniffable reports whether a body with this content type may still turn
// out to be HTML.
func isSniffable(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return ct == "" || strings.HasPrefix(ct, "application/octet-stream") || strings.HasPrefix(ct, "text/plain")
}

func isAllowedHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	// allow text/html variants and application/xhtml+xml
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}
