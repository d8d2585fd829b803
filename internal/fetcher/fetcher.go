// Package fetcher retrieves directory-listing and archive-root page bodies
// over HTTP with bounded retries and exponential backoff. It generalizes the
// teacher's Downloader.fetchOne retry loop (internal/downloader/downloader.go)
// to the simpler fetch-body-as-string semantics of the archive crawler.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/bgpdata/archivist/internal/bgperrs"
	"github.com/bgpdata/archivist/internal/metrics"
)

const userAgent = "bgp-archivist/1"

// Config tunes retry behavior. Zero values fall back to the defaults below.
type Config struct {
	MaxRetries    int
	BackoffBase   time.Duration
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	return c
}

// Fetcher issues retried GET requests against archive servers.
type Fetcher struct {
	client *http.Client
	cfg    Config
}

// New builds a Fetcher tuned the way the teacher tunes its download client:
// a dedicated transport with bounded idle connections rather than the
// package-level http.DefaultClient.
func New(cfg Config) *Fetcher {
	cfg = cfg.withDefaults()
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &Fetcher{
		client: &http.Client{Transport: tr, Timeout: cfg.RequestTimeout},
		cfg:    cfg,
	}
}

// FetchBody retrieves the body of url as a string, retrying transient
// failures with backoff_ms * 2^attempt, matching fetch_body in the original
// crawler. HTTP status codes are not interpreted: any 2xx-5xx response body
// is returned to the caller as-is, since directory listings from these
// servers are served with varying status conventions.
func (f *Fetcher) FetchBody(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		start := time.Now()
		body, err := f.doOnce(ctx, url)
		metrics.FetchDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.FetchRequests.WithLabelValues("ok").Inc()
			metrics.FetchBytes.Add(float64(len(body)))
			return body, nil
		}
		lastErr = err
		metrics.FetchRequests.WithLabelValues("error").Inc()

		if ctx.Err() != nil {
			return "", bgperrs.Wrap(bgperrs.KindNetwork, ctx.Err(), "fetch %s", url)
		}
		if attempt < f.cfg.MaxRetries-1 {
			backoff := f.cfg.BackoffBase * time.Duration(1<<uint(attempt))
			metrics.FetchRetries.Inc()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", bgperrs.Wrap(bgperrs.KindNetwork, ctx.Err(), "fetch %s", url)
			}
		}
	}
	return "", bgperrs.Wrap(bgperrs.KindNetwork, lastErr, "fetch %s after %d attempts", url, f.cfg.MaxRetries)
}

func (f *Fetcher) doOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body of %s: %w", url, err)
	}
	return string(b), nil
}
