package collector

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"log/slog"
	"seoAuditGO/internal/config"
	"seoAuditGO/internal/models"
)

// PageReader is the capability through which a page signal is obtained.
// Production readers fetch and parse the page; tests inject synthetic
// documents.
type PageReader interface {
	Collect(ctx context.Context, forceRefresh bool) (*models.PageSignal, error)
}

// CachingReader wraps a PageReader with a single-slot cache. A repeated
// Collect within the TTL returns the previous signal without re-scanning,
// unless forceRefresh is set. This absorbs rapid repeated invocations such
// as an accidental double trigger from the host UI.
type CachingReader struct {
	inner PageReader
	ttl   time.Duration

	mu     sync.Mutex
	last   *models.PageSignal
	lastAt time.Time
}

// NewCachingReader wraps inner with a cache of the given TTL
func NewCachingReader(inner PageReader, ttl time.Duration) *CachingReader {
	return &CachingReader{inner: inner, ttl: ttl}
}

// Collect returns the cached signal when fresh, otherwise delegates
func (r *CachingReader) Collect(ctx context.Context, forceRefresh bool) (*models.PageSignal, error) {
	r.mu.Lock()
	if !forceRefresh && r.last != nil && time.Since(r.lastAt) < r.ttl {
		cached := r.last
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	signal, err := r.inner.Collect(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.last = signal
	r.lastAt = time.Now()
	r.mu.Unlock()

	return signal, nil
}

// FetchReader is a PageReader bound to one URL. It fetches an HTML
// snapshot over HTTP and runs the Collector against it.
type FetchReader struct {
	client    *http.Client
	collector *Collector
	userAgent string
	url       string
	logger    *slog.Logger
}

// NewFetchReader creates a FetchReader for pageURL
func NewFetchReader(cfg config.CollectorConfig, pageURL string, logger *slog.Logger) *FetchReader {
	return &FetchReader{
		client: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		collector: New(logger),
		userAgent: cfg.UserAgent,
		url:       pageURL,
		logger:    logger,
	}
}

// Collect fetches the page and extracts its signal. Fetch and parse
// failures surface as errors; field-level extraction failures do not.
func (r *FetchReader) Collect(ctx context.Context, _ bool) (*models.PageSignal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	r.logger.Info("fetching page", "url", r.url)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return r.collector.Collect(doc, r.url), nil
}
