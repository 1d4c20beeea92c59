// Package scraper fetches the title and final URL of a web page.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

const (
	// DefaultTimeout bounds one fetch attempt.
	DefaultTimeout = 10 * time.Second

	// maxBodyBytes caps how much of a page is parsed for its title.
	maxBodyBytes = 2 << 20
)

// Crawler user agents skip most cookie-consent interstitials. Some sites
// reject them, hence the browser fallback.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	"Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
}

// Scraper resolves a URL to its page title and final location.
type Scraper interface {
	WebpageInfo(ctx context.Context, rawURL string) (domain.WebpageInfo, error)
}

// HTTPScraper implements Scraper over net/http and goquery.
type HTTPScraper struct {
	client     *http.Client
	userAgents []string
	logger     logger.Logger
}

// Option configures an HTTPScraper.
type Option func(*HTTPScraper)

// WithClient replaces the HTTP client (tests, proxies).
func WithClient(c *http.Client) Option {
	return func(s *HTTPScraper) { s.client = c }
}

// WithUserAgents replaces the ordered list of user agents tried.
func WithUserAgents(agents ...string) Option {
	return func(s *HTTPScraper) {
		if len(agents) > 0 {
			s.userAgents = agents
		}
	}
}

// New builds a scraper with the given per-attempt timeout (DefaultTimeout if <= 0).
func New(timeout time.Duration, log logger.Logger, opts ...Option) *HTTPScraper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &HTTPScraper{
		client:     &http.Client{Timeout: timeout},
		userAgents: DefaultUserAgents,
		logger:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WebpageInfo fetches rawURL with each user agent in turn until one succeeds.
// Every failure is a *domain.RetrievalError.
func (s *HTTPScraper) WebpageInfo(ctx context.Context, rawURL string) (domain.WebpageInfo, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return domain.WebpageInfo{}, &domain.RetrievalError{URL: rawURL, Err: err}
	}

	var lastErr error
	for i, ua := range s.userAgents {
		info, err := s.fetch(ctx, target, ua)
		if err == nil {
			return info, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		s.logger.Debug("scrape attempt failed",
			logger.String("url", target),
			logger.Int("attempt", i+1),
			logger.Error(err))
	}
	return domain.WebpageInfo{}, &domain.RetrievalError{URL: rawURL, Err: lastErr}
}

func (s *HTTPScraper) fetch(ctx context.Context, target, userAgent string) (domain.WebpageInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return domain.WebpageInfo{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.WebpageInfo{}, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.WebpageInfo{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.WebpageInfo{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	final := target
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}

	return domain.WebpageInfo{Title: extractTitle(doc), URL: final}, nil
}

// extractTitle prefers <title>, then og:title. A page without either has an empty title.
func extractTitle(doc *goquery.Document) string {
	if title := collapseSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}
	if title := collapseSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		return collapseSpace(og)
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("URL has no host")
	}
	return u.String(), nil
}
