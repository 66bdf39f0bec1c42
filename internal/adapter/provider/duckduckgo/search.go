// Package duckduckgo implements web search by scraping the DuckDuckGo lite
// HTML page.
package duckduckgo

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/heartmarshall/dutchstory-backend/internal/domain"
	"github.com/heartmarshall/dutchstory-backend/internal/provider"
)

const (
	defaultEndpoint   = "https://lite.duckduckgo.com/lite/"
	defaultMaxResults = 5
	userAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBackoff        = 30 * time.Second
)

var (
	linkPattern    = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	linkPatternAlt = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	snippetPattern = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([^<]+(?:<[^>]+>[^<]*</[^>]+>)*[^<]*)</td>`)
	anyLinkPattern = regexp.MustCompile(`<a[^>]+href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	tagPattern     = regexp.MustCompile(`<[^>]+>`)
)

// Searcher queries DuckDuckGo. Requests from one Searcher are spaced by at
// least MinInterval.
type Searcher struct {
	endpoint    string
	httpClient  *http.Client
	maxResults  int
	minInterval time.Duration
	log         *slog.Logger

	mu   sync.Mutex
	last time.Time
}

// New creates a Searcher against the public lite endpoint.
func New(timeout time.Duration, maxResults int, logger *slog.Logger) *Searcher {
	return NewWithURL(defaultEndpoint, timeout, maxResults, logger)
}

// NewWithURL creates a Searcher with a custom endpoint (for testing).
func NewWithURL(endpoint string, timeout time.Duration, maxResults int, logger *slog.Logger) *Searcher {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Searcher{
		endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: timeout},
		maxResults:  maxResults,
		minInterval: time.Second,
		log:         logger.With("adapter", "duckduckgo"),
	}
}

// Search returns up to maxResults results for query.
func (s *Searcher) Search(ctx context.Context, query string) ([]provider.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("duckduckgo: query is empty")
	}

	if err := s.throttle(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.post(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: %w: unexpected status %d", domain.ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: read body: %w", err)
	}

	results := parseResults(string(body), s.maxResults)

	s.log.DebugContext(ctx, "duckduckgo search",
		slog.String("query", query),
		slog.Int("results", len(results)),
		slog.Duration("latency", time.Since(start)),
	)

	return results, nil
}

// throttle blocks until minInterval has passed since the previous request.
func (s *Searcher) throttle(ctx context.Context) error {
	s.mu.Lock()
	wait := time.Until(s.last.Add(s.minInterval))
	if wait <= 0 {
		s.last = time.Now()
		s.mu.Unlock()
		return nil
	}
	s.last = s.last.Add(s.minInterval)
	s.mu.Unlock()

	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post sends the form request, backing off on 429 until ctx is done.
func (s *Searcher) post(ctx context.Context, query string) (*http.Response, error) {
	form := url.Values{}
	form.Set("q", query)
	encoded := form.Encode()

	delay := time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		resp.Body.Close()

		s.log.WarnContext(ctx, "duckduckgo rate limited", slog.Duration("backoff", delay))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < maxBackoff {
			delay *= 2
		}
	}
}

func parseResults(page string, limit int) []provider.SearchResult {
	matches := linkPattern.FindAllStringSubmatch(page, -1)
	if len(matches) == 0 {
		matches = linkPatternAlt.FindAllStringSubmatch(page, -1)
	}
	snippets := snippetPattern.FindAllStringSubmatch(page, -1)

	var results []provider.SearchResult
	for i, m := range matches {
		link := strings.TrimSpace(m[1])
		title := cleanHTML(m[2])
		if link == "" || title == "" {
			continue
		}

		var snippet string
		if i < len(snippets) {
			snippet = cleanHTML(snippets[i][1])
		}

		results = append(results, provider.SearchResult{Title: title, URL: link, Snippet: snippet})
		if len(results) >= limit {
			break
		}
	}

	if len(results) == 0 {
		return fallbackResults(page, limit)
	}
	return results
}

// fallbackResults collects external links when the result markup changed.
func fallbackResults(page string, limit int) []provider.SearchResult {
	var results []provider.SearchResult
	seen := make(map[string]bool)

	for _, m := range anyLinkPattern.FindAllStringSubmatch(page, -1) {
		link := strings.TrimSpace(m[1])
		title := cleanHTML(m[2])

		if strings.Contains(link, "duckduckgo.com") ||
			strings.HasPrefix(link, "/") ||
			strings.HasPrefix(link, "#") ||
			strings.HasPrefix(link, "javascript:") {
			continue
		}
		if len(title) < 5 || seen[link] {
			continue
		}
		seen[link] = true

		results = append(results, provider.SearchResult{Title: title, URL: link})
		if len(results) >= limit {
			break
		}
	}
	return results
}

func cleanHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(s)
}
