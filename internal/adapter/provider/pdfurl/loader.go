// Package pdfurl downloads PDF documents over HTTP and extracts their text
// page by page.
package pdfurl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/heartmarshall/dutchstory-backend/internal/domain"
	"github.com/heartmarshall/dutchstory-backend/internal/provider"
)

const (
	defaultTimeout  = 2 * time.Minute
	maxDocumentSize = 64 << 20
	retryDelay      = 500 * time.Millisecond
)

// Loader fetches PDF documents.
type Loader struct {
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a Loader. A zero timeout selects the default.
func New(timeout time.Duration, logger *slog.Logger) *Loader {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Loader{
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.With("adapter", "pdfurl"),
	}
}

// Load downloads the document at url and returns its non-empty pages.
func (l *Loader) Load(ctx context.Context, url string) ([]provider.DocumentPage, error) {
	start := time.Now()

	data, err := l.download(ctx, url)
	if err != nil {
		return nil, err
	}

	pages, err := extractPages(data)
	if err != nil {
		return nil, fmt.Errorf("pdfurl: parse %s: %w", url, err)
	}

	l.log.InfoContext(ctx, "pdf loaded",
		slog.String("url", url),
		slog.Int("bytes", len(data)),
		slog.Int("pages", len(pages)),
		slog.Duration("duration", time.Since(start)),
	)

	return pages, nil
}

func (l *Loader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("pdfurl: create request: %w", err)
	}

	resp, err := l.doWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pdfurl: %w: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pdfurl: %w: unexpected status %d for %s", domain.ErrUpstream, resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("pdfurl: read body: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("pdfurl: document %s exceeds %d bytes", url, maxDocumentSize)
	}

	return data, nil
}

// doWithRetry executes the request with a single retry on 5xx or network errors.
func (l *Loader) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := l.httpClient.Do(req)

	shouldRetry := err != nil || (resp != nil && resp.StatusCode >= 500)
	if !shouldRetry || ctx.Err() != nil {
		return resp, err
	}

	reason := "network error"
	if err == nil {
		reason = fmt.Sprintf("status %d", resp.StatusCode)
		resp.Body.Close()
	}
	l.log.WarnContext(ctx, "pdf download retry", slog.String("url", req.URL.String()), slog.String("reason", reason))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryDelay):
	}

	return l.httpClient.Do(req)
}

// extractPages reads the text of every page. The pdf reader panics on some
// malformed streams, so panics are converted into errors.
func extractPages(data []byte) (pages []provider.DocumentPage, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, provider.DocumentPage{Number: i, Text: text})
	}
	return pages, nil
}
