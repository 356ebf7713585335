package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"golang.org/x/net/html/charset"

	"ppbooks/noveltybot/logger"
	apperrors "ppbooks/noveltybot/pkg/errors"
)

// DefaultTimeout bounds every page fetch
const DefaultTimeout = 10 * time.Second

// Browser header set sent with every page request
const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
	acceptLanguage = "uk-UA,uk;q=0.9,en-US;q=0.8,en;q=0.7"
)

// PageFetcher is the capability the crawlers need from the transport
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (io.Reader, error)
}

// Fetcher issues GET requests with a fixed browser-like header set
type Fetcher struct {
	client *http.Client
	log    *logger.Logger
}

// NewFetcher creates a fetcher whose requests are bounded by timeout
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		log: logger.ForFetcher(),
	}
}

// Fetch sends an HTTP GET request with browser headers,
// converts the response body to UTF-8 (if needed), and returns it as an io.Reader.
func (f *Fetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewNetwork("fetcher", "failed to create request for "+url, err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Warn().Err(err).Str("url", url).Msg("Request failed")
		return nil, apperrors.NewNetwork("fetcher", "failed to fetch "+url, err)
	}
	defer resp.Body.Close()

	log := f.log.WithFields(logger.Fields{"url": url, "status": resp.StatusCode})

	// Check for rate limiting
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		retryAfter := resp.Header.Get("Retry-After")
		log.Warn().Str("retry_after", retryAfter).Msg("Rate limited")
		return nil, apperrors.NewRateLimit(url, retryAfter)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().Msg("Unexpected status code")
		return nil, apperrors.NewNetwork("fetcher", fmt.Sprintf("fetch %s unexpected status code: %d", url, resp.StatusCode), nil)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read response body")
		return nil, apperrors.NewNetwork("fetcher", "failed to read response body of "+url, err)
	}

	// Determine the encoding from Content-Type header and body content
	encoding, name, _ := charset.DetermineEncoding(bodyBytes, resp.Header.Get("Content-Type"))
	log.Debug().Int("bytes", len(bodyBytes)).Str("charset", name).Msg("Page fetched")
	if name == "utf-8" || name == "UTF-8" {
		return bytes.NewReader(bodyBytes), nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, apperrors.NewParsing("fetcher", "failed to read converted UTF-8 body", err)
	}

	return &buf, nil
}
