package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultUserAgent identifies the importer to partner servers.
	DefaultUserAgent = "RentalCalendar/1.0"
	// DefaultFetchTimeout bounds a single feed download.
	DefaultFetchTimeout = 30 * time.Second

	maxFeedBytes = 10 << 20
)

// ErrFeedTooLarge is wrapped by the FetchError for a body over the size limit.
var ErrFeedTooLarge = errors.New("feed too large")

// FeedFetcher retrieves the raw bytes of a partner feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches feeds over HTTP, following redirects.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// NewHTTPFetcher creates a fetcher with the given timeout and User-Agent.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		maxBytes:  maxFeedBytes,
	}
}

// Fetch downloads url. Any failure is returned as a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	// A truncated feed would drop the UIDs in its tail and get their
	// reservations deleted, so an oversized body fails the fetch instead.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("reading body: %w", err)}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w (limit %d bytes)", ErrFeedTooLarge, f.maxBytes)}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Empty: true}
	}
	return body, nil
}
