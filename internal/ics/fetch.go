package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// FetchResult contains the outcome of fetching a single feed.
type FetchResult struct {
	URL  string
	Body []byte
	Err  error
}

// Fetcher retrieves remote iCalendar feeds.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher applying the given per-request timeout.
func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// FetchAll fetches all given feed URLs concurrently and returns one result
// per URL. A failed feed carries its error in FetchResult.Err and an empty
// body; it never blocks or invalidates the other feeds.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []FetchResult {
	results := make([]FetchResult, len(urls))

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			body, err := f.FetchOne(ctx, url)
			results[i] = FetchResult{URL: url, Body: body, Err: err}
			if err != nil {
				f.logger.Error("feed fetch failed", "url", url, "error", err)
			}
		}(i, url)
	}
	wg.Wait()

	return results
}

// FetchOne fetches a single feed, bounded by the fetcher's timeout so one
// unreachable feed cannot stall a whole refresh.
func (f *Fetcher) FetchOne(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("feed URL is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return body, nil
}
