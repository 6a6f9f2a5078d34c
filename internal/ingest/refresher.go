package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/example/ical-aggregator/internal/ics"
	"github.com/example/ical-aggregator/internal/persistence"
)

// Refresher drives one complete fetch-parse-replace cycle across all feeds.
type Refresher struct {
	fetcher   *ics.Fetcher
	repo      persistence.EventRepository
	feedsPath string
	logger    *slog.Logger
}

// NewRefresher creates a Refresher reading feed URLs from the file at
// feedsPath.
func NewRefresher(fetcher *ics.Fetcher, repo persistence.EventRepository, feedsPath string, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		fetcher:   fetcher,
		repo:      repo,
		feedsPath: feedsPath,
		logger:    logger,
	}
}

// ReadFeeds loads the feed source list: one URL per line, blank lines
// ignored. The file is consumed at the start of every refresh, so edits take
// effect on the next cycle without a restart.
func ReadFeeds(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds file: %w", err)
	}

	urls := make([]string, 0)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}
	return urls, nil
}

// Refresh performs one refresh cycle: fetch every feed concurrently, parse
// the successful bodies and replace the stored generation wholesale.
//
// Per-feed fetch failures and per-entry parse failures are logged and
// contained: they contribute zero events without aborting the batch. Only a
// storage failure fails the cycle, in which case the previous generation
// stays intact and the next scheduled run retries.
func (r *Refresher) Refresh(ctx context.Context) error {
	urls, err := ReadFeeds(r.feedsPath)
	if err != nil {
		return err
	}

	r.logger.Info("refresh started", "feeds", len(urls))

	fetchStart := time.Now()
	results := r.fetcher.FetchAll(ctx, urls)
	fetchDuration := time.Since(fetchStart)

	events := make([]persistence.Event, 0)
	fetched := 0
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		fetched++
		parsed, perr := ics.ParseFeed(result.Body, r.logger)
		if perr != nil {
			r.logger.Error("feed parse failed", "url", result.URL, "error", perr)
			continue
		}
		events = append(events, parsed...)
	}

	insertStart := time.Now()
	if err := r.repo.ReplaceAll(ctx, events); err != nil {
		return fmt.Errorf("refresh failed to replace events: %w", err)
	}

	r.logger.Info("refresh completed",
		"feeds", len(urls),
		"feeds_fetched", fetched,
		"events", len(events),
		"fetch_duration", fetchDuration,
		"insert_duration", time.Since(insertStart),
	)
	return nil
}
