package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/ical-aggregator/internal/persistence"
)

// Engine translates validated search parameters into a storage query plus an
// in-process refinement stage, and returns one consistent result set.
type Engine struct {
	repo   persistence.EventRepository
	logger *slog.Logger
}

// NewEngine creates an Engine backed by the given repository.
func NewEngine(repo persistence.EventRepository, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{repo: repo, logger: logger}
}

// Search executes the two-stage filter pipeline: the storage-layer predicate
// narrows the candidate set, then regex filters run in-process over the
// candidates. Regex-filtered fields cannot be evaluated by the storage layer,
// so their rows are fetched without that field's clause and matched here;
// this is strictly more expensive than the storage-only modes. Patterns are
// length-capped at parse time and Go's RE2 engine matches in linear time, so
// the stage has bounded cost per row.
func (e *Engine) Search(ctx context.Context, params Params) ([]persistence.Event, error) {
	filter := buildFilter(params)

	events, err := e.repo.ListEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}

	if hasRegexFilter(params) {
		candidates := len(events)
		events = applyRegexStage(events, params)
		e.logger.DebugContext(ctx, "regex refinement applied",
			"candidates", candidates,
			"matched", len(events),
		)
	}

	return events, nil
}

func hasRegexFilter(params Params) bool {
	for _, filter := range []*TextFilter{params.Summary, params.Location, params.Description} {
		if filter != nil && filter.Mode == MatchRegex {
			return true
		}
	}
	return false
}

// Get retrieves a single stored event by identifier.
func (e *Engine) Get(ctx context.Context, id int64) (persistence.Event, error) {
	return e.repo.GetEvent(ctx, id)
}

// Count reports the total number of stored events.
func (e *Engine) Count(ctx context.Context) (int64, error) {
	return e.repo.CountEvents(ctx)
}

// buildFilter renders parameters into the storage-layer predicate. Regex
// fields are left out entirely; they are applied after the fetch.
func buildFilter(params Params) persistence.EventFilter {
	return persistence.EventFilter{
		Start:       params.Start,
		End:         params.End,
		After:       params.After,
		Before:      params.Before,
		Summary:     toTextMatch(params.Summary),
		Location:    toTextMatch(params.Location),
		Description: toTextMatch(params.Description),
		SortByStart: params.Sort,
	}
}

func toTextMatch(filter *TextFilter) *persistence.TextMatch {
	if filter == nil || filter.Mode == MatchRegex {
		return nil
	}
	return &persistence.TextMatch{
		Value:  filter.Value,
		Strict: filter.Mode == MatchStrict,
	}
}

// applyRegexStage filters the candidate set against every compiled regex
// pattern. A nil field value never matches.
func applyRegexStage(events []persistence.Event, params Params) []persistence.Event {
	patterns := []struct {
		filter *TextFilter
		value  func(persistence.Event) *string
	}{
		{params.Summary, func(e persistence.Event) *string { return e.Summary }},
		{params.Location, func(e persistence.Event) *string { return e.Location }},
		{params.Description, func(e persistence.Event) *string { return e.Description }},
	}

	for _, p := range patterns {
		if p.filter == nil || p.filter.Mode != MatchRegex {
			continue
		}
		matched := events[:0]
		for _, event := range events {
			value := p.value(event)
			if value != nil && p.filter.Pattern.MatchString(*value) {
				matched = append(matched, event)
			}
		}
		events = matched
	}

	return events
}
