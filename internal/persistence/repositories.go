package persistence

import "context"

// TextMatch narrows a free-text column. When Strict is set the column must
// equal Value exactly; otherwise Value must be contained in the column
// (case-sensitive substring). Regular-expression matching is evaluated above
// this layer, so it never appears in a TextMatch.
type TextMatch struct {
	Value  string
	Strict bool
}

// EventFilter narrows event queries. Nil members are absent clauses: they are
// omitted from the predicate entirely rather than matching everything.
type EventFilter struct {
	// Start and End require exact equality against the stored timestamps.
	Start *int64
	End   *int64
	// After requires start >= After; Before requires end <= Before.
	After  *int64
	Before *int64

	Summary     *TextMatch
	Location    *TextMatch
	Description *TextMatch

	// SortByStart orders results ascending by start timestamp. Without it
	// the result order is whatever the storage engine returns.
	SortByStart bool
}

// EventRepository stores the current generation of calendar events.
type EventRepository interface {
	// EnsureSchema creates the events table when it does not exist yet.
	EnsureSchema(ctx context.Context) error
	// ReplaceAll atomically replaces the entire table contents with the
	// given batch. Either the full new generation becomes visible or, on
	// failure, the previous generation remains intact.
	ReplaceAll(ctx context.Context, events []Event) error
	GetEvent(ctx context.Context, id int64) (Event, error)
	CountEvents(ctx context.Context) (int64, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}
