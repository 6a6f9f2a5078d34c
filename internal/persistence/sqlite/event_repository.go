package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/ical-aggregator/internal/persistence"
)

// EventRepository implements persistence.EventRepository using SQLite.
type EventRepository struct {
	pool *ConnectionPool
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool}
}

const createEventsTable = `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_at INTEGER,
		end_at INTEGER,
		summary TEXT,
		location TEXT,
		description TEXT,
		raw TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_start_at ON events(start_at);
	CREATE INDEX IF NOT EXISTS idx_events_end_at ON events(end_at);
`

// EnsureSchema creates the events table when it does not exist yet, so that
// query endpoints work (against an empty table) before the first refresh has
// completed.
func (r *EventRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.db.ExecContext(ctx, createEventsTable); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}
	return nil
}

// ReplaceAll drops and recreates the events table, then bulk-inserts the
// given batch, all inside one transaction. On failure the transaction rolls
// back and the previous generation stays fully intact and queryable.
func (r *EventRepository) ReplaceAll(ctx context.Context, events []persistence.Event) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS events`); err != nil {
			return fmt.Errorf("failed to drop events table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, createEventsTable); err != nil {
			return fmt.Errorf("failed to recreate events table: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO events (start_at, end_at, summary, location, description, raw)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, event := range events {
			_, err := stmt.ExecContext(ctx,
				nullInt64(event.Start),
				nullInt64(event.End),
				nullString(event.Summary),
				nullString(event.Location),
				nullString(event.Description),
				event.Raw,
			)
			if err != nil {
				return fmt.Errorf("failed to insert event: %w", err)
			}
		}

		return nil
	})
}

// GetEvent retrieves a single event by identifier.
func (r *EventRepository) GetEvent(ctx context.Context, id int64) (persistence.Event, error) {
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT id, start_at, end_at, summary, location, description, raw
		FROM events WHERE id = ?
	`, id)

	event, err := scanEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Event{}, persistence.ErrNotFound
		}
		return persistence.Event{}, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return event, nil
}

// CountEvents returns the number of stored events.
func (r *EventRepository) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// clause is one typed predicate fragment of a dynamically built WHERE.
// The full clause list is assembled first and only then rendered to SQL,
// keeping construction separate from execution.
type clause struct {
	expr string
	arg  any
}

// ListEvents returns events matching the filter. Absent filter members
// contribute no clause at all.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	clauses := buildClauses(filter)

	query := `SELECT id, start_at, end_at, summary, location, description, raw FROM events`
	args := make([]any, 0, len(clauses))
	if len(clauses) > 0 {
		exprs := make([]string, 0, len(clauses))
		for _, c := range clauses {
			exprs = append(exprs, c.expr)
			args = append(args, c.arg)
		}
		query += " WHERE " + strings.Join(exprs, " AND ")
	}
	if filter.SortByStart {
		query += " ORDER BY start_at ASC"
	}

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]persistence.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

func buildClauses(filter persistence.EventFilter) []clause {
	clauses := make([]clause, 0, 7)

	if filter.Start != nil {
		clauses = append(clauses, clause{expr: "start_at = ?", arg: *filter.Start})
	}
	if filter.End != nil {
		clauses = append(clauses, clause{expr: "end_at = ?", arg: *filter.End})
	}
	if filter.After != nil {
		clauses = append(clauses, clause{expr: "start_at >= ?", arg: *filter.After})
	}
	if filter.Before != nil {
		clauses = append(clauses, clause{expr: "end_at <= ?", arg: *filter.Before})
	}

	clauses = appendTextClause(clauses, "summary", filter.Summary)
	clauses = appendTextClause(clauses, "location", filter.Location)
	clauses = appendTextClause(clauses, "description", filter.Description)

	return clauses
}

// appendTextClause renders one text match. Substring containment uses
// instr() rather than LIKE: SQLite LIKE is case-insensitive for ASCII and
// would also require escaping of % and _ in user input, while instr() is a
// plain case-sensitive containment check.
func appendTextClause(clauses []clause, column string, match *persistence.TextMatch) []clause {
	if match == nil {
		return clauses
	}
	if match.Strict {
		return append(clauses, clause{expr: column + " = ?", arg: match.Value})
	}
	return append(clauses, clause{expr: "instr(" + column + ", ?) > 0", arg: match.Value})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event       persistence.Event
		start, end  sql.NullInt64
		summary     sql.NullString
		location    sql.NullString
		description sql.NullString
	)

	err := row.Scan(&event.ID, &start, &end, &summary, &location, &description, &event.Raw)
	if err != nil {
		return persistence.Event{}, err
	}

	if start.Valid {
		event.Start = &start.Int64
	}
	if end.Valid {
		event.End = &end.Int64
	}
	if summary.Valid {
		event.Summary = &summary.String
	}
	if location.Valid {
		event.Location = &location.String
	}
	if description.Valid {
		event.Description = &description.String
	}

	return event, nil
}

func nullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
