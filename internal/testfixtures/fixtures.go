package testfixtures

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/ical-aggregator/internal/persistence"
)

var eventCounter uint64

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// EventFixture represents a deterministic stored event for repository and
// query tests.
type EventFixture struct {
	Start       time.Time
	End         time.Time
	Summary     string
	Location    string
	Description string
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a deterministic event fixture with optional overrides.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := EventFixture{
		Start:       start,
		End:         start.Add(time.Hour),
		Summary:     fmt.Sprintf("Lecture %03d", idx),
		Location:    fmt.Sprintf("Room %03d", idx),
		Description: fmt.Sprintf("Description for lecture %03d", idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSummary overrides the fixture summary.
func WithSummary(summary string) EventOption {
	return func(f *EventFixture) { f.Summary = summary }
}

// WithLocation overrides the fixture location.
func WithLocation(location string) EventOption {
	return func(f *EventFixture) { f.Location = location }
}

// WithDescription overrides the fixture description.
func WithDescription(description string) EventOption {
	return func(f *EventFixture) { f.Description = description }
}

// WithTimes overrides the fixture start and end instants.
func WithTimes(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// Persistence materializes the fixture as a storable event record.
func (f EventFixture) Persistence() persistence.Event {
	start := f.Start.Unix()
	end := f.End.Unix()
	summary := f.Summary
	location := f.Location
	description := f.Description
	return persistence.Event{
		Start:       &start,
		End:         &end,
		Summary:     &summary,
		Location:    &location,
		Description: &description,
		Raw:         f.VEvent(),
	}
}

// VEvent renders the fixture as a raw VEVENT block.
func (f EventFixture) VEvent() string {
	idx := atomic.AddUint64(&eventCounter, 1)
	lines := []string{
		"BEGIN:VEVENT",
		fmt.Sprintf("UID:fixture-%03d@example.com", idx),
		"DTSTAMP:" + referenceTime.Format("20060102T150405Z"),
		"DTSTART:" + f.Start.UTC().Format("20060102T150405Z"),
		"DTEND:" + f.End.UTC().Format("20060102T150405Z"),
		"SUMMARY:" + f.Summary,
		"LOCATION:" + f.Location,
		"DESCRIPTION:" + f.Description,
		"END:VEVENT",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

// FeedDocument renders a complete iCalendar feed containing the given
// fixtures, prefixed with a VTIMEZONE definition that a correct parser must
// drop.
func FeedDocument(fixtures ...EventFixture) []byte {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//ADE/version 6.0\r\n")
	b.WriteString("CALSCALE:GREGORIAN\r\n")
	b.WriteString(parisTimezone)
	for _, fixture := range fixtures {
		b.WriteString(fixture.VEvent())
	}
	b.WriteString("END:VCALENDAR\r\n")
	return []byte(b.String())
}

// parisTimezone is a minimal VTIMEZONE block. It exists to prove that
// non-event components never reach the store.
const parisTimezone = "BEGIN:VTIMEZONE\r\n" +
	"TZID:Europe/Paris\r\n" +
	"BEGIN:STANDARD\r\n" +
	"DTSTART:19701025T030000\r\n" +
	"TZOFFSETFROM:+0200\r\n" +
	"TZOFFSETTO:+0100\r\n" +
	"TZNAME:CET\r\n" +
	"END:STANDARD\r\n" +
	"BEGIN:DAYLIGHT\r\n" +
	"DTSTART:19700329T020000\r\n" +
	"TZOFFSETFROM:+0100\r\n" +
	"TZOFFSETTO:+0200\r\n" +
	"TZNAME:CEST\r\n" +
	"END:DAYLIGHT\r\n" +
	"END:VTIMEZONE\r\n"

// DSTBoundaryFixtures returns one event in winter (CET) and one in summer
// (CEST) around the late-March transition. The upstream skew being corrected
// at ingestion is a fixed hour regardless of daylight saving, so both events
// receive the same correction; these fixtures exist to surface that
// discrepancy in tests rather than hide it.
func DSTBoundaryFixtures() (winter, summer EventFixture) {
	winter = NewEventFixture(
		WithSummary("Winter session"),
		WithTimes(
			time.Date(2024, time.March, 29, 10, 0, 0, 0, time.UTC),
			time.Date(2024, time.March, 29, 12, 0, 0, 0, time.UTC),
		),
	)
	summer = NewEventFixture(
		WithSummary("Summer session"),
		WithTimes(
			time.Date(2024, time.April, 2, 10, 0, 0, 0, time.UTC),
			time.Date(2024, time.April, 2, 12, 0, 0, 0, time.UTC),
		),
	)
	return winter, summer
}
