package ics

import (
	"bytes"
	"errors"
	"log/slog"

	ical "github.com/arran4/golang-ical"

	"github.com/example/ical-aggregator/internal/persistence"
)

// ParseFeed parses one iCalendar payload into normalized event records.
//
// Only VEVENT components are retained; timezone definitions, free/busy blocks
// and every other component type are dropped silently. A malformed individual
// VEVENT is logged and skipped without aborting the rest of the payload. An
// unparsable payload returns an error and zero events.
func ParseFeed(body []byte, logger *slog.Logger) ([]persistence.Event, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(body) == 0 {
		return nil, errors.New("empty feed body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]persistence.Event, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		event, perr := parseVEvent(ve)
		if perr != nil {
			logger.Error("skipping malformed event", "error", perr)
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

func parseVEvent(ve *ical.VEvent) (persistence.Event, error) {
	if ve == nil {
		return persistence.Event{}, errors.New("nil event component")
	}

	var event persistence.Event

	// DTSTART/DTEND through the library's timezone handling; events without
	// usable timestamps keep nil bounds rather than failing.
	if start, err := ve.GetStartAt(); err == nil {
		sec := start.Unix()
		event.Start = &sec
	}
	if end, err := ve.GetEndAt(); err == nil {
		sec := end.Unix()
		event.End = &sec
	}

	event.Summary = propertyValue(ve, ical.ComponentPropertySummary)
	event.Location = propertyValue(ve, ical.ComponentPropertyLocation)
	event.Description = propertyValue(ve, ical.ComponentPropertyDescription)

	// The full original component is kept for lossless re-rendering.
	event.Raw = ve.Serialize()
	if event.Raw == "" {
		return persistence.Event{}, errors.New("event serialized to empty payload")
	}

	return event, nil
}

func propertyValue(ve *ical.VEvent, name ical.ComponentProperty) *string {
	p := ve.GetProperty(name)
	if p == nil {
		return nil
	}
	value := p.Value
	return &value
}
