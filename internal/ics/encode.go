package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/example/ical-aggregator/internal/persistence"
)

// Calendar header values matching what the upstream ADE export declares.
const (
	calendarName   = "ADECal"
	calendarProdID = "-//ADE/version 6.0"
	calendarScale  = "GREGORIAN"
)

// EncodeEvents renders the given records as a single iCalendar document with
// one VEVENT per record. Stored timestamps are integer seconds since epoch
// and are mapped back with time.Unix, so storage and encoding share the same
// unit. The raw payload is never included.
//
// Records are encoded exactly as stored. Ingestion does not reorder or
// validate source timestamps, so an event whose end precedes its start is
// rendered as-is rather than rejected.
func EncodeEvents(events []persistence.Event) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodRequest)
	cal.SetProductId(calendarProdID)
	cal.SetCalscale(calendarScale)
	cal.SetName(calendarName)

	now := time.Now().UTC()
	for _, event := range events {
		addVEvent(cal, event, now)
	}

	return cal.Serialize(), nil
}

func addVEvent(cal *ical.Calendar, event persistence.Event, stamp time.Time) {
	ve := cal.AddEvent(uuid.NewString())
	ve.SetDtStampTime(stamp)

	if event.Start != nil {
		ve.SetStartAt(time.Unix(*event.Start, 0).UTC())
	}
	if event.End != nil {
		ve.SetEndAt(time.Unix(*event.End, 0).UTC())
	}
	if event.Summary != nil {
		ve.SetSummary(*event.Summary)
	}
	if event.Location != nil {
		ve.SetLocation(*event.Location)
	}
	if event.Description != nil {
		ve.SetDescription(*event.Description)
	}
}
