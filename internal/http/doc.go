// Package http provides HTTP handlers and middleware for the aggregator API.
//
// The router exposes the following endpoints, all GET:
//   - /: static informational text.
//   - /id/{id}?format=json|ical|ics: one stored event by identifier. Unknown
//     identifiers return 404, unsupported formats 400. The ical/ics formats
//     render a single-event calendar document.
//   - /length: {"count": N} with the total stored record count.
//   - /search: filtered event listing. Date bounds start, end, after and
//     before accept epoch seconds or calendar date-time strings; location,
//     summary and description filter text fields with a match type of
//     strict, regex or default substring per field; raw=only|exclude controls
//     the JSON projection; sort orders ascending by start; format selects
//     JSON or an iCalendar document.
//
// Error responses always carry a JSON body with an "error" field and the
// matching status code. Request/response DTOs live alongside the handler in
// event_handler.go so tests and documentation share the same ground truth.
package http
