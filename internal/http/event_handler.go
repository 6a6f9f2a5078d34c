package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/ical-aggregator/internal/ics"
	"github.com/example/ical-aggregator/internal/persistence"
	"github.com/example/ical-aggregator/internal/query"
)

type eventService interface {
	Search(ctx context.Context, params query.Params) ([]persistence.Event, error)
	Get(ctx context.Context, id int64) (persistence.Event, error)
	Count(ctx context.Context) (int64, error)
}

// EventHandler serves the query surface of the aggregator.
type EventHandler struct {
	service   eventService
	opts      query.Options
	responder responder
}

func NewEventHandler(service eventService, opts query.Options, logger *slog.Logger) *EventHandler {
	return &EventHandler{service: service, opts: opts, responder: newResponder(logger)}
}

// Root answers the informational index page.
func (h *EventHandler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("iCal feed aggregator. Query the stored events via /search, /id/{id} and /length.\n"))
}

// Length reports the total stored record count.
func (h *EventHandler) Length(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.Count(r.Context())
	if err != nil {
		h.responder.handleError(r.Context(), w, "count events", err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, countResponse{Count: count})
}

// GetByID looks a single record up and renders it as JSON or as a
// single-event calendar document.
func (h *EventHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	format, err := query.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "Invalid format")
		return
	}

	rawID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(rawID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusNotFound, "Event not found")
		return
	}
	id, parseErr := strconv.ParseInt(rawID, 10, 64)
	if parseErr != nil {
		// No stored identifier is non-numeric, so the lookup cannot match.
		h.responder.writeError(r.Context(), w, http.StatusNotFound, "Event not found")
		return
	}

	event, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.responder.handleError(r.Context(), w, "get event", err)
		return
	}

	if format.IsCalendar() {
		document, encErr := ics.EncodeEvents([]persistence.Event{event})
		if encErr != nil {
			h.responder.handleError(r.Context(), w, "encode event", encErr)
			return
		}
		h.responder.writeCalendar(w, document)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

// Search executes the filter pipeline and renders the result set in the
// requested projection and format.
func (h *EventHandler) Search(w http.ResponseWriter, r *http.Request) {
	params, err := query.ParseParams(r.URL.Query(), h.opts)
	if err != nil {
		h.responder.handleError(r.Context(), w, "parse search parameters", err)
		return
	}

	events, err := h.service.Search(r.Context(), params)
	if err != nil {
		h.responder.handleError(r.Context(), w, "search events", err)
		return
	}

	if params.Format.IsCalendar() {
		// Calendar rendering never includes the raw payload, regardless of
		// the raw projection choice.
		document, encErr := ics.EncodeEvents(events)
		if encErr != nil {
			h.responder.handleError(r.Context(), w, "encode events", encErr)
			return
		}
		h.responder.writeCalendar(w, document)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, projectEvents(events, params.Raw))
}

type countResponse struct {
	Count int64 `json:"count"`
}

type eventDTO struct {
	ID          int64   `json:"id"`
	Start       *int64  `json:"start"`
	End         *int64  `json:"end"`
	Summary     *string `json:"summary"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
	Raw         string  `json:"raw"`
}

type eventWithoutRawDTO struct {
	ID          int64   `json:"id"`
	Start       *int64  `json:"start"`
	End         *int64  `json:"end"`
	Summary     *string `json:"summary"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
}

type rawOnlyDTO struct {
	ID  int64  `json:"id"`
	Raw string `json:"raw"`
}

func toEventDTO(event persistence.Event) eventDTO {
	return eventDTO{
		ID:          event.ID,
		Start:       event.Start,
		End:         event.End,
		Summary:     event.Summary,
		Location:    event.Location,
		Description: event.Description,
		Raw:         event.Raw,
	}
}

// projectEvents applies the raw projection mode to a JSON result set.
func projectEvents(events []persistence.Event, mode query.RawMode) any {
	switch mode {
	case query.RawOnly:
		out := make([]rawOnlyDTO, 0, len(events))
		for _, event := range events {
			out = append(out, rawOnlyDTO{ID: event.ID, Raw: event.Raw})
		}
		return out
	case query.RawExclude:
		out := make([]eventWithoutRawDTO, 0, len(events))
		for _, event := range events {
			out = append(out, eventWithoutRawDTO{
				ID:          event.ID,
				Start:       event.Start,
				End:         event.End,
				Summary:     event.Summary,
				Location:    event.Location,
				Description: event.Description,
			})
		}
		return out
	default:
		out := make([]eventDTO, 0, len(events))
		for _, event := range events {
			out = append(out, toEventDTO(event))
		}
		return out
	}
}
