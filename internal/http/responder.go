package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/ical-aggregator/internal/logging"
	"github.com/example/ical-aggregator/internal/persistence"
	"github.com/example/ical-aggregator/internal/query"
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	r.writeJSON(ctx, w, status, errorResponse{Error: message})
}

// writeCalendar sends an iCalendar document.
func (r responder) writeCalendar(w http.ResponseWriter, document string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(document)); err != nil {
		r.logger.Error("failed to write calendar response", "error", err)
	}
}

// handleError maps service errors onto the HTTP error taxonomy. Validation
// problems surface their reason; internal failures are logged with operation
// context and never echoed to the client.
func (r responder) handleError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	var vErr *query.ValidationError
	switch {
	case errors.As(err, &vErr):
		r.writeError(ctx, w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, persistence.ErrNotFound):
		r.writeError(ctx, w, http.StatusNotFound, "Event not found")
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "operation", operation, "error", err)
		r.writeError(ctx, w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}
