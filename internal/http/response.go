package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"dompet/internal/amqp"
	"dompet/internal/core"
	"dompet/internal/drive"
	"dompet/internal/editor"
	"dompet/internal/export"
	applog "dompet/internal/log"
	"dompet/internal/targets"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Prompt string `json:"prompt,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "component", applog.ComponentHTTP, "error", err)
	}
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var uerr *drive.UploadError
	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, editor.ErrNotConfirmed):
		return http.StatusConflict
	case errors.Is(err, targets.ErrCategoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrNegativeAmount),
		errors.Is(err, export.ErrEmptyWorkbook),
		errors.Is(err, errBadRequest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, drive.ErrTokenProviderUnavailable), errors.Is(err, amqp.ErrCircuitOpen),
		errors.Is(err, errReportsDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &uerr), targets.IsGatewayError(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError logs err and writes it as JSON. Internal errors are not echoed
// to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := applog.FromContext(r.Context())
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "status_code", status, "error", err)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", "path", r.URL.Path, "status_code", status, "error", err)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg})
}
