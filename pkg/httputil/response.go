package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/pushgate/pkg/errors"
	"github.com/utafrali/pushgate/pkg/logger"
)

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// MessageResponse is the JSON body for operations that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes {"message": msg} with the given status code.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, MessageResponse{Message: msg})
}

// WriteError writes a JSON error body derived from err. AppErrors keep their
// status and client-facing message; everything else becomes a 500 with a
// generic message. Server errors are logged with the request-scoped logger,
// falling back to the supplied logger.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	status := http.StatusInternalServerError
	body := ErrorResponse{
		Error:     "an internal error occurred",
		Code:      "INTERNAL_ERROR",
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status = appErr.Status
		body.Error = appErr.Message
		body.Code = appErr.Code
	} else if s := apperrors.HTTPStatus(err); s != http.StatusInternalServerError {
		status = s
		body.Error = http.StatusText(s)
		body.Code = ""
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, body)
}
