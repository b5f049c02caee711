package http

import (
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/pushgate/pkg/errors"
	"github.com/utafrali/pushgate/pkg/httputil"
)

// writeServiceError writes err as a JSON error body. Client errors keep their
// own status and message; everything else is logged and answered with 500
// and the operation's fallback message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string, logger *slog.Logger) {
	if apperrors.HTTPStatus(err) < http.StatusInternalServerError {
		httputil.WriteError(w, r, err, logger)
		return
	}
	httputil.WriteError(w, r, apperrors.Internal(fallback, err), logger)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string, logger *slog.Logger) {
	httputil.WriteError(w, r, apperrors.InvalidInput(msg), logger)
}
