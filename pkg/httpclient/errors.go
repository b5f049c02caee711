package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/pushgate/pkg/errors"
)

// ParseResponseError consumes and closes the body of a non-2xx response and
// translates its status into an AppError, so callers can branch with
// errors.Is on the apperrors sentinels (for example ErrGone for an endpoint
// that no longer exists).
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", upstream, resp.StatusCode, err)
	}
	msg := fmt.Sprintf("%s returned status %d", upstream, resp.StatusCode)
	if detail := strings.TrimSpace(string(body)); detail != "" {
		msg += ": " + detail
	}

	switch status := resp.StatusCode; {
	case status == http.StatusNotFound, status == http.StatusGone:
		return apperrors.Gone(msg)
	case status == http.StatusBadRequest, status == http.StatusRequestEntityTooLarge:
		return apperrors.InvalidInput(msg)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(msg)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case status == http.StatusTooManyRequests, status == http.StatusServiceUnavailable:
		return &apperrors.AppError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: msg,
			Status:  http.StatusServiceUnavailable,
			Err:     apperrors.ErrServiceUnavail,
		}
	default:
		return &apperrors.AppError{Code: "UPSTREAM_ERROR", Message: msg, Status: status}
	}
}

// IsSuccess reports whether the status code is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
