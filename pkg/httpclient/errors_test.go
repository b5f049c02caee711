package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/utafrali/pushgate/pkg/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusGone, apperrors.ErrGone},
		{http.StatusNotFound, apperrors.ErrGone},
		{http.StatusBadRequest, apperrors.ErrInvalidInput},
		{http.StatusRequestEntityTooLarge, apperrors.ErrInvalidInput},
		{http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{http.StatusForbidden, apperrors.ErrForbidden},
		{http.StatusTooManyRequests, apperrors.ErrServiceUnavail},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ParseResponseError(response(tt.status, "push subscription has unsubscribed or expired"), "push service")
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			assert.Contains(t, err.Error(), "push service returned status")
		})
	}
}

func TestParseResponseError_Unmapped(t *testing.T) {
	err := ParseResponseError(response(http.StatusTeapot, ""), "push service")

	var appErr *apperrors.AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusTeapot, appErr.Status)
	assert.Equal(t, "push service returned status 418", appErr.Message)
}

func TestIsSuccess(t *testing.T) {
	assert.True(t, IsSuccess(http.StatusCreated))
	assert.False(t, IsSuccess(http.StatusGone))
}
