package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/pushgate/pkg/errors"
	"github.com/utafrali/pushgate/pkg/logger"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// --- WriteJSON ---

func TestWriteJSON_SetsContentTypeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusAccepted, map[string]int{"delayMs": 30000})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"delayMs":30000}`, rec.Body.String())
}

func TestWriteMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteMessage(rec, http.StatusCreated, "Device ownership transferred")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"Device ownership transferred"}`, rec.Body.String())
}

// --- WriteError ---

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/verify-2fa", nil)

	WriteError(rec, req, apperrors.NotFound("User not found"), logger.Discard())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "User not found", resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestWriteError_WrappedAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)

	err := fmt.Errorf("login: %w", apperrors.InvalidInput("Username is required"))
	WriteError(rec, req, err, logger.Discard())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username is required", decodeError(t, rec).Error)
}

func TestWriteError_InternalWithMessage_DoesNotLeakCause(t *testing.T) {
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/refresh", nil)

	err := apperrors.Internal("Refresh error", fmt.Errorf("connection reset by peer"))
	WriteError(rec, req, err, logger.NewWithWriter("test", "info", &buf))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "Refresh error", resp.Error)
	assert.NotContains(t, rec.Body.String(), "connection reset")
	assert.Contains(t, buf.String(), "connection reset by peer")
}

func TestWriteError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	WriteError(rec, req, fmt.Errorf("boom"), logger.Discard())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "an internal error occurred", decodeError(t, rec).Error)
}

func TestWriteError_Sentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	WriteError(rec, req, fmt.Errorf("lookup: %w", apperrors.ErrForbidden), logger.Discard())

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", decodeError(t, rec).Error)
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := logger.WithCorrelationID(context.Background(), "req-42")
	req := httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(ctx)

	WriteError(rec, req, apperrors.InvalidInput("Invalid code"), logger.Discard())

	assert.Equal(t, "req-42", decodeError(t, rec).RequestID)
}

func TestWriteError_PrefersRequestLogger(t *testing.T) {
	var reqBuf, fallbackBuf bytes.Buffer
	rec := httptest.NewRecorder()
	ctx := logger.NewContext(context.Background(), logger.NewWithWriter("req", "info", &reqBuf))
	req := httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(ctx)

	WriteError(rec, req, fmt.Errorf("boom"), logger.NewWithWriter("fallback", "info", &fallbackBuf))

	assert.NotZero(t, reqBuf.Len())
	assert.Zero(t, fallbackBuf.Len())
}
