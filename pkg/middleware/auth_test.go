package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticValidator(token string) (*Claims, error) {
	if token == "good-token" {
		return &Claims{UserID: 7, Username: "alice"}, nil
	}
	return nil, errors.New("invalid token")
}

func serveAuth(t *testing.T, header string) (*httptest.ResponseRecorder, *Claims) {
	t.Helper()

	var got *Claims
	h := BearerAuth(staticValidator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		got = c
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/send-notification", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got
}

func TestBearerAuth_ValidToken(t *testing.T) {
	rec, claims := serveAuth(t, "Bearer good-token")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestBearerAuth_SchemeIsCaseInsensitive(t *testing.T) {
	rec, _ := serveAuth(t, "bearer good-token")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBearerAuth_MissingHeader_Returns401(t *testing.T) {
	rec, claims := serveAuth(t, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, claims)
	assert.Contains(t, rec.Body.String(), "missing bearer token")
}

func TestBearerAuth_MalformedHeader_Returns401(t *testing.T) {
	for _, h := range []string{"good-token", "Basic dXNlcjpwYXNz", "Bearer ", "Bearer"} {
		rec, _ := serveAuth(t, h)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", h)
	}
}

func TestBearerAuth_InvalidToken_Returns403(t *testing.T) {
	rec, claims := serveAuth(t, "Bearer forged")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, claims)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
