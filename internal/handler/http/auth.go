package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/pushgate/internal/domain"
	"github.com/utafrali/pushgate/internal/service"
	"github.com/utafrali/pushgate/pkg/httputil"
	"github.com/utafrali/pushgate/pkg/validator"
)

// RefreshCookieName is the cookie holding the refresh token.
const RefreshCookieName = "refreshToken"

// AuthHandler handles the login, 2FA, refresh and logout endpoints.
type AuthHandler struct {
	service      *service.AuthService
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookieSecure: cookieSecure, logger: logger}
}

// --- Request DTOs ---

// LoginRequest is the JSON request body for POST /login.
type LoginRequest struct {
	Username string `json:"username"`
}

// VerifyRequest is the JSON request body for POST /verify-2fa.
type VerifyRequest struct {
	Username   string `json:"username"`
	Token      string `json:"token"`
	TempSecret string `json:"tempSecret"`
}

// --- Response types ---

// SetupNeededResponse carries the enrollment material for a user without a secret.
type SetupNeededResponse struct {
	Status     string `json:"status"`
	QRCode     string `json:"qrCode"`
	TempSecret string `json:"tempSecret"`
}

// VerifyNeededResponse asks an enrolled user for a code.
type VerifyNeededResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AccessTokenResponse is returned by a successful verify or refresh.
type AccessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// --- Handlers ---

// Login handles POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.Decode(w, r, &req); err != nil {
		writeBadRequest(w, r, "Invalid request body", h.logger)
		return
	}

	res, err := h.service.Login(r.Context(), req.Username)
	if err != nil {
		writeServiceError(w, r, err, "Server error", h.logger)
		return
	}

	if res.Status == domain.LoginVerifyNeeded {
		httputil.WriteJSON(w, http.StatusOK, VerifyNeededResponse{
			Status:  res.Status,
			Message: "Enter the code from Google Authenticator",
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SetupNeededResponse{
		Status:     res.Status,
		QRCode:     res.Enrollment.QRCode,
		TempSecret: res.Enrollment.Secret,
	})
}

// Verify2FA handles POST /verify-2fa
func (h *AuthHandler) Verify2FA(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := validator.Decode(w, r, &req); err != nil {
		writeBadRequest(w, r, "Invalid request body", h.logger)
		return
	}

	pair, err := h.service.Verify2FA(r.Context(), service.VerifyInput{
		Username:   req.Username,
		Token:      req.Token,
		TempSecret: req.TempSecret,
	})
	if err != nil {
		writeServiceError(w, r, err, "Verification error", h.logger)
		return
	}

	http.SetCookie(w, h.refreshCookie(pair.RefreshToken, h.service.RefreshTTLSeconds()))
	httputil.WriteJSON(w, http.StatusOK, AccessTokenResponse{AccessToken: pair.AccessToken})
}

// Refresh handles GET /refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	access, err := h.service.Refresh(r.Context(), refreshTokenFromRequest(r))
	if err != nil {
		writeServiceError(w, r, err, "Refresh error", h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AccessTokenResponse{AccessToken: access})
}

// Logout handles POST /logout. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), refreshTokenFromRequest(r)); err != nil {
		h.logger.ErrorContext(r.Context(), "logout failed to clear refresh token",
			slog.String("error", err.Error()),
		)
	}

	http.SetCookie(w, h.refreshCookie("", -1))
	httputil.WriteMessage(w, http.StatusOK, "Logged out")
}

func (h *AuthHandler) refreshCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func refreshTokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
