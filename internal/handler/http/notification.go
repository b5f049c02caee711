package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/utafrali/pushgate/internal/domain"
	"github.com/utafrali/pushgate/internal/service"
	"github.com/utafrali/pushgate/pkg/httputil"
	"github.com/utafrali/pushgate/pkg/middleware"
	"github.com/utafrali/pushgate/pkg/validator"
)

// NotificationHandler handles the push subscription and send endpoints.
type NotificationHandler struct {
	service        *service.NotificationService
	vapidPublicKey string
	logger         *slog.Logger
}

// NewNotificationHandler creates a new notification HTTP handler.
func NewNotificationHandler(svc *service.NotificationService, vapidPublicKey string, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{service: svc, vapidPublicKey: vapidPublicKey, logger: logger}
}

// SendRequest is the optional JSON body of POST /send-notification.
type SendRequest struct {
	Body string `json:"body" validate:"max=1000"`
}

// SendDelayedRequest is the optional JSON body of POST /send-delayed-notification.
// DelayMs is kept raw so that anything other than a positive number falls
// back to the default delay instead of failing the request.
type SendDelayedRequest struct {
	Body    string          `json:"body" validate:"max=1000"`
	DelayMs json.RawMessage `json:"delayMs"`
}

// ScheduledResponse acknowledges a delayed send.
type ScheduledResponse struct {
	Message string `json:"message"`
	DelayMs int64  `json:"delayMs"`
}

// VAPIDKeyResponse exposes the application server key to browsers.
type VAPIDKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// Subscribe handles POST /subscribe
func (h *NotificationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var d domain.Descriptor
	if err := validator.Decode(w, r, &d); err != nil {
		writeBadRequest(w, r, "Invalid request body", h.logger)
		return
	}

	if err := h.service.Subscribe(r.Context(), claims.UserID, d); err != nil {
		writeServiceError(w, r, err, "DB Error", h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusCreated, "Device ownership transferred")
}

// SendNotification handles POST /send-notification
func (h *NotificationHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req SendRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		writeBadRequest(w, r, "Invalid request body", h.logger)
		return
	}

	res, err := h.service.Dispatch(r.Context(), claims.UserID, claims.Username, req.Body)
	if err != nil {
		writeServiceError(w, r, err, "Delivery error", h.logger)
		return
	}
	if !res.HasSubscriptions() {
		writeBadRequest(w, r, "No subscriptions", h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Notifications sent")
}

// SendDelayedNotification handles POST /send-delayed-notification
func (h *NotificationHandler) SendDelayedNotification(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req SendDelayedRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		writeBadRequest(w, r, "Invalid request body", h.logger)
		return
	}

	_, delayMs, err := h.service.ScheduleDelayed(r.Context(), claims.UserID, claims.Username, req.Body, positiveMillis(req.DelayMs))
	if err != nil {
		writeServiceError(w, r, err, "Scheduling error", h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, ScheduledResponse{
		Message: "Notification scheduled",
		DelayMs: delayMs,
	})
}

// VAPIDPublicKey handles GET /vapid-public-key
func (h *NotificationHandler) VAPIDPublicKey(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, VAPIDKeyResponse{PublicKey: h.vapidPublicKey})
}

// positiveMillis returns raw as whole milliseconds, or 0 when raw is not a
// positive JSON number or is longer than domain.MaxDelayMs.
func positiveMillis(raw json.RawMessage) int64 {
	var n float64
	if len(raw) == 0 || json.Unmarshal(raw, &n) != nil || n < 1 || n > float64(domain.MaxDelayMs) {
		return 0
	}
	return int64(n)
}
