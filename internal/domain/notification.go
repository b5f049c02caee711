package domain

import (
	"fmt"
	"math"
	"time"
)

// NotificationIcon is shown next to every notification.
const NotificationIcon = "https://cdn-icons-png.flaticon.com/512/5968/5968342.png"

// DefaultNotificationBody is used when the caller does not supply a body.
const DefaultNotificationBody = "Notification from Backend"

// DefaultDelayMs is used for delayed notifications without a usable delay.
const DefaultDelayMs = 30000

// MaxDelayMs is the longest delay, in milliseconds, a time.Duration can hold.
const MaxDelayMs = math.MaxInt64 / int64(time.Millisecond)

// Payload is the JSON document delivered to every device.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
}

// NewPayload builds the payload greeting username. An empty body falls back
// to DefaultNotificationBody.
func NewPayload(username, body string) Payload {
	if body == "" {
		body = DefaultNotificationBody
	}
	return Payload{
		Title: fmt.Sprintf("Hello, %s!", username),
		Body:  body,
		Icon:  NotificationIcon,
	}
}

// DispatchResult summarizes one fan-out.
type DispatchResult struct {
	Recipients int
	Delivered  int
	Failed     int
	Pruned     int
}

// HasSubscriptions reports whether the user had any device to deliver to.
func (r DispatchResult) HasSubscriptions() bool {
	return r.Recipients > 0
}
