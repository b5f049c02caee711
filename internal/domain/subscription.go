package domain

import "time"

// Subscription binds a browser push endpoint to the user that registered it.
// The endpoint is unique across all users.
type Subscription struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Descriptor Descriptor `json:"descriptor"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Descriptor is the PushSubscription object produced by the browser's
// PushManager.subscribe().
type Descriptor struct {
	Endpoint       string         `json:"endpoint" validate:"required,url"`
	ExpirationTime *int64         `json:"expirationTime,omitempty"`
	Keys           DescriptorKeys `json:"keys"`
}

// DescriptorKeys holds the subscription's encryption keys.
type DescriptorKeys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}
