package domain

import "time"

// Login outcomes returned by the login step.
const (
	LoginSetupNeeded  = "SETUP_NEEDED"
	LoginVerifyNeeded = "VERIFY_NEEDED"
)

// User is an account identified by username. It is created implicitly on the
// first login and gains a TOTP secret on its first successful verification.
type User struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	TwoFactorSecret *string   `json:"-"`
	RefreshToken    *string   `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasSecret reports whether the user completed TOTP enrollment.
func (u *User) HasSecret() bool {
	return u.TwoFactorSecret != nil && *u.TwoFactorSecret != ""
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"-"`
}

// Enrollment is a freshly generated, not yet committed TOTP secret together
// with what the user needs to add it to an authenticator app.
type Enrollment struct {
	Secret string
	URL    string
	QRCode string // data:image/png;base64 URL
}

// LoginResult is the outcome of the login step.
type LoginResult struct {
	Status     string
	Enrollment *Enrollment
	Created    bool
}
