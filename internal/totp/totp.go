// Package totp generates and validates RFC 6238 one-time passwords for the
// second login factor.
package totp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/utafrali/pushgate/internal/domain"
)

const (
	period   = 30
	qrSize   = 200
	dataURL  = "data:image/png;base64,"
	maxDrift = 10
)

// Config controls enrollment and validation.
type Config struct {
	// Issuer is shown as the account label prefix in authenticator apps.
	Issuer string
	// Skew is the number of 30s periods accepted before and after now.
	Skew uint
}

// Authenticator generates enrollment material and validates codes.
type Authenticator struct {
	cfg Config
	now func() time.Time
}

// New creates an Authenticator.
func New(cfg Config) *Authenticator {
	if cfg.Skew > maxDrift {
		cfg.Skew = maxDrift
	}
	return &Authenticator{cfg: cfg, now: time.Now}
}

// Generate creates a fresh secret for username together with its otpauth://
// URL and a QR code encoding that URL. Nothing is persisted.
func (a *Authenticator) Generate(username string) (*domain.Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      a.cfg.Issuer,
		AccountName: username,
		Period:      period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}

	return &domain.Enrollment{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: dataURL + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Validate reports whether code is valid for secret at the current time
// within the configured skew. Malformed codes and secrets are simply invalid.
func (a *Authenticator) Validate(code, secret string) bool {
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), secret, a.now().UTC(), totp.ValidateOpts{
		Period:    period,
		Skew:      a.cfg.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
