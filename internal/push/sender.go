package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/pushgate/internal/domain"
	apperrors "github.com/utafrali/pushgate/pkg/errors"
	"github.com/utafrali/pushgate/pkg/httpclient"
)

const upstream = "push service"

// Sender delivers one encrypted payload to one browser subscription.
type Sender interface {
	Send(ctx context.Context, d domain.Descriptor, payload []byte) error
}

// Config holds the VAPID identity and delivery options.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subject is a mailto: or https: contact URL sent to push services.
	Subject string
	// TTL is how long, in seconds, the push service keeps an undelivered message.
	TTL     int
	Urgency webpush.Urgency
}

// NewHTTPClient returns the client push deliveries go through: per-host
// circuit breakers over a pooled client that sends each request exactly once.
func NewHTTPClient(timeout time.Duration, logger *slog.Logger) *httpclient.CircuitBreakerClient {
	return httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.Config{
			Timeout:         timeout,
			MaxRetries:      0,
			MaxConnsPerHost: 50,
		}),
		httpclient.DefaultCircuitBreakerConfig("push"),
		logger,
	)
}

// WebPush sends notifications with the Web Push protocol (RFC 8030) signed
// with VAPID (RFC 8292).
type WebPush struct {
	cfg     Config
	client  httpclient.Doer
	metrics *metrics
	logger  *slog.Logger
}

// NewWebPush creates a WebPush sender. Requests go through client, which is
// expected to carry its own timeout. reg may be nil to skip metrics.
func NewWebPush(cfg Config, client httpclient.Doer, reg prometheus.Registerer, logger *slog.Logger) *WebPush {
	if cfg.Urgency == "" {
		cfg.Urgency = webpush.UrgencyNormal
	}
	return &WebPush{
		cfg:     cfg,
		client:  client,
		metrics: newMetrics(reg),
		logger:  logger,
	}
}

// Send encrypts payload for d and posts it to d.Endpoint. A subscription the
// push service no longer knows yields an error matching apperrors.ErrGone.
func (p *WebPush) Send(ctx context.Context, d domain.Descriptor, payload []byte) error {
	host := endpointHost(d.Endpoint)

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: d.Endpoint,
		Keys: webpush.Keys{
			P256dh: d.Keys.P256dh,
			Auth:   d.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient: p.client,
		// webpush-go adds the mailto: scheme itself for non-https subjects.
		Subscriber:      strings.TrimPrefix(p.cfg.Subject, "mailto:"),
		TTL:             p.cfg.TTL,
		Urgency:         p.cfg.Urgency,
		VAPIDPublicKey:  p.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: p.cfg.VAPIDPrivateKey,
	})
	if err != nil {
		p.metrics.observe(host, resultError)
		return fmt.Errorf("send push to %s: %w", host, err)
	}

	if !httpclient.IsSuccess(resp.StatusCode) {
		err := httpclient.ParseResponseError(resp, upstream)
		if errors.Is(err, apperrors.ErrGone) {
			p.metrics.observe(host, resultGone)
		} else {
			p.metrics.observe(host, resultRejected)
		}
		return err
	}
	_ = resp.Body.Close()

	p.metrics.observe(host, resultDelivered)
	p.logger.DebugContext(ctx, "push delivered",
		slog.String("host", host),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}

func endpointHost(endpoint string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	host, _, _ := strings.Cut(rest, "/")
	return host
}
