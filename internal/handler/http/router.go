package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/pushgate/internal/auth"
	"github.com/utafrali/pushgate/internal/service"
	"github.com/utafrali/pushgate/pkg/health"
	"github.com/utafrali/pushgate/pkg/middleware"
)

// ServiceName labels metrics, traces and logs.
const ServiceName = "pushgate"

// RouterConfig holds the HTTP-facing settings of the router.
type RouterConfig struct {
	AllowedOrigins    []string
	CookieSecure      bool
	VAPIDPublicKey    string
	RateLimitRPS      float64
	RateLimitBurst    int
	RequestTimeout    time.Duration
	PprofAllowedCIDRs []string
	// TrustProxyHeaders rewrites RemoteAddr from proxy headers before rate
	// limiting and logging.
	TrustProxyHeaders bool
}

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Auth          *service.AuthService
	Notifications *service.NotificationService
	Tokens        *auth.JWTManager
	Health        *health.Handler
	Registerer    prometheus.Registerer
	Gatherer      prometheus.Gatherer
	Logger        *slog.Logger
}

// NewRouter creates a chi router with every route registered. Auth and push
// routes are served both at the root and under /auth and /push. ctx bounds
// background work owned by the router, such as the rate limiter sweeper.
func NewRouter(ctx context.Context, deps Deps, cfg RouterConfig) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	if cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.NewHTTPMetrics(deps.Registerer, ServiceName).Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.CorrelationHeader},
		ExposedHeaders:   []string{middleware.CorrelationHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	authHandler := NewAuthHandler(deps.Auth, cfg.CookieSecure, logger)
	notificationHandler := NewNotificationHandler(deps.Notifications, cfg.VAPIDPublicKey, logger)

	// One limiter shared by every mount point so the prefixes share buckets.
	limit := middleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	authRoutes := func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Use(middleware.NoStore)
			r.Post("/login", authHandler.Login)
			r.Post("/verify-2fa", authHandler.Verify2FA)
		})
		r.With(middleware.NoStore).Get("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
	}

	bearer := middleware.BearerAuth(accessTokenValidator(deps.Tokens))
	pushRoutes := func(r chi.Router) {
		r.Get("/vapid-public-key", notificationHandler.VAPIDPublicKey)
		r.Group(func(r chi.Router) {
			r.Use(bearer)
			r.Post("/subscribe", notificationHandler.Subscribe)
			r.Post("/send-notification", notificationHandler.SendNotification)
			r.Post("/send-delayed-notification", notificationHandler.SendDelayedNotification)
		})
	}

	r.Group(authRoutes)
	r.Group(pushRoutes)
	r.Route("/auth", authRoutes)
	r.Route("/push", pushRoutes)

	return r
}

// accessTokenValidator bridges the JWT manager to the bearer middleware.
func accessTokenValidator(tokens *auth.JWTManager) middleware.TokenValidator {
	return func(token string) (*middleware.Claims, error) {
		claims, err := tokens.VerifyAccess(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{UserID: claims.UserID, Username: claims.Username}, nil
	}
}
