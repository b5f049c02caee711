package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/pushgate/internal/auth"
	"github.com/utafrali/pushgate/internal/config"
	"github.com/utafrali/pushgate/internal/event"
	handler "github.com/utafrali/pushgate/internal/handler/http"
	"github.com/utafrali/pushgate/internal/push"
	"github.com/utafrali/pushgate/internal/repository/postgres"
	"github.com/utafrali/pushgate/internal/scheduler"
	"github.com/utafrali/pushgate/internal/service"
	"github.com/utafrali/pushgate/internal/totp"
	"github.com/utafrali/pushgate/migrations"
	"github.com/utafrali/pushgate/pkg/database"
	"github.com/utafrali/pushgate/pkg/health"
	pkgkafka "github.com/utafrali/pushgate/pkg/kafka"
	"github.com/utafrali/pushgate/pkg/tracing"
)

// Version is reported to the tracing backend.
const Version = "0.1.0"

// delayQueue is the part of the scheduler queues the app manages.
type delayQueue interface {
	service.Scheduler
	Close() error
}

// App wires together all dependencies and runs pushgate.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	queue          delayQueue
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
	stopBackground context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.closeResources()
		}
	}()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(Version))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)

	reg := prometheus.DefaultRegisterer
	if err := database.RegisterPoolMetrics(reg, pool, handler.ServiceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.DBSlowQueryLogging > 0 {
		database.SetSlowQueryLogging(cfg.DBSlowQueryLogging, logger)
	}

	// Kafka is optional; without brokers events are dropped.
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(a.producer, logger)

	// Push transport: single-attempt client behind per-host circuit breakers.
	pushClient := push.NewHTTPClient(cfg.PushTimeout, logger)
	sender := push.NewWebPush(push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subject:         cfg.VAPIDSubject,
		TTL:             cfg.PushTTL,
	}, pushClient.Doer(), reg, logger)

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	otp := totp.New(totp.Config{Issuer: cfg.TOTPIssuer, Skew: cfg.TOTPSkew})
	userRepo := postgres.NewUserRepository(pool)
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	authService := service.NewAuthService(userRepo, jwtManager, otp, eventProducer, logger)
	notificationService := service.NewNotificationService(subscriptionRepo, sender, nil, eventProducer, logger)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	a.stopBackground = stopBackground

	// Delayed-work queue. Its handler is the notification service.
	switch cfg.DelayQueue {
	case config.QueueRedis:
		client, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		rq := scheduler.NewRedisQueue(client, scheduler.RedisQueueConfig{PollInterval: cfg.DelayPollInterval},
			notificationService.HandleJob, reg, logger)
		rq.Start(bgCtx)
		a.queue = rq
		logger.Info("redis delay queue started", slog.Duration("poll_interval", cfg.DelayPollInterval))
	default:
		a.queue = scheduler.NewMemoryQueue(notificationService.HandleJob, reg, logger)
		logger.Info("in-memory delay queue started")
	}
	notificationService.UseScheduler(a.queue)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if a.redis != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return a.producer.Ping(ctx)
		})
	}

	// HTTP router.
	router := handler.NewRouter(bgCtx, handler.Deps{
		Auth:          authService,
		Notifications: notificationService,
		Tokens:        jwtManager,
		Health:        healthHandler,
		Registerer:    reg,
		Gatherer:      prometheus.DefaultGatherer,
		Logger:        logger,
	}, handler.RouterConfig{
		AllowedOrigins:    cfg.AllowedOrigins(),
		CookieSecure:      cfg.CookieSecure,
		VAPIDPublicKey:    cfg.VAPIDPublicKey,
		RateLimitRPS:      cfg.RateLimitRPS,
		RateLimitBurst:    cfg.RateLimitBurst,
		RequestTimeout:    cfg.PushTimeout + 5*time.Second,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ListenPort()),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.PushTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	return a, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Delay queue and background workers
// 3. Tracer, Kafka producer, Redis, PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	errs = append(errs, a.closeResources())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases everything NewApp acquired. Nil members are skipped.
func (a *App) closeResources() error {
	var errs []error

	if a.stopBackground != nil {
		a.stopBackground()
	}
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			a.logger.Error("delay queue close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// Flush spans after the queue so spans of finished jobs are exported.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}

	return errors.Join(errs...)
}
