// Package main is the entry point for the service. It wires all dependencies
// using samber/do v2, starts the bus consumer and the operational HTTP
// server, and handles graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"

	adapthttp "github.com/stackmesh/entitybus/internal/adapters/http"
	"github.com/stackmesh/entitybus/internal/adapters/http/handlers"
	"github.com/stackmesh/entitybus/internal/adapters/http/middleware"

	"github.com/stackmesh/entitybus/internal/adapters/bus/kafka"
	"github.com/stackmesh/entitybus/internal/adapters/dispatch"
	"github.com/stackmesh/entitybus/internal/adapters/store/postgres"
	"github.com/stackmesh/entitybus/internal/app"
	"github.com/stackmesh/entitybus/internal/domain/post"
	"github.com/stackmesh/entitybus/internal/domain/user"
	"github.com/stackmesh/entitybus/internal/platform/config"
	"github.com/stackmesh/entitybus/internal/platform/health"
	"github.com/stackmesh/entitybus/internal/platform/logging"
	"github.com/stackmesh/entitybus/internal/platform/telemetry"
	"github.com/stackmesh/entitybus/internal/ports"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	serverShutdownTimeout = 15 * time.Second
	otelShutdownTimeout   = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	profile := os.Getenv("APP_PROFILE")
	if profile == "" {
		return errors.New("APP_PROFILE environment variable is required (e.g. local, prod)")
	}

	// Bootstrap: config, logger, telemetry.
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	ctx := context.Background()
	otel, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	pool, err := newPool(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("connecting to storage: %w", err)
	}
	defer pool.Close()

	// DI container.
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)
	do.ProvideValue(injector, otel.metrics)
	do.ProvideValue(injector, pool)

	registerDependencies(injector, cfg, logger)

	// Resolve the entry points (eagerly wires the full graph).
	server, err := do.Invoke[*adapthttp.Server](injector)
	if err != nil {
		return fmt.Errorf("resolving server: %w", err)
	}
	consumer, err := do.Invoke[*kafka.Consumer](injector)
	if err != nil {
		return fmt.Errorf("resolving consumer: %w", err)
	}
	publisher := do.MustInvoke[*kafka.Publisher](injector)

	// Register health checkers after the graph is wired.
	registry := do.MustInvoke[ports.HealthRegistry](injector)
	registry.Register(do.MustInvoke[*postgres.Collection[user.User]](injector))
	registry.Register(do.MustInvoke[*postgres.Collection[post.Post]](injector))

	// Start the bus consumer and the operational HTTP server.
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- consumer.Run(consumerCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for shutdown signal or component failure.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErr:
		stopConsumer()
		<-consumerErr
		return fmt.Errorf("server failed: %w", err)
	}

	// Graceful shutdown: stop consuming, drain HTTP, flush telemetry.
	stopConsumer()
	if err := <-consumerErr; err != nil {
		logger.Error("consumer shutdown error", slog.Any("error", err))
	}
	if err := publisher.Close(); err != nil {
		logger.Error("publisher close error", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// Wait for Start() goroutine to return.
	<-serverErr

	otelCtx, otelCancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
	defer otelCancel()

	if err := otel.Shutdown(otelCtx); err != nil {
		logger.Error("telemetry shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}

// newPool creates the pgx connection pool for the document store.
func newPool(ctx context.Context, cfg config.StorageConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing storage dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	return pool, nil
}

// otelProviders bundles OpenTelemetry provider lifecycle. All fields are nil
// when telemetry is disabled.
type otelProviders struct {
	tracer  *sdktrace.TracerProvider
	meter   *sdkmetric.MeterProvider
	metrics *telemetry.Metrics
}

// Shutdown flushes both providers. Nil-safe.
func (o *otelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tracer != nil {
		if err := o.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if o.meter != nil {
		if err := o.meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func initTelemetry(ctx context.Context, cfg *config.Config) (*otelProviders, error) {
	if !cfg.Telemetry.Enabled {
		return &otelProviders{}, nil
	}

	tp, err := telemetry.InitTracer(ctx,
		cfg.Telemetry.ServiceName,
		cfg.Telemetry.Exporter,
		cfg.Telemetry.Endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	mp, err := telemetry.InitMeter(ctx,
		cfg.Telemetry.ServiceName,
		cfg.Telemetry.Exporter,
		cfg.Telemetry.Endpoint,
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("init meter: %w", err)
	}

	metrics, err := telemetry.NewMetrics(mp)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	return &otelProviders{
		tracer:  tp,
		meter:   mp,
		metrics: metrics,
	}, nil
}

func registerDependencies(injector *do.RootScope, cfg *config.Config, logger *slog.Logger) {
	do.Provide(injector, func(i do.Injector) (*postgres.Collection[user.User], error) {
		pool := do.MustInvoke[*pgxpool.Pool](i)
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return postgres.New[user.User](pool, "users", cfg.Storage.Breaker, metrics, logger), nil
	})

	do.Provide(injector, func(i do.Injector) (*postgres.Collection[post.Post], error) {
		pool := do.MustInvoke[*pgxpool.Pool](i)
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return postgres.New[post.Post](pool, "posts", cfg.Storage.Breaker, metrics, logger), nil
	})

	do.Provide(injector, func(i do.Injector) (*kafka.Publisher, error) {
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return kafka.NewPublisher(cfg.Bus, metrics, logger), nil
	})

	do.Provide(injector, func(i do.Injector) (ports.UserService, error) {
		users := do.MustInvoke[*postgres.Collection[user.User]](i)
		publisher := do.MustInvoke[*kafka.Publisher](i)
		return app.NewUserService(users, publisher, logger), nil
	})

	do.Provide(injector, func(i do.Injector) (ports.PostService, error) {
		posts := do.MustInvoke[*postgres.Collection[post.Post]](i)
		publisher := do.MustInvoke[*kafka.Publisher](i)
		return app.NewPostService(posts, publisher, logger), nil
	})

	do.Provide(injector, func(i do.Injector) (*dispatch.Dispatcher, error) {
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		d := dispatch.New(logger, metrics)
		dispatch.RegisterUser(d, do.MustInvoke[ports.UserService](i))
		dispatch.RegisterPost(d, do.MustInvoke[ports.PostService](i))
		return d, nil
	})

	do.Provide(injector, func(i do.Injector) (*kafka.Consumer, error) {
		d := do.MustInvoke[*dispatch.Dispatcher](i)
		return kafka.NewConsumer(cfg.Bus, d, logger), nil
	})

	do.Provide(injector, func(_ do.Injector) (ports.HealthRegistry, error) {
		return health.New(), nil
	})

	do.Provide(injector, func(i do.Injector) (*handlers.HealthHandler, error) {
		registry := do.MustInvoke[ports.HealthRegistry](i)
		return handlers.NewHealthHandler(registry), nil
	})

	do.Provide(injector, func(i do.Injector) (nethttp.Handler, error) {
		healthH := do.MustInvoke[*handlers.HealthHandler](i)

		return adapthttp.NewRouter(healthH,
			middleware.Recovery(logger),
			middleware.RequestID(),
			middleware.Logging(logger),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*adapthttp.Server, error) {
		handler := do.MustInvoke[nethttp.Handler](i)
		return adapthttp.NewServer(cfg.Server, handler, logger), nil
	})
}
