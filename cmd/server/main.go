// Package main provides the entry point for the syllabus review service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/helixir/syllabus-review-service/internal/aiservice"
	"github.com/helixir/syllabus-review-service/internal/cache"
	"github.com/helixir/syllabus-review-service/internal/config"
	"github.com/helixir/syllabus-review-service/internal/consistency"
	"github.com/helixir/syllabus-review-service/internal/database"
	"github.com/helixir/syllabus-review-service/internal/documents"
	"github.com/helixir/syllabus-review-service/internal/domain"
	"github.com/helixir/syllabus-review-service/internal/domaindata"
	"github.com/helixir/syllabus-review-service/internal/events"
	"github.com/helixir/syllabus-review-service/internal/httpclient"
	"github.com/helixir/syllabus-review-service/internal/observability"
	"github.com/helixir/syllabus-review-service/internal/polling"
	"github.com/helixir/syllabus-review-service/internal/repository"
	"github.com/helixir/syllabus-review-service/internal/review"
	httpserver "github.com/helixir/syllabus-review-service/internal/server/http"
	"github.com/helixir/syllabus-review-service/internal/temporal"
	"github.com/helixir/syllabus-review-service/internal/workflow"
)

// healthServiceName is the gRPC health service reported by this process.
const healthServiceName = "syllabusreview.v1.SyllabusReviewService"

// version is set at build time via -ldflags.
var version = "dev"

// jobBackend is the AI job API shared by the HTTP and Temporal backends.
type jobBackend interface {
	SubmitJob(ctx context.Context, kind domain.JobKind, payload interface{}) (string, error)
	GetJobStatus(ctx context.Context, jobID string) (*domain.AIJob, error)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Str("version", version).Msg("syllabus-review-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     version,
		SampleRate:  cfg.Tracing.SampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	metrics := observability.NewMetrics("syllabus_review")

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	if cfg.Database.MigrationAutoRun {
		if err := database.UpLocked(ctx, db, cfg.Database.MigrationPath, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	tx := repository.NewPgTransactor(db)
	checks := map[string]httpserver.HealthCheck{
		"database": db.Ping,
	}

	// AI job backend.
	var jobs jobBackend
	switch cfg.AIService.Backend {
	case config.AIBackendTemporal:
		tc, err := temporal.NewClient(temporal.ClientConfig{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			TaskQueue: cfg.Temporal.TaskQueue,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect to temporal: %w", err)
		}
		jobClient := temporal.NewJobClient(tc, cfg.Temporal.TaskQueue, logger)
		defer jobClient.Close()
		checks["temporal"] = jobClient.Health
		jobs = jobClient
		logger.Info().
			Str("host_port", cfg.Temporal.HostPort).
			Str("namespace", cfg.Temporal.Namespace).
			Msg("temporal job backend connected")
	default:
		jobs = aiservice.NewClient(httpclient.New(httpclient.Config{
			Name:         "ai_service",
			BaseURL:      cfg.AIService.BaseURL,
			Timeout:      cfg.AIService.Timeout,
			RateLimit:    cfg.AIService.RateLimit,
			BurstSize:    cfg.AIService.BurstSize,
			MaxRetries:   cfg.AIService.MaxRetries,
			RetryDelay:   cfg.AIService.RetryDelay,
			UserAgent:    "syllabus-review-service/" + version,
			APIKey:       cfg.AIService.APIKey,
			APIKeyHeader: "X-API-Key",
		}, httpclient.WithMetrics(metrics)), logger)
	}

	outcomes := domaindata.NewClient(httpclient.New(httpclient.Config{
		Name:       "domain_data",
		BaseURL:    cfg.DomainData.BaseURL,
		Timeout:    cfg.DomainData.Timeout,
		RateLimit:  cfg.DomainData.RateLimit,
		BurstSize:  cfg.DomainData.BurstSize,
		MaxRetries: cfg.DomainData.MaxRetries,
		UserAgent:  "syllabus-review-service/" + version,
	}, httpclient.WithMetrics(metrics)))

	orchestrator := polling.NewOrchestrator(jobs, logger, polling.WithMetrics(metrics))

	// Result cache.
	var store cache.Store
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer closeRedis(rdb, logger)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		store = cache.NewRedisStore(rdb, cfg.Cache.KeyPrefix)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis result cache connected")
	default:
		store = cache.NewMemoryStore()
	}
	store = cache.WithMetrics(store, metrics)

	// Lifecycle events.
	var publisher events.Publisher
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka, logger, metrics)
	} else {
		publisher = events.NewNopPublisher(logger)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()
	emitter := events.NewEmitter(publisher, logger)

	// Services.
	workflowSvc := workflow.NewService(tx, logger,
		workflow.WithEmitter(emitter),
		workflow.WithMetrics(metrics),
	)
	reviewSvc := review.NewService(review.Config{
		Tx:              tx,
		QueueGap:        cfg.Throttle.ReviewQueueGap,
		LecturerListGap: cfg.Throttle.LecturerListGap,
		Logger:          logger,
		Metrics:         metrics,
	})
	aggregator := consistency.NewAggregator(consistency.Config{
		Outcomes: outcomes,
		Jobs:     jobs,
		Awaiter:  orchestrator,
		Store:    store,
		Emitter:  emitter,
		Policy:   polling.PolicyFromConfig(cfg.Polling.CLOCheck, polling.CLOCheckPolicy()),
		Logger:   logger,
		Metrics:  metrics,
	})
	documentSvc := documents.NewService(documents.Config{
		Tx:            tx,
		Jobs:          jobs,
		Awaiter:       orchestrator,
		Store:         store,
		Emitter:       emitter,
		SummaryPolicy: polling.PolicyFromConfig(cfg.Polling.Summary, polling.SummaryPolicy()),
		IngestPolicy:  polling.PolicyFromConfig(cfg.Polling.Ingest, polling.IngestPolicy()),
		Logger:        logger,
		Metrics:       metrics,
	})

	auth := httpserver.NewAuthenticator(cfg.Auth)
	if cfg.Auth.AllowDevHeaders {
		logger.Warn().Msg("dev identity headers are enabled; do not use in production")
	}

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(httpCfg, httpserver.Deps{
		Workflow:    workflowSvc,
		Review:      reviewSvc,
		Consistency: aggregator,
		Documents:   documentSvc,
		Auth:        auth.Middleware,
		Checks:      checks,
	}, logger)

	// gRPC health server for orchestrator liveness checks.
	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 15 * time.Minute,
			Time:              5 * time.Minute,
			Timeout:           1 * time.Minute,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Minute,
			PermitWithoutStream: true,
		}),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	grpcAddr := cfg.Server.GRPCAddress()
	grpcListener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen on gRPC port: %w", err)
	}

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 3)

	go func() {
		logger.Info().Str("address", grpcAddr).Msg("gRPC health server starting")
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().
		Str("grpc_address", grpcAddr).
		Str("http_address", httpCfg.Address).
		Str("ai_backend", cfg.AIService.Backend).
		Str("cache_backend", cfg.Cache.Backend)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("syllabus-review-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down syllabus-review-service")
	healthServer.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Waits for background AI job completions as well.
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
		logger.Info().Msg("gRPC server stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn().Msg("gRPC server forced shutdown due to timeout")
		grpcServer.Stop()
	}

	logger.Info().Msg("syllabus-review-service shutdown complete")
	return nil
}

func closeRedis(rdb *goredis.Client, logger zerolog.Logger) {
	if err := rdb.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close redis client")
	}
}
