package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"storefront-catalog/internal/api"
	"storefront-catalog/internal/auth"
	"storefront-catalog/internal/catalog"
	"storefront-catalog/internal/config"
	"storefront-catalog/internal/imagestore"
	"storefront-catalog/internal/imaging"
	"storefront-catalog/internal/logging"
	"storefront-catalog/internal/metrics"
	"storefront-catalog/internal/store"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("error loading configuration")
	}
	logger := logging.NewLogger(cfg)
	zlog.Logger = logger
	if envErr != nil {
		logger.Info().Msg(".env file not found, relying on system environment variables")
	}
	logger.Info().Str("log_level", cfg.LogLevel).Msg("starting service")

	// --- Database Connection ---
	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database connection")
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLife)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := store.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply migrations")
	}

	dbStore, err := store.NewPostgresStore(db, logger.With().Str("component", "store").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize product store")
	}
	logger.Info().Msg("database connection established")

	// --- Domain Services ---
	gateway, err := newImageGateway(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize image store")
	}
	logger.Info().Str("backend", cfg.ImageStore.Backend).Str("folder", cfg.ImageStore.Folder).Msg("image store configured")

	normalizer := imaging.NewNormalizer(imaging.Options{
		MaxWidth:  cfg.Images.MaxWidth,
		MaxHeight: cfg.Images.MaxHeight,
		MaxBytes:  cfg.Images.MaxBytes,
	})
	catalogService := catalog.NewService(dbStore, gateway, normalizer, logger.With().Str("component", "catalog").Logger())

	sessions := auth.NewSessions(auth.Options{
		Password:   cfg.Admin.Password,
		Secret:     cfg.Admin.SessionSecret,
		TTL:        cfg.Admin.SessionTTL,
		CookieName: cfg.Admin.CookieName,
		Secure:     cfg.IsProduction(),
	})

	// --- Setup & Start HTTP Server ---
	httpAPIHandler := api.NewHTTPHandler(catalogService, sessions, dbStore, cfg.HttpServer.MaxUploadBytes)
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, logger, cfg.HttpServer.TimeoutWrite)
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		logger.Info().Str("port", cfg.HttpServer.Port).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server ListenAndServe error")
		}
		logger.Info().Msg("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer, healthServer := setupGRPCServer(logger)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		logger.Fatal().Err(err).Str("port", cfg.GrpcServer.Port).Msg("failed to listen for gRPC")
	}

	go func() {
		logger.Info().Str("port", cfg.GrpcServer.Port).Msg("gRPC health server listening")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Fatal().Err(err).Msg("gRPC server Serve error")
		}
		logger.Info().Msg("gRPC server has stopped")
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(logger, httpServer, grpcServer, healthServer, dbStore, shutdownComplete)

	<-shutdownComplete
	logger.Info().Msg("service shutdown sequence finished")
}

func newImageGateway(cfg *config.Config) (imagestore.Gateway, error) {
	is := cfg.ImageStore
	switch is.Backend {
	case config.BackendCloudinary:
		return imagestore.NewCloudinary(is.Cloudinary.CloudName, is.Cloudinary.APIKey, is.Cloudinary.APISecret, is.Folder)
	case config.BackendMinio:
		return imagestore.NewMinio(is.Minio.Endpoint, is.Minio.AccessKey, is.Minio.SecretKey, is.Minio.Bucket, is.Folder, is.Minio.UseSSL)
	}
	return nil, fmt.Errorf("unknown image store backend %q", is.Backend)
}

func setupBaseMiddleware(router *chi.Mux, logger zerolog.Logger, timeout time.Duration) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(api.RequestLogger(logger))
	router.Use(metrics.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(timeout))
}

func setupGRPCServer(logger zerolog.Logger) (*grpc.Server, *health.Server) {
	s := grpc.NewServer()

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(s, healthServer)

	// Enable gRPC server reflection (useful for tools like grpcurl).
	reflection.Register(s)
	logger.Debug().Msg("gRPC health and reflection services registered")

	return s, healthServer
}

func waitForShutdown(
	logger zerolog.Logger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	healthServer *health.Server,
	dbStore *store.PostgresStore,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	receivedSignal := <-sigChan
	logger.Info().Str("signal", receivedSignal.String()).Msg("starting graceful shutdown")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Probes see NOT_SERVING while in-flight requests drain.
	healthServer.Shutdown()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server graceful shutdown failed")
	} else {
		logger.Info().Msg("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		logger.Info().Msg("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		logger.Warn().Err(shutdownCtx.Err()).Msg("gRPC server graceful shutdown timed out, forcing stop")
		grpcServer.Stop()
	}

	if err := dbStore.Close(); err != nil {
		logger.Warn().Err(err).Msg("error closing database connection")
	}

	logger.Info().Msg("graceful shutdown sequence completed")
}
