package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/research-hub/internal/apperr"
	"github.com/ayush/research-hub/internal/auth"
	"github.com/ayush/research-hub/internal/config"
	"github.com/ayush/research-hub/internal/logging"
	"github.com/ayush/research-hub/internal/middleware"
	"github.com/ayush/research-hub/internal/observability"
	"github.com/ayush/research-hub/internal/ratelimit"
	"github.com/ayush/research-hub/internal/research"
	"github.com/ayush/research-hub/internal/server"
	"github.com/ayush/research-hub/internal/social"
	"github.com/ayush/research-hub/internal/store"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Resolve(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			logger := logging.Setup("research-hub", version, cfg.LogFormat, os.Stderr)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := runServe(ctx, cfg, logger); err != nil {
				apperr.Log(logger, "server stopped", err)
				return err
			}
			return nil
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// ── PostgreSQL ────────────────────────────────────────────
	if cfg.AutoMigrate {
		if err := migrateUp(cfg.PostgresDSN); err != nil {
			return err
		}
		logger.Info("schema up to date")
	}
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return oops.In("postgres").Wrap(err)
	}
	defer pgPool.Close()
	users := store.NewPostgresStore(pgPool)
	if err := users.Ping(ctx); err != nil {
		return err
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return oops.In("mongo").Wrap(err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()
	docs := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))
	if err := docs.EnsureIndexes(ctx); err != nil {
		return err
	}

	// ── Redis ────────────────────────────────────────────────
	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb, err = store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	// ── MinIO ────────────────────────────────────────────────
	files, err := store.NewMinioStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		return err
	}

	// ── Auth ─────────────────────────────────────────────────
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager(cfg.JWTSecret, time.Now)

	var revoked auth.RevocationStore = auth.NewMemoryRevocationStore(time.Now)
	if cfg.RevocationBackend == config.BackendRedis {
		revoked = auth.NewRedisRevocationStore(rdb, time.Now)
	}
	counters := ratelimit.MemoryCounters()
	if cfg.RateLimitBackend == config.BackendRedis {
		counters = ratelimit.RedisCounters(rdb)
	}
	logger.Info("backends selected", "revocation", cfg.RevocationBackend, "ratelimit", cfg.RateLimitBackend)

	svc := auth.NewService(users, auth.NewBcryptHasher(auth.BcryptCost), tokens, revoked, metrics, logger)

	// ── Router ───────────────────────────────────────────────
	handler := server.NewRouter(server.Deps{
		Auth:     auth.NewHandler(svc, logger),
		Research: research.NewHandler(docs, files, research.NewAIClient(cfg.AIServiceURL, cfg.AIAPIKey, cfg.AIModel), logger),
		Social:   social.NewHandler(docs, users, logger),
		RequireAuth: middleware.RequireAuth(tokens, revoked,
			middleware.WithUniformStatus(cfg.UniformAuthStatus),
			middleware.WithLogger(logger),
			middleware.WithEvents(metrics),
		),
		Limiters:    ratelimit.NewLimiters(counters, logger),
		Metrics:     metrics,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,

		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- oops.In("http").Wrap(err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return oops.In("http").Wrap(err)
	}
	return nil
}
