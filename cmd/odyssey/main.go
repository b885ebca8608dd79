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

	"github.com/odyssey-erp/odyssey-site/internal/admin"
	"github.com/odyssey-erp/odyssey-site/internal/app"
	"github.com/odyssey-erp/odyssey-site/internal/auth"
	"github.com/odyssey-erp/odyssey-site/internal/identity"
	"github.com/odyssey-erp/odyssey-site/internal/observability"
	"github.com/odyssey-erp/odyssey-site/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-site/internal/platform/db"
	"github.com/odyssey-erp/odyssey-site/internal/rbac"
	"github.com/odyssey-erp/odyssey-site/internal/session"
	"github.com/odyssey-erp/odyssey-site/internal/shared"
	"github.com/odyssey-erp/odyssey-site/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var identityHandler *identity.Handler
	if cfg.IdentityEmbedded {
		var pool *pgxpool.Pool
		identityHandler, pool, err = buildIdentity(ctx, cfg, logger, redisClient)
		if err != nil {
			logger.Error("start identity backend", slog.Any("error", err))
			os.Exit(1)
		}
		if pool != nil {
			defer pool.Close()
		}
	}

	clientManager := shared.NewClientManager(cfg.ClientCookieName, cfg.ClientCookieSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine(rbac.TemplateFuncs())
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	registry := session.NewRegistry(session.RedisFactory(
		redisClient,
		cfg.IdentityURL,
		cfg.SessionTTL,
		logger,
		auth.WithTimeout(cfg.AuthHTTPTimeout),
		auth.WithLogger(logger),
		auth.WithMetrics(metrics),
	), session.WithIdleTimeout(cfg.SessionIdleTimeout))

	rbacMiddleware := rbac.Middleware{
		Resolve:   session.ResolveSubject,
		Templates: templates,
		Logger:    logger,
		Metrics:   metrics,
		LoginPath: cfg.AdminLoginPath,
	}
	adminHandler := admin.NewHandler(logger, templates, csrfManager, registry, rbacMiddleware)
	permissionsHandler := rbac.NewPermissionsHandler(logger, templates, csrfManager, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Templates:          templates,
		ClientManager:      clientManager,
		CSRFManager:        csrfManager,
		AdminHandler:       adminHandler,
		PermissionsHandler: permissionsHandler,
		IdentityHandler:    identityHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("identity_url", cfg.IdentityURL),
			slog.Bool("identity_embedded", cfg.IdentityEmbedded),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// buildIdentity wires the embedded identity backend. The returned pool is nil when accounts live in memory.
func buildIdentity(ctx context.Context, cfg *app.Config, logger *slog.Logger, redisClient *redis.Client) (*identity.Handler, *pgxpool.Pool, error) {
	var (
		repo identity.Repository
		pool *pgxpool.Pool
	)
	if cfg.PGDSN != "" {
		var err error
		pool, err = db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, nil, err
		}
		pgRepo := identity.NewPGRepository(pool)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		repo = pgRepo
	} else {
		logger.Warn("PG_DSN not set, identity accounts are kept in memory")
		repo = identity.NewMemoryRepository()
	}

	if cfg.IdentitySeedPath != "" {
		created, err := identity.SeedFromFile(ctx, repo, cfg.IdentitySeedPath)
		if err != nil {
			logger.Warn("seed identity accounts", slog.String("path", cfg.IdentitySeedPath), slog.Any("error", err))
		} else {
			logger.Info("seeded identity accounts", slog.Int("created", created))
		}
	}

	service := identity.NewService(
		repo,
		identity.NewTokenIssuer(cfg.IdentityJWTSecret, cfg.IdentityAccessTTL),
		identity.NewRedisRefreshStore(redisClient, cfg.IdentityRefreshTTL),
	)
	return identity.NewHandler(logger, service, cfg.IdentityLoginLimit), pool, nil
}
