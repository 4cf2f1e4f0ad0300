package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/virelia/tenantgate/internal/auth"
	"github.com/virelia/tenantgate/internal/auth/apikey"
	"github.com/virelia/tenantgate/internal/auth/firebase"
	"github.com/virelia/tenantgate/internal/config"
	"github.com/virelia/tenantgate/internal/observability"
	"github.com/virelia/tenantgate/internal/server"
	"github.com/virelia/tenantgate/internal/storage/postgres"
	"github.com/virelia/tenantgate/internal/tenant"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	userRepo := postgres.NewUserRepository(pool)
	tenantRepo := postgres.NewTenantRepository(pool)
	apiKeyRepo := postgres.NewAPIKeyRepository(pool)

	oracle, err := firebase.NewTokenOracle(ctx, firebase.OracleConfig{
		Issuer:   cfg.Auth.Firebase.Issuer,
		Audience: cfg.Auth.Firebase.Audience,
		JWKSURL:  cfg.Auth.Firebase.JWKSURL,
		AdminURL: cfg.Auth.Firebase.AdminURL,
	}, logger)
	if err != nil {
		return fmt.Errorf("init token oracle: %w", err)
	}

	registry, err := auth.NewRegistry(
		firebase.New(oracle, firebase.WithLogger(logger)),
		apikey.NewProvider(apiKeyRepo, apikey.WithLogger(logger)),
	)
	if err != nil {
		return fmt.Errorf("init provider registry: %w", err)
	}
	service := auth.NewService(registry,
		auth.WithServiceLogger(logger),
		auth.WithDefaultProvider(cfg.Auth.DefaultProvider),
	)

	cache, err := newMembershipCache(cfg, logger)
	if err != nil {
		return err
	}
	checker := tenant.NewChecker(userRepo, tenantRepo, cache,
		tenant.WithCheckerLogger(logger),
		tenant.WithCheckerMetrics(tenant.NewMetrics("")),
	)

	srv := server.New(server.Deps{
		Config:      cfg,
		Logger:      logger,
		Auth:        service,
		AuthMetrics: auth.NewMetrics(""),
		Checker:     checker,
		Users:       userRepo,
		Tenants:     tenantRepo,
		APIKeys:     apiKeyRepo,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func newMembershipCache(cfg *config.Config, logger observability.Logger) (tenant.MembershipCache, error) {
	switch cfg.Tenant.CacheBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Tenant.Redis.Addr,
			Password: cfg.Tenant.Redis.Password,
			DB:       cfg.Tenant.Redis.DB,
		})
		return tenant.NewRedisCache(client, cfg.Tenant.CacheTTL.Duration(),
			tenant.WithRedisLogger(logger)), nil
	case "memory", "":
		return tenant.NewMemoryCache(cfg.Tenant.CacheTTL.Duration()), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Tenant.CacheBackend)
	}
}
