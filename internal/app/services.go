package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/qbportal/internal/credentials"
	"github.com/odyssey-erp/qbportal/internal/credentials/migrations"
	"github.com/odyssey-erp/qbportal/internal/observability"
	"github.com/odyssey-erp/qbportal/internal/overview"
	"github.com/odyssey-erp/qbportal/internal/platform/cache"
	"github.com/odyssey-erp/qbportal/internal/platform/db"
	"github.com/odyssey-erp/qbportal/internal/qbo"
	"github.com/odyssey-erp/qbportal/internal/tokens"
)

// Services are the long-lived domain components shared by the portal and
// the worker.
type Services struct {
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Credentials credentials.Store
	Tokens      *tokens.Manager
	Overview    *overview.Service
	Cache       *overview.Cache
}

// BuildServices connects to Postgres (unless the memory store is selected)
// and Redis, runs migrations and wires the token manager and aggregator.
func BuildServices(ctx context.Context, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) (*Services, error) {
	svc := &Services{}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, err
	}
	svc.Redis = redisClient

	store, err := svc.credentialStore(ctx, cfg, logger)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.Credentials = store

	httpClient := &http.Client{Timeout: cfg.QBOUpstreamTimeout}
	svc.Tokens = tokens.NewManager(tokens.ManagerConfig{
		Store: store,
		Grants: tokens.NewOAuthClient(tokens.OAuthConfig{
			ClientID:     cfg.QBOClientID,
			ClientSecret: cfg.QBOClientSecret,
			RedirectURI:  cfg.QBORedirectURI,
			Scopes:       cfg.QBOScopes,
			Endpoint:     tokens.IntuitEndpoint,
			HTTPClient:   httpClient,
		}),
		States:         tokens.NewRedisStateStore(redisClient),
		Logger:         logger,
		Metrics:        metrics,
		RefreshMargin:  cfg.QBORefreshMargin,
		RefreshTimeout: cfg.QBOUpstreamTimeout,
	})

	svc.Cache = overview.NewCache(redisClient, cfg.OverviewCacheTTL)
	svc.Tokens.OnConnect(svc.Cache.Bump)
	svc.Overview = overview.NewService(overview.Config{
		Credentials: svc.Tokens,
		API: qbo.NewClient(qbo.Config{
			Environment:  cfg.QBOEnvironment,
			Timeout:      cfg.QBOUpstreamTimeout,
			MinorVersion: cfg.QBOMinorVersion,
			Metrics:      metrics,
			Logger:       logger,
		}),
		Cache:  svc.Cache,
		Logger: logger,
	})
	return svc, nil
}

func (s *Services) credentialStore(ctx context.Context, cfg *Config, logger *slog.Logger) (credentials.Store, error) {
	if cfg.CredentialStore == StoreMemory {
		logger.Warn("using in-memory credential store; connections are lost on restart")
		return credentials.NewMemoryStore(), nil
	}

	var cipher *credentials.Cipher
	if cfg.TokenEncKey != "" {
		key, err := credentials.ParseKey(cfg.TokenEncKey)
		if err != nil {
			return nil, fmt.Errorf("TOKEN_ENC_KEY: %w", err)
		}
		if cipher, err = credentials.NewCipher(key); err != nil {
			return nil, err
		}
	} else if cfg.IsProduction() {
		return nil, errors.New("TOKEN_ENC_KEY is required in production")
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	s.Pool = pool
	if err := db.Migrate(ctx, pool, migrations.FS); err != nil {
		return nil, err
	}
	return credentials.NewPostgresStore(pool, cipher), nil
}

// Readiness returns the dependency probes for /readyz.
func (s *Services) Readiness() []ReadinessCheck {
	checks := []ReadinessCheck{{
		Name:  "redis",
		Check: func(ctx context.Context) error { return cache.Ping(ctx, s.Redis) },
	}}
	if s.Pool != nil {
		checks = append(checks, ReadinessCheck{Name: "postgres", Check: s.Pool.Ping})
	}
	return checks
}

// Close releases the connections.
func (s *Services) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
}
