package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/AdriBarda/url-shortener/internal/config"
	"github.com/AdriBarda/url-shortener/internal/http/handler"
	"github.com/AdriBarda/url-shortener/internal/http/middleware"
	"github.com/AdriBarda/url-shortener/internal/identity"
	"github.com/AdriBarda/url-shortener/internal/observability"
	"github.com/AdriBarda/url-shortener/internal/repository"
	"github.com/AdriBarda/url-shortener/internal/security"
	"github.com/AdriBarda/url-shortener/internal/service"
)

// App holds everything main needs to run and stop the service.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Server *http.Server

	pool        *pgxpool.Pool
	redisClient redis.UniversalClient
	coordinator *service.RefreshCoordinator
	redirectSvc *service.RedirectService
}

type redisPinger struct {
	client redis.UniversalClient
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	cipher, err := security.NewTokenCipher(cfg.SessionEncKey)
	if err != nil {
		return nil, err
	}

	sessions := repository.NewSessionStore(redisClient)
	urlRepo := repository.NewURLRepository(pool)
	clickRepo := repository.NewClickRepository(pool)
	urlCache := repository.NewURLCache(redisClient)
	provider := identity.NewClient(cfg.ProviderURL, cfg.ProviderAnonKey)

	policy := service.SessionPolicy{
		StoreTTL:        cfg.SessionTTL,
		HardCapAge:      cfg.SessionMaxAge,
		RefreshWindow:   cfg.RefreshWindow,
		RefreshGrace:    cfg.RefreshGrace,
		RefreshCooldown: cfg.RefreshCooldown,
		RefreshLockTTL:  cfg.RefreshLockTTL,
	}

	coordinator := service.NewRefreshCoordinator(sessions, cipher, provider, policy, logger)
	authSvc := service.NewAuthService(sessions, cipher, provider, coordinator, policy, cfg.BaseShortURL, logger)
	urlSvc := service.NewURLService(urlRepo, cfg.BaseShortURL)
	redirectSvc := service.NewRedirectService(urlRepo, clickRepo, urlCache, logger)

	cookies := security.NewCookieManager(cfg.IsProduction())
	guard := middleware.NewSessionAuth(authSvc, []byte(cfg.ProviderJWTSecret), cfg.ProviderJWTAud, logger)

	router := handler.NewRouter(handler.RouterDeps{
		Auth:     handler.NewAuthHandler(authSvc, cookies, cfg.SessionTTL, cfg.WebAppURL, logger),
		URLs:     handler.NewURLHandler(urlSvc, redirectSvc, logger),
		Redirect: handler.NewRedirectHandler(redirectSvc, logger),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": pool,
			"redis":    redisPinger{client: redisClient},
		}),
		Guard:               guard,
		Limiter:             middleware.NewRedisFixedWindowLimiter(redisClient, "rl"),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		AuthRateLimitPerMin: cfg.AuthRateLimitPerMin,
		APIRateLimitPerMin:  cfg.APIRateLimitPerMin,
		Logger:              logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		Server:      server,
		pool:        pool,
		redisClient: redisClient,
		coordinator: coordinator,
		redirectSvc: redirectSvc,
	}, nil
}

// Shutdown stops accepting requests, drains in-flight background work, then
// closes the connection pools.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Server.Shutdown(ctx)

	a.coordinator.Wait()
	a.redirectSvc.Wait()

	a.pool.Close()
	if cerr := a.redisClient.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
