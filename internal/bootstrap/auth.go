package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-ui-web/config"
	"github.com/target/mmk-ui-web/internal/adapters/backendauth"
	"github.com/target/mmk-ui-web/internal/adapters/devauth"
	"github.com/target/mmk-ui-web/internal/adapters/memory"
	"github.com/target/mmk-ui-web/internal/adapters/oidc"
	redisadapter "github.com/target/mmk-ui-web/internal/adapters/redis"
	"github.com/target/mmk-ui-web/internal/apiclient"
	"github.com/target/mmk-ui-web/internal/observability/statsd"
	"github.com/target/mmk-ui-web/internal/ports"
	"github.com/target/mmk-ui-web/internal/service"
)

const identityCachePrefix = "mmk-web:identity:"

// AuthDeps contains what BuildAuthService needs.
type AuthDeps struct {
	Config *config.AppConfig
	// RedisClient backs the identity cache when set; otherwise an in-process cache is used.
	RedisClient redis.UniversalClient
	Metrics     statsd.Sink
	Logger      *slog.Logger
}

// BuildAuthService creates the auth service for the configured auth mode.
func BuildAuthService(deps AuthDeps) (*service.AuthService, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	opts := service.AuthServiceOptions{
		Cache:    buildIdentityCache(cfg.Cache, deps.RedisClient),
		CacheTTL: cfg.Cache.IdentityTTL,
		Metrics:  deps.Metrics,
		Logger:   logger,
	}

	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		prov, err := devauth.NewProvider(devauth.Config{
			UserID:     cfg.Auth.DevAuth.UserID,
			Email:      cfg.Auth.DevAuth.Email,
			Name:       cfg.Auth.DevAuth.Name,
			SigningKey: cfg.Auth.DevAuth.SigningKey,
		})
		if err != nil {
			return nil, fmt.Errorf("build dev auth: %w", err)
		}
		logger.Warn("dev auth enabled; any email signs in", "user_id", cfg.Auth.DevAuth.UserID)
		opts.Authenticator, opts.Resolver, opts.Provider = prov, prov, prov

	case config.AuthModeOAuth:
		prov, err := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:     cfg.Auth.OAuth.ClientID,
			ClientSecret: cfg.Auth.OAuth.ClientSecret,
			RedirectURL:  cfg.Auth.OAuth.RedirectURL,
			Scope:        cfg.Auth.OAuth.Scope,
			DiscoveryURL: cfg.Auth.OAuth.DiscoveryURL,
		})
		if err != nil {
			return nil, fmt.Errorf("build oauth provider: %w", err)
		}
		opts.Resolver, opts.Provider = prov, prov

	default:
		backend, err := backendauth.New(backendauth.Config{
			Client: AuthClient(cfg, logger),
			Endpoints: backendauth.Endpoints{
				Login:         cfg.Auth.Endpoints.Login,
				Logout:        cfg.Auth.Endpoints.Logout,
				User:          cfg.Auth.Endpoints.User,
				Signup:        cfg.Auth.Endpoints.Signup,
				ResetPassword: cfg.Auth.Endpoints.ResetPassword,
			},
			TokenPath: cfg.Auth.TokenPath,
			UserPath:  cfg.Auth.UserPath,
		})
		if err != nil {
			return nil, fmt.Errorf("build backend auth: %w", err)
		}
		opts.Authenticator = backend
		if backend.HasUserEndpoint() {
			opts.Resolver = backend
		}
	}

	return service.NewAuthService(opts), nil
}

// AuthClient builds the API client the auth endpoints are called through. A relative
// AUTH_BASE_URL is resolved against APP_BASE_URL, so server-side auth calls take the
// same proxied route as browser calls.
func AuthClient(cfg *config.AppConfig, logger *slog.Logger) *apiclient.Client {
	base, path := cfg.HTTP.BaseURL, cfg.Auth.BaseURL
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		base, path = path, "/"
	}
	return apiclient.New(apiclient.Options{
		BaseURL:   base,
		BasePath:  path,
		LoginPath: cfg.Auth.Redirects.Login,
		Logger:    logger,
	})
}

// APIClient builds the client page handlers use for backend data.
func APIClient(cfg *config.AppConfig, logger *slog.Logger) *apiclient.Client {
	return apiclient.New(apiclient.Options{
		BaseURL:   cfg.HTTP.BaseURL,
		BasePath:  cfg.API.Prefix,
		LoginPath: cfg.Auth.Redirects.Login,
		Logger:    logger,
	})
}

//nolint:ireturn // callers only need the port.
func buildIdentityCache(cfg config.CacheConfig, client redis.UniversalClient) ports.IdentityCache {
	if client != nil {
		return redisadapter.NewIdentityCacheWithPrefix(client, identityCachePrefix)
	}
	return memory.NewIdentityCache(memory.Config{Capacity: cfg.LocalCapacity})
}
