package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	mmkweb "github.com/target/mmk-ui-web"
	"github.com/target/mmk-ui-web/config"
	"github.com/target/mmk-ui-web/internal/domain/guard"
	httpx "github.com/target/mmk-ui-web/internal/http"
	"github.com/target/mmk-ui-web/internal/observability/statsd"
	"github.com/target/mmk-ui-web/internal/proxy"
	"github.com/target/mmk-ui-web/internal/service"
)

// devTemplateDir is read from disk in dev mode so template edits only need a restart.
const devTemplateDir = "web/templates"

// HTTPDeps contains what BuildHandler needs.
type HTTPDeps struct {
	Config      *config.AppConfig
	Auth        *service.AuthService
	RedisClient redis.UniversalClient
	Metrics     statsd.Sink
	// Templates overrides the template source. Defaults to the embedded templates,
	// or the working tree in dev mode.
	Templates fs.FS
	Logger    *slog.Logger
}

// BuildHandler wires the router: pages, auth endpoints, health probe and API proxy.
func BuildHandler(deps HTTPDeps) (http.Handler, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("auth service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	cookies := httpx.CookieConfig{Domain: cfg.HTTP.CookieDomain, TokenName: cfg.Auth.TokenCookie}

	tmpl, err := templateSource(deps.Templates, cfg.IsDev)
	if err != nil {
		return nil, err
	}
	renderer, err := httpx.NewTemplateRenderer(httpx.TemplateRendererConfig{
		TemplateFS: tmpl,
		Globals: map[string]any{
			"LoginPath":     cfg.Auth.Redirects.Login,
			"LogoutPath":    cfg.Auth.Redirects.Logout,
			"PasswordLogin": deps.Auth.SupportsPasswordLogin(),
			"OAuthLogin":    deps.Auth.SupportsOAuth(),
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build renderer: %w", err)
	}

	apiProxy, err := proxy.New(proxy.Options{
		Upstream: cfg.API.URL,
		Prefix:   cfg.API.Prefix,
		Token:    cookies.Token,
		Metrics:  deps.Metrics,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build proxy: %w", err)
	}

	opts := httpx.RouterOptions{
		Auth:     deps.Auth,
		Renderer: renderer,
		Guard:    BuildGuard(cfg.Auth.Redirects.Login),
		Cookies:  cookies,
		Redirects: httpx.Redirects{
			Home:   cfg.Auth.Redirects.Home,
			Login:  cfg.Auth.Redirects.Login,
			Logout: cfg.Auth.Redirects.Logout,
		},
		OAuthRedirectURL: cfg.Auth.OAuth.RedirectURL,
		Proxy:            apiProxy,
		ProxyPrefix:      cfg.API.Prefix,
		API:              APIClient(cfg, logger),
		AccountPath:      cfg.Auth.Endpoints.User,
		Health:           healthChecks(deps.RedisClient),
		Logger:           logger,
	}
	if cfg.HTTP.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", cfg.HTTP.CompressionLevel, "min_size", cfg.HTTP.CompressionMinSize)
		opts.Compression = &httpx.CompressionConfig{
			Level:   cfg.HTTP.CompressionLevel,
			MinSize: cfg.HTTP.CompressionMinSize,
		}
	}

	return httpx.NewRouter(opts), nil
}

// BuildGuard returns the route guard. The login page is always public, including a
// custom one.
func BuildGuard(loginPath string) *guard.Guard {
	public := guard.DefaultPublicPaths()
	if loginPath != "" && !slices.Contains(public, loginPath) {
		public = append(public, loginPath)
	}
	return guard.New(guard.Options{PublicPaths: public, LoginPath: loginPath})
}

func templateSource(override fs.FS, dev bool) (fs.FS, error) {
	if override != nil {
		return override, nil
	}
	if dev {
		if st, err := os.Stat(devTemplateDir); err == nil && st.IsDir() {
			return os.DirFS(devTemplateDir), nil
		}
	}
	tmpl, err := mmkweb.Templates()
	if err != nil {
		return nil, fmt.Errorf("load embedded templates: %w", err)
	}
	return tmpl, nil
}

func healthChecks(client redis.UniversalClient) map[string]httpx.HealthCheck {
	checks := map[string]httpx.HealthCheck{}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return checks
}

// NewServer builds the HTTP server.
func NewServer(addr string, handler http.Handler) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":3000"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// ServeConfig contains what Serve needs.
type ServeConfig struct {
	Server *http.Server
	// Listener is optional; Server.Addr is used when nil.
	Listener        net.Listener
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Serve runs the server until ctx is cancelled, then drains in-flight requests for
// at most ShutdownTimeout.
func Serve(ctx context.Context, cfg ServeConfig) error {
	if cfg.Server == nil {
		return errors.New("server is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Listener != nil {
			logger.InfoContext(ctx, "starting HTTP server", "addr", cfg.Listener.Addr().String())
			err = cfg.Server.Serve(cfg.Listener)
		} else {
			logger.InfoContext(ctx, "starting HTTP server", "addr", cfg.Server.Addr)
			err = cfg.Server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server", "timeout", timeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
