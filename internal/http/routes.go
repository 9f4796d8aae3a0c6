package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/target/mmk-ui-web/internal/apiclient"
	"github.com/target/mmk-ui-web/internal/domain/guard"
)

// RouterOptions holds everything the HTTP router needs.
type RouterOptions struct {
	Auth     AuthService
	Renderer *TemplateRenderer
	Guard    *guard.Guard
	Cookies  CookieConfig
	CSRF     CSRFConfig

	Redirects        Redirects
	OAuthRedirectURL string

	// Proxy serves ProxyPrefix. It is dispatched ahead of the mux so paths are
	// forwarded uncleaned, and it skips the page middleware. Only ProxyCSRF runs,
	// for unsafe calls authenticated by the token cookie.
	Proxy       http.Handler
	ProxyPrefix string

	// API and AccountPath feed the home page. Both optional.
	API         *apiclient.Client
	AccountPath string

	Health map[string]HealthCheck

	// Compression enables gzip for pages when non-nil.
	Compression *CompressionConfig

	Logger *slog.Logger
}

// NewRouter wires the pages, auth endpoints, health probe and API proxy.
//
// Pages run behind Compression (optional), CSRFProtection, SessionState and
// RouteGuard, in that order. /auth/status and the redirect-based login endpoints
// resolve state themselves and are reachable without a session.
func NewRouter(opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	redirects := opts.Redirects.withDefaults()
	opts.CSRF.CookieDomain = opts.Cookies.Domain

	authHandlers := &AuthHandlers{
		Svc:              opts.Auth,
		Renderer:         opts.Renderer,
		Cookies:          opts.Cookies,
		Redirects:        redirects,
		OAuthRedirectURL: opts.OAuthRedirectURL,
		Logger:           logger,
	}
	home := &HomeHandler{
		API:         opts.API,
		AccountPath: opts.AccountPath,
		Renderer:    opts.Renderer,
		Cookies:     opts.Cookies,
		Logger:      logger,
	}

	pages := http.NewServeMux()
	registerPageRoutes(pages, authHandlers, home, redirects)
	pages.Handle("/", NotFound(opts.Renderer))

	pageMiddleware := []func(http.Handler) http.Handler{
		CSRFProtection(opts.CSRF),
		SessionState(opts.Auth, opts.Cookies, logger),
		RouteGuard(opts.Guard),
	}
	if opts.Compression != nil {
		cc := *opts.Compression
		if cc.Logger == nil {
			cc.Logger = logger
		}
		pageMiddleware = append([]func(http.Handler) http.Handler{Compression(cc)}, pageMiddleware...)
	}

	mux := http.NewServeMux()
	health := HealthHandler(opts.Health)
	mux.Handle("GET "+PathHealth, health)
	mux.Handle("HEAD "+PathHealth, health)
	registerAuthRoutes(mux, authHandlers, opts.Auth.SupportsOAuth())
	mux.Handle("/", Chain(pages, pageMiddleware...))

	var root http.Handler = mux
	if opts.Proxy != nil {
		prefix := opts.ProxyPrefix
		if prefix == "" {
			prefix = apiclient.DefaultBasePath
		}
		root = withProxy(mux, prefix, Chain(opts.Proxy, ProxyCSRF(opts.CSRF, opts.Cookies)))
	}

	return Chain(root, Recover(logger), Logging(logger))
}

// withProxy sends every path under prefix to api before ServeMux sees it.
// ServeMux would 301 "//" and ".." segments to the cleaned path.
func withProxy(mux http.Handler, prefix string, api http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, prefix) {
			api.ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func registerPageRoutes(mux *http.ServeMux, h *AuthHandlers, home http.Handler, r Redirects) {
	mux.Handle("GET /{$}", home)
	mux.HandleFunc("GET "+r.Login, h.LoginPage)
	mux.HandleFunc("POST "+r.Login, h.LoginSubmit)
	mux.HandleFunc("GET "+PathRegister, h.RegisterPage)
	mux.HandleFunc("POST "+PathRegister, h.RegisterSubmit)
	mux.HandleFunc("GET "+PathResetPassword, h.ResetPasswordPage)
	mux.HandleFunc("POST "+PathResetPassword, h.ResetPasswordSubmit)
	mux.HandleFunc("GET "+r.Logout, h.Logout)
	mux.HandleFunc("POST "+r.Logout, h.Logout)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, oauth bool) {
	mux.HandleFunc("GET "+PathAuthStatus, h.Status)
	if oauth {
		mux.HandleFunc("GET "+PathOAuthLogin, h.OAuthLogin)
		mux.HandleFunc("GET "+PathOAuthCallback, h.OAuthCallback)
	}
}
