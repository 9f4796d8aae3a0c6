package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeJWT forwards credentials to the backend auth endpoints and keeps the returned token.
	AuthModeJWT AuthMode = "jwt"
	// AuthModeOAuth uses OAuth/OIDC for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "jwt", "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: jwt, oauth, mock)", v)
	}
}

// AuthEndpoints are backend paths relative to AuthConfig.BaseURL.
type AuthEndpoints struct {
	Login         string `env:"LOGIN"          envDefault:"/auth/login"`
	Logout        string `env:"LOGOUT"         envDefault:"auth/logout"`
	User          string `env:"USER"           envDefault:"/account"`
	Signup        string `env:"SIGNUP"         envDefault:"/auth/register"`
	ResetPassword string `env:"RESET_PASSWORD" envDefault:"/auth/reset-password"`
}

// AuthRedirects are the page paths the auth flows navigate to.
type AuthRedirects struct {
	// Home is where to go after a successful login or logout.
	Home string `env:"HOME" envDefault:"/"`
	// Login is where unauthenticated navigations are sent.
	Login string `env:"LOGIN" envDefault:"/login"`
	// Logout is the page that ends the session.
	Logout string `env:"LOGOUT" envDefault:"/logout"`
}

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:3000/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID string `env:"USER_ID" envDefault:"dev-user"`
	Email  string `env:"EMAIL"   envDefault:"dev@example.com"`
	Name   string `env:"NAME"    envDefault:"Dev User"`
	// SigningKey signs dev tokens. A random key is generated at startup when empty.
	SigningKey string `env:"SIGNING_KEY"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication flow is used.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"jwt"`

	// BaseURL is where the auth endpoints live. Relative values ("/api") are resolved
	// against HTTP.BaseURL, so server-side auth calls take the same proxied route as
	// calls made by the browser.
	BaseURL string `env:"AUTH_BASE_URL" envDefault:"/api"`

	Endpoints AuthEndpoints `envPrefix:"AUTH_ENDPOINT_"`
	Redirects AuthRedirects `envPrefix:"AUTH_REDIRECT_"`

	// TokenCookie is the cookie holding the bearer token.
	TokenCookie string `env:"AUTH_TOKEN_COOKIE" envDefault:"auth_token"`

	// TokenPath is a JMESPath expression locating the token in the login response.
	TokenPath string `env:"AUTH_TOKEN_PATH" envDefault:"token"`

	// UserPath is a JMESPath expression locating the user object in the user endpoint response.
	UserPath string `env:"AUTH_USER_PATH" envDefault:"@"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize normalises paths and fills blank values with defaults.
func (a *AuthConfig) Sanitize() {
	if a.Mode == "" {
		a.Mode = AuthModeJWT
	}
	a.BaseURL = strings.TrimSpace(a.BaseURL)
	if a.TokenCookie = strings.TrimSpace(a.TokenCookie); a.TokenCookie == "" {
		a.TokenCookie = "auth_token"
	}
	if a.TokenPath = strings.TrimSpace(a.TokenPath); a.TokenPath == "" {
		a.TokenPath = "token"
	}
	if a.UserPath = strings.TrimSpace(a.UserPath); a.UserPath == "" {
		a.UserPath = "@"
	}
	a.Redirects.Home = pagePath(a.Redirects.Home, "/")
	a.Redirects.Login = pagePath(a.Redirects.Login, "/login")
	a.Redirects.Logout = pagePath(a.Redirects.Logout, "/logout")
}

// pagePath ensures a redirect target is a same-origin absolute path.
func pagePath(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.Contains(v, "://") || strings.HasPrefix(v, "//") {
		return def
	}
	if !strings.HasPrefix(v, "/") {
		return "/" + v
	}
	return v
}
