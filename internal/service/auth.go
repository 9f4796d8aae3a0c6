package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
	apperrors "github.com/target/mmk-ui-web/internal/errors"
	"github.com/target/mmk-ui-web/internal/observability/metrics"
	"github.com/target/mmk-ui-web/internal/observability/statsd"
	"github.com/target/mmk-ui-web/internal/ports"
)

// DefaultIdentityTTL bounds how long a resolved identity is trusted without asking the backend again.
const DefaultIdentityTTL = 5 * time.Minute

// identityLookupTimeout bounds a shared identity lookup. The lookup is detached
// from the caller that started it so its cancellation cannot fail the others.
const identityLookupTimeout = 10 * time.Second

// Resolution sources reported in metrics.
const (
	sourceNone    = "none"
	sourceExpired = "expired"
	sourceToken   = "token"
	sourceCache   = "cache"
	sourceBackend = "backend"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	// Authenticator runs the credential flows. Optional: without it only the
	// redirect-based flow is available.
	Authenticator ports.Authenticator
	// Resolver maps tokens to identities. Optional: without it a present,
	// unexpired token alone counts as logged in.
	Resolver ports.IdentityResolver
	// Provider enables the redirect-based login flow. Optional.
	Provider ports.AuthProvider
	// Cache stores resolved identities. Optional.
	Cache    ports.IdentityCache
	CacheTTL time.Duration
	Metrics  statsd.Sink
	Logger   *slog.Logger
	Now      func() time.Time
}

// AuthService owns the per-request auth state and every credential flow.
type AuthService struct {
	authenticator ports.Authenticator
	resolver      ports.IdentityResolver
	provider      ports.AuthProvider
	cache         ports.IdentityCache
	cacheTTL      time.Duration
	metrics       statsd.Sink
	logger        *slog.Logger
	now           func() time.Time

	lookups singleflight.Group
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultIdentityTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		authenticator: opts.Authenticator,
		resolver:      opts.Resolver,
		provider:      opts.Provider,
		cache:         opts.Cache,
		cacheTTL:      ttl,
		metrics:       opts.Metrics,
		logger:        logger.With("component", "auth"),
		now:           now,
	}
}

// SupportsPasswordLogin reports whether credential flows are available.
func (s *AuthService) SupportsPasswordLogin() bool { return s.authenticator != nil }

// Login forwards credentials to the authenticator.
func (s *AuthService) Login(ctx context.Context, creds domainauth.Credentials) (ports.LoginResult, error) {
	if s.authenticator == nil {
		return ports.LoginResult{}, errPasswordLoginUnavailable()
	}
	res, err := s.authenticator.Login(ctx, creds)
	if err != nil {
		return ports.LoginResult{}, fmt.Errorf("login: %w", err)
	}
	s.remember(ctx, res)
	return res, nil
}

// Signup registers a user. An empty Token in the result means the user must log in next.
func (s *AuthService) Signup(ctx context.Context, reg domainauth.Registration) (ports.LoginResult, error) {
	if s.authenticator == nil {
		return ports.LoginResult{}, errPasswordLoginUnavailable()
	}
	res, err := s.authenticator.Signup(ctx, reg)
	if err != nil {
		return ports.LoginResult{}, fmt.Errorf("signup: %w", err)
	}
	s.remember(ctx, res)
	return res, nil
}

// RequestPasswordReset asks the backend to start a password reset.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if s.authenticator == nil {
		return errPasswordLoginUnavailable()
	}
	if err := s.authenticator.RequestPasswordReset(ctx, email); err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	return nil
}

// Logout forgets the cached identity and revokes token at the backend.
// The cache entry is dropped even when the backend call fails.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey(token)); err != nil {
			s.logger.WarnContext(ctx, "identity cache delete failed", "error", err)
		}
	}
	if s.authenticator == nil {
		return nil
	}
	if err := s.authenticator.Logout(ctx, token); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// State resolves the auth state for token.
//
// An empty or expired token is anonymous. A token the backend rejects with 401 is
// anonymous. When the backend cannot be reached the token is trusted as-is and the
// error is returned alongside the logged-in state; the next API call will surface
// a 401 if the token turns out to be bad.
func (s *AuthService) State(ctx context.Context, token string) (domainauth.State, error) {
	if token == "" {
		s.record(sourceNone, false, nil)
		return domainauth.Anonymous(), nil
	}

	expiry, expired := s.tokenExpiry(token)
	if expired {
		s.record(sourceExpired, false, nil)
		return domainauth.Anonymous(), nil
	}

	if s.resolver == nil {
		s.record(sourceToken, true, nil)
		return domainauth.Authenticated(token, nil), nil
	}

	key := cacheKey(token)
	if id, ok := s.cached(ctx, key); ok {
		s.record(sourceCache, true, nil)
		return domainauth.Authenticated(token, &id), nil
	}

	v, err, _ := s.lookups.Do(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), identityLookupTimeout)
		defer cancel()

		id, resolveErr := s.resolver.Resolve(lookupCtx, token)
		if resolveErr != nil {
			return nil, resolveErr
		}
		if id.ExpiresAt.IsZero() && !expiry.IsZero() {
			id.ExpiresAt = expiry
		}
		s.store(lookupCtx, key, id)
		return id, nil
	})
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			s.record(sourceBackend, false, nil)
			return domainauth.Anonymous(), nil
		}
		if apperrors.IsNotFound(err) {
			s.record(sourceToken, true, nil)
			return domainauth.Authenticated(token, nil), nil
		}
		s.record(sourceBackend, true, err)
		return domainauth.Authenticated(token, nil), fmt.Errorf("resolve identity: %w", err)
	}

	id := v.(domainauth.Identity)
	s.record(sourceBackend, true, nil)
	return domainauth.Authenticated(token, &id), nil
}

// SupportsOAuth reports whether a redirect-based provider is configured.
func (s *AuthService) SupportsOAuth() bool { return s.provider != nil }

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginOAuth initiates the redirect-based flow and returns the provider URL with state and nonce.
func (s *AuthService) BeginOAuth(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if s.provider == nil {
		return nil, apperrors.NotFound("oauth login is not configured")
	}
	if redirectURL == "" {
		return nil, apperrors.Validation("redirect URL is required")
	}

	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}
	return &BeginLoginResult{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

// CompleteOAuth exchanges the authorization code for a bearer token.
func (s *AuthService) CompleteOAuth(ctx context.Context, input CompleteLoginInput) (ports.LoginResult, error) {
	if s.provider == nil {
		return ports.LoginResult{}, apperrors.NotFound("oauth login is not configured")
	}
	if input.Code == "" {
		return ports.LoginResult{}, apperrors.Validation("authorization code is required")
	}
	if input.State == "" {
		return ports.LoginResult{}, apperrors.Validation("state parameter is required")
	}
	if input.Nonce == "" {
		return ports.LoginResult{}, apperrors.Validation("nonce parameter is required")
	}

	res, err := s.provider.Exchange(ctx, ports.ExchangeInput{Code: input.Code, State: input.State, Nonce: input.Nonce})
	if err != nil {
		return ports.LoginResult{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	if res.Token == "" {
		return ports.LoginResult{}, apperrors.Wrap(errors.New("empty token"), apperrors.ErrCodeUpstream, "exchange authorization code")
	}
	s.remember(ctx, res)
	return res, nil
}

// tokenExpiry reads "exp" from JWT-shaped tokens without verifying them. Verification
// is the backend's job; this only spares a round trip for tokens that are certainly dead.
func (s *AuthService) tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	exp := claims.ExpiresAt.Time
	return exp, !s.now().Before(exp)
}

func (s *AuthService) remember(ctx context.Context, res ports.LoginResult) {
	if res.Token == "" || res.Identity == nil {
		return
	}
	s.store(ctx, cacheKey(res.Token), *res.Identity)
}

func (s *AuthService) cached(ctx context.Context, key string) (domainauth.Identity, bool) {
	if s.cache == nil {
		return domainauth.Identity{}, false
	}
	id, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "identity cache get failed", "error", err)
		return domainauth.Identity{}, false
	}
	if !ok || id.Expired(s.now()) {
		return domainauth.Identity{}, false
	}
	return id, true
}

func (s *AuthService) store(ctx context.Context, key string, id domainauth.Identity) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, id, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "identity cache set failed", "error", err)
	}
}

func (s *AuthService) record(source string, loggedIn bool, err error) {
	metrics.EmitAuthResolve(s.metrics, metrics.AuthMetric{Source: source, LoggedIn: loggedIn, Err: err})
}

func errPasswordLoginUnavailable() error {
	return apperrors.NotFound("password login is not available")
}

// cacheKey digests the token so raw bearer tokens never become cache keys.
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
