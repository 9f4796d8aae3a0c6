package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
)

// LoginResult is what a successful credential flow yields.
// Identity is optional; when nil the identity is resolved lazily from the token.
type LoginResult struct {
	Token    string
	Identity *domainauth.Identity
}

// Authenticator runs credential flows against the auth backend.
type Authenticator interface {
	Login(ctx context.Context, creds domainauth.Credentials) (LoginResult, error)
	// Signup registers a user. The returned token is empty when the backend
	// expects a separate login after registration.
	Signup(ctx context.Context, reg domainauth.Registration) (LoginResult, error)
	Logout(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
}

// IdentityResolver maps a bearer token to the identity it belongs to.
// Implementations return an Unauthorized AppError when the token is rejected.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (domainauth.Identity, error)
}

// IdentityCache stores resolved identities keyed by an opaque token digest.
type IdentityCache interface {
	Get(ctx context.Context, key string) (domainauth.Identity, bool, error)
	Set(ctx context.Context, key string, id domainauth.Identity, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// BeginInput carries inputs for initiating a redirect-based auth flow.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// AuthProvider initiates and completes a redirect-based authentication flow against an IdP.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and returns the bearer
	// token together with the authenticated identity.
	Exchange(ctx context.Context, in ExchangeInput) (LoginResult, error)
}
