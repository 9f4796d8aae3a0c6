package devauth

// Package devauth is the AUTH_MODE=mock backend for local development.
// It accepts any credentials and signs short-lived HS256 tokens for a fixed identity,
// so the web tier can be exercised without a running auth service.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
	apperrors "github.com/target/mmk-ui-web/internal/errors"
	"github.com/target/mmk-ui-web/internal/ports"
)

const issuer = "mmk-web-dev"

// Config controls the dev identity and token lifetime.
type Config struct {
	UserID string
	Email  string
	Name   string
	// SigningKey signs dev tokens. A random key is generated when empty, which
	// invalidates tokens on restart.
	SigningKey      string
	SessionDuration time.Duration // default 8h when zero
	Now             func() time.Time
}

// Provider implements ports.Authenticator, ports.IdentityResolver and ports.AuthProvider.
type Provider struct {
	identity domainauth.Identity
	key      []byte
	ttl      time.Duration
	now      func() time.Time
}

var (
	_ ports.Authenticator    = (*Provider)(nil)
	_ ports.IdentityResolver = (*Provider)(nil)
	_ ports.AuthProvider     = (*Provider)(nil)
)

type devClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}

	key := []byte(cfg.SigningKey)
	if len(key) == 0 {
		s, err := randomString(48)
		if err != nil {
			return nil, fmt.Errorf("dev auth: generate signing key: %w", err)
		}
		key = []byte(s)
	}
	ttl := cfg.SessionDuration
	if ttl == 0 {
		ttl = 8 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Provider{
		identity: domainauth.Identity{UserID: cfg.UserID, Email: cfg.Email, Name: cfg.Name},
		key:      key,
		ttl:      ttl,
		now:      now,
	}, nil
}

// Login ignores the password and signs a token. The submitted email replaces the
// configured one so several dev users can be simulated.
func (p *Provider) Login(_ context.Context, creds domainauth.Credentials) (ports.LoginResult, error) {
	if strings.TrimSpace(creds.Email) == "" {
		return ports.LoginResult{}, apperrors.ValidationField("email", "email is required")
	}
	id := p.identity
	id.Email = strings.TrimSpace(creds.Email)
	return p.issue(id)
}

// Signup behaves like Login with the registration's name.
func (p *Provider) Signup(ctx context.Context, reg domainauth.Registration) (ports.LoginResult, error) {
	res, err := p.Login(ctx, domainauth.Credentials{Email: reg.Email, Password: reg.Password})
	if err != nil || reg.Name == "" {
		return res, err
	}
	id := *res.Identity
	id.Name = reg.Name
	return p.issue(id)
}

// Logout is a no-op; dev tokens simply expire.
func (p *Provider) Logout(context.Context, string) error { return nil }

// RequestPasswordReset accepts any address.
func (p *Provider) RequestPasswordReset(_ context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return apperrors.ValidationField("email", "email is required")
	}
	return nil
}

// Resolve verifies a dev token and returns its identity.
func (p *Provider) Resolve(_ context.Context, token string) (domainauth.Identity, error) {
	var claims devClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) { return p.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return domainauth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "dev token rejected")
	}

	id := domainauth.Identity{UserID: claims.Subject, Email: claims.Email, Name: claims.Name}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Begin short-circuits the IdP round trip by pointing straight at the local callback.
func (p *Provider) Begin(context.Context, ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	return "/auth/callback?code=dev&state=" + state, state, nonce, nil
}

// Exchange ignores the code and issues a token for the configured identity.
func (p *Provider) Exchange(context.Context, ports.ExchangeInput) (ports.LoginResult, error) {
	return p.issue(p.identity)
}

func (p *Provider) issue(id domainauth.Identity) (ports.LoginResult, error) {
	now := p.now()
	exp := now.Add(p.ttl)
	claims := devClaims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return ports.LoginResult{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "sign dev token")
	}
	id.ExpiresAt = time.Unix(exp.Unix(), 0)
	return ports.LoginResult{Token: signed, Identity: &id}, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	b := make([]byte, (n*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:n], nil
}
