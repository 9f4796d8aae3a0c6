package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for handler tests without codegen.

import (
	"context"
	"fmt"
	"strings"
	"sync"

	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
	apperrors "github.com/target/mmk-ui-web/internal/errors"
	"github.com/target/mmk-ui-web/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider     = (*MockAuthProvider)(nil)
	_ ports.Authenticator    = (*StaticBackend)(nil)
	_ ports.IdentityResolver = (*StaticBackend)(nil)
)

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (ports.LoginResult, error)

	// Deterministic values for predictable testing
	AuthURL     string
	StatePrefix string
	NoncePrefix string
	Token       string
	DefaultUser domainauth.Identity

	mu        sync.Mutex
	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		Token:       "mock-token",
		DefaultUser: domainauth.Identity{
			UserID: "mock-user-1",
			Email:  "mock.user@example.com",
			Name:   "Mock User",
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}
	return authURL, fmt.Sprintf("%s-%d", statePrefix, n), fmt.Sprintf("%s-%d", noncePrefix, n), nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (ports.LoginResult, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	token := m.Token
	if token == "" {
		token = "mock-token"
	}
	user := m.DefaultUser
	return ports.LoginResult{Token: token, Identity: &user}, nil
}

// StaticBackend is an in-memory auth backend. Users log in with the password
// they were registered with and receive the token "token-<email>".
type StaticBackend struct {
	mu        sync.Mutex
	passwords map[string]string
	tokens    map[string]domainauth.Identity
	Resets    []string
	LoggedOut []string
}

// NewStaticBackend creates a StaticBackend with no users.
func NewStaticBackend() *StaticBackend {
	return &StaticBackend{
		passwords: make(map[string]string),
		tokens:    make(map[string]domainauth.Identity),
	}
}

// AddUser registers a user directly.
func (b *StaticBackend) AddUser(email, password, name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(email, password, name)
}

func (b *StaticBackend) addLocked(email, password, name string) string {
	b.passwords[email] = password
	token := "token-" + email
	b.tokens[token] = domainauth.Identity{UserID: email, Email: email, Name: name}
	return token
}

func (b *StaticBackend) Login(_ context.Context, creds domainauth.Credentials) (ports.LoginResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if strings.TrimSpace(creds.Email) == "" {
		return ports.LoginResult{}, apperrors.ValidationField("email", "email is required")
	}
	pw, ok := b.passwords[creds.Email]
	if !ok || pw != creds.Password {
		return ports.LoginResult{}, apperrors.Unauthorized("Invalid credentials")
	}
	return ports.LoginResult{Token: "token-" + creds.Email}, nil
}

func (b *StaticBackend) Signup(_ context.Context, reg domainauth.Registration) (ports.LoginResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if strings.TrimSpace(reg.Email) == "" {
		return ports.LoginResult{}, apperrors.ValidationField("email", "email is required")
	}
	if _, exists := b.passwords[reg.Email]; exists {
		return ports.LoginResult{}, apperrors.ValidationField("email", "email is already registered")
	}
	return ports.LoginResult{Token: b.addLocked(reg.Email, reg.Password, reg.Name)}, nil
}

func (b *StaticBackend) Logout(_ context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LoggedOut = append(b.LoggedOut, token)
	return nil
}

func (b *StaticBackend) RequestPasswordReset(_ context.Context, email string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if strings.TrimSpace(email) == "" {
		return apperrors.ValidationField("email", "email is required")
	}
	b.Resets = append(b.Resets, email)
	return nil
}

func (b *StaticBackend) Resolve(_ context.Context, token string) (domainauth.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.tokens[token]
	if !ok {
		return domainauth.Identity{}, apperrors.Unauthorized("unknown token")
	}
	return id, nil
}
