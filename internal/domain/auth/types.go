package auth

// Package auth contains domain-level types for authentication state.
// It is pure and free of framework/adapter concerns.

import "time"

// Identity represents the authenticated principal as reported by the backend or IdP.
// Adapters map provider-specific payloads into this shape.
type Identity struct {
	UserID    string         `json:"id"`
	Email     string         `json:"email,omitempty"`
	Name      string         `json:"name,omitempty"`
	ExpiresAt time.Time      `json:"expires_at,omitempty"` // zero when the token carries no expiry
	Profile   map[string]any `json:"profile,omitempty"`    // raw user payload from the user endpoint
}

// Expired reports whether the identity carries an expiry that has passed.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Credentials are the login form fields forwarded to the auth backend.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration carries the signup form fields.
type Registration struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// State is the per-request authentication snapshot.
// It is read-only for every component except the auth service that resolves it.
type State struct {
	LoggedIn bool
	Token    string
	Identity *Identity
}

// Anonymous is the state of a request without a usable token.
func Anonymous() State { return State{} }

// Authenticated builds a logged-in state.
func Authenticated(token string, id *Identity) State {
	return State{LoggedIn: true, Token: token, Identity: id}
}

// HasToken reports whether a bearer token is available for outgoing requests.
func (s State) HasToken() bool { return s.Token != "" }
