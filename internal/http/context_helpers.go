package httpx

import (
	"net/http"

	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
)

// AuthState returns the auth state SessionState resolved for r.
// Requests that never passed through SessionState read as anonymous.
func AuthState(r *http.Request) domainauth.State {
	st, _ := domainauth.FromContext(r.Context())
	return st
}

// IsLoggedIn reports whether the request carries a usable session.
func IsLoggedIn(r *http.Request) bool { return AuthState(r).LoggedIn }

// CurrentUser returns the resolved identity, or nil when only the token is known.
func CurrentUser(r *http.Request) *domainauth.Identity { return AuthState(r).Identity }
