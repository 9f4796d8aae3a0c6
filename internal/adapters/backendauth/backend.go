// Package backendauth runs the credential flows against the backend's auth endpoints
// (AUTH_MODE=jwt). Requests go through the authenticated API client, so the same
// prefix, bearer handling and 401 semantics apply as for every other API call.
package backendauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/mmk-ui-web/internal/apiclient"
	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
	apperrors "github.com/target/mmk-ui-web/internal/errors"
	"github.com/target/mmk-ui-web/internal/ports"
)

// messageExpr picks a human-readable message out of typical backend error payloads.
const messageExpr = "message || error_description || error.message || error || detail"

// Endpoints are paths relative to the client's base URL.
type Endpoints struct {
	Login         string
	Logout        string
	User          string
	Signup        string
	ResetPassword string
}

// Config wires a Backend.
type Config struct {
	Client    *apiclient.Client
	Endpoints Endpoints
	// TokenPath is a JMESPath expression locating the token in the login response.
	TokenPath string
	// UserPath is a JMESPath expression locating the user object in the user response.
	UserPath string
}

// Backend implements ports.Authenticator and ports.IdentityResolver.
type Backend struct {
	client    *apiclient.Client
	endpoints Endpoints
	tokenPath string
	userPath  string
}

var (
	_ ports.Authenticator    = (*Backend)(nil)
	_ ports.IdentityResolver = (*Backend)(nil)
)

// New validates the JMESPath expressions and builds a Backend.
func New(cfg Config) (*Backend, error) {
	if cfg.Client == nil {
		return nil, errors.New("backendauth: client is required")
	}
	if cfg.Endpoints.Login == "" {
		return nil, errors.New("backendauth: login endpoint is required")
	}
	tokenPath := cfg.TokenPath
	if tokenPath == "" {
		tokenPath = "token"
	}
	userPath := cfg.UserPath
	if userPath == "" {
		userPath = "@"
	}
	for _, expr := range []string{tokenPath, userPath} {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("backendauth: invalid JMESPath %q: %w", expr, err)
		}
	}

	return &Backend{
		client:    cfg.Client,
		endpoints: cfg.Endpoints,
		tokenPath: tokenPath,
		userPath:  userPath,
	}, nil
}

// HasUserEndpoint reports whether identities can be fetched from the backend.
func (b *Backend) HasUserEndpoint() bool { return b.endpoints.User != "" }

// Login posts the credentials and extracts the token from the response.
func (b *Backend) Login(ctx context.Context, creds domainauth.Credentials) (ports.LoginResult, error) {
	if strings.TrimSpace(creds.Email) == "" {
		return ports.LoginResult{}, apperrors.ValidationField("email", "email is required")
	}
	if creds.Password == "" {
		return ports.LoginResult{}, apperrors.ValidationField("password", "password is required")
	}

	resp, err := b.client.PostJSON(anonymous(ctx), b.endpoints.Login, creds)
	if err != nil {
		return ports.LoginResult{}, b.describe(resp, err, "login")
	}

	token, err := b.extractToken(resp)
	if err != nil {
		return ports.LoginResult{}, err
	}
	if token == "" {
		return ports.LoginResult{}, apperrors.Wrap(
			fmt.Errorf("no value at %q", b.tokenPath), apperrors.ErrCodeUpstream, "login response carries no token")
	}
	return ports.LoginResult{Token: token}, nil
}

// Signup registers the user. A token in the response logs the user in directly.
func (b *Backend) Signup(ctx context.Context, reg domainauth.Registration) (ports.LoginResult, error) {
	if b.endpoints.Signup == "" {
		return ports.LoginResult{}, apperrors.NotFound("registration is disabled")
	}
	if strings.TrimSpace(reg.Email) == "" {
		return ports.LoginResult{}, apperrors.ValidationField("email", "email is required")
	}
	if reg.Password == "" {
		return ports.LoginResult{}, apperrors.ValidationField("password", "password is required")
	}

	resp, err := b.client.PostJSON(anonymous(ctx), b.endpoints.Signup, reg)
	if err != nil {
		return ports.LoginResult{}, b.describe(resp, err, "signup")
	}
	token, err := b.extractToken(resp)
	if err != nil {
		// Registration succeeded; a body without a parsable token only means "log in next".
		return ports.LoginResult{}, nil //nolint:nilerr // see above
	}
	return ports.LoginResult{Token: token}, nil
}

// Logout tells the backend to revoke token. Without a logout endpoint it is a no-op.
func (b *Backend) Logout(ctx context.Context, token string) error {
	if b.endpoints.Logout == "" || token == "" {
		return nil
	}
	ctx = domainauth.NewContext(ctx, domainauth.Authenticated(token, nil))
	resp, err := b.client.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: b.endpoints.Logout})
	if err != nil {
		// The token is already unusable; nothing left to revoke.
		if apperrors.IsUnauthorized(err) {
			return nil
		}
		return b.describe(resp, err, "logout")
	}
	return nil
}

// RequestPasswordReset asks the backend to send a reset link.
func (b *Backend) RequestPasswordReset(ctx context.Context, email string) error {
	if b.endpoints.ResetPassword == "" {
		return apperrors.NotFound("password reset is disabled")
	}
	if strings.TrimSpace(email) == "" {
		return apperrors.ValidationField("email", "email is required")
	}
	resp, err := b.client.PostJSON(anonymous(ctx), b.endpoints.ResetPassword, map[string]string{"email": email})
	if err != nil {
		return b.describe(resp, err, "password reset")
	}
	return nil
}

// Resolve fetches the user endpoint with token and maps the payload to an Identity.
func (b *Backend) Resolve(ctx context.Context, token string) (domainauth.Identity, error) {
	if token == "" {
		return domainauth.Identity{}, apperrors.Unauthorized("missing token")
	}
	if !b.HasUserEndpoint() {
		return domainauth.Identity{}, apperrors.NotFound("no user endpoint configured")
	}

	ctx = domainauth.NewContext(ctx, domainauth.Authenticated(token, nil))
	resp, err := b.client.Get(ctx, b.endpoints.User, nil)
	if err != nil {
		return domainauth.Identity{}, b.describe(resp, err, "fetch user")
	}

	data, err := decode(resp)
	if err != nil {
		return domainauth.Identity{}, err
	}
	raw, err := jmespath.Search(b.userPath, data)
	if err != nil {
		return domainauth.Identity{}, apperrors.Wrapf(err, apperrors.ErrCodeUpstream, "evaluate %q", b.userPath)
	}
	profile, ok := raw.(map[string]any)
	if !ok {
		return domainauth.Identity{}, apperrors.Wrap(
			fmt.Errorf("got %T at %q", raw, b.userPath), apperrors.ErrCodeUpstream, "user response is not an object")
	}
	return identityFromProfile(profile), nil
}

func (b *Backend) extractToken(resp *apiclient.Response) (string, error) {
	data, err := decode(resp)
	if err != nil {
		return "", err
	}
	raw, err := jmespath.Search(b.tokenPath, data)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeUpstream, "evaluate %q", b.tokenPath)
	}
	token, _ := raw.(string)
	return strings.TrimSpace(token), nil
}

// describe keeps the error category while surfacing the backend's own message.
func (b *Backend) describe(resp *apiclient.Response, err error, op string) error {
	code := apperrors.GetCode(err)
	if code == "" {
		code = apperrors.ErrCodeUpstream
	}
	if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusUnauthorized {
		code = apperrors.ErrCodeValidation
	}

	msg := op + " failed"
	if resp != nil {
		if data, decErr := decode(resp); decErr == nil {
			if found, _ := jmespath.Search(messageExpr, data); found != nil {
				if s, ok := found.(string); ok && s != "" {
					msg = s
				}
			}
		}
	}
	return &apperrors.AppError{Code: code, Message: msg, Cause: err}
}

func decode(resp *apiclient.Response) (any, error) {
	if resp == nil || len(resp.Body) == 0 {
		return nil, apperrors.Wrap(errors.New("empty body"), apperrors.ErrCodeUpstream, "decode response")
	}
	var data any
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "decode response")
	}
	return data, nil
}

// anonymous strips any bearer token so credential calls never carry a stale session.
func anonymous(ctx context.Context) context.Context {
	return domainauth.NewContext(ctx, domainauth.Anonymous())
}

func identityFromProfile(p map[string]any) domainauth.Identity {
	id := domainauth.Identity{
		UserID:  firstString(p, "id", "_id", "uuid", "sub", "user_id", "userId"),
		Email:   firstString(p, "email", "mail"),
		Name:    firstString(p, "name", "full_name", "fullName", "username"),
		Profile: p,
	}
	if id.Name == "" {
		id.Name = strings.TrimSpace(firstString(p, "first_name", "firstName") + " " + firstString(p, "last_name", "lastName"))
	}
	return id
}

func firstString(p map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := p[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}
