package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	mmkweb "github.com/target/mmk-ui-web"
	"github.com/target/mmk-ui-web/internal/adapters/memory"
	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
	"github.com/target/mmk-ui-web/internal/domain/guard"
	fakes "github.com/target/mmk-ui-web/internal/mocks/auth"
	"github.com/target/mmk-ui-web/internal/service"
)

const testCSRFToken = "test-csrf-token"

func newTestRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	fsys, err := mmkweb.Templates()
	require.NoError(t, err)
	r, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: fsys,
		Globals: map[string]any{
			"LoginPath":     "/login",
			"LogoutPath":    "/logout",
			"PasswordLogin": true,
		},
	})
	require.NoError(t, err)
	return r
}

type fixture struct {
	backend *fakes.StaticBackend
	svc     *service.AuthService
	handler http.Handler
}

func newAuthService(backend *fakes.StaticBackend, mutate func(*service.AuthServiceOptions)) *service.AuthService {
	opts := service.AuthServiceOptions{
		Authenticator: backend,
		Resolver:      backend,
		Cache:         memory.NewIdentityCache(memory.Config{}),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return service.NewAuthService(opts)
}

// newFixture builds the full router over an in-memory auth backend.
func newFixture(t *testing.T, mutate func(*RouterOptions)) *fixture {
	t.Helper()
	backend := fakes.NewStaticBackend()
	svc := newAuthService(backend, nil)
	opts := RouterOptions{
		Auth:     svc,
		Renderer: newTestRenderer(t),
		Guard:    guard.New(guard.Options{}),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return &fixture{backend: backend, svc: svc, handler: NewRouter(opts)}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder { return httpDo(f.handler, req) }

func httpDo(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(path string, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

// postForm builds a form POST that passes the CSRF check.
func postForm(path string, values url.Values, cookies ...*http.Cookie) *http.Request {
	if values == nil {
		values = url.Values{}
	}
	values.Set(DefaultCSRFCookieName, testCSRFToken)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRFToken})
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func tokenCookie(token string) *http.Cookie {
	return &http.Cookie{Name: DefaultTokenCookie, Value: token}
}

// responseCookie returns the Set-Cookie named name, or nil.
func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func body(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	b, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return string(b)
}

func withState(r *http.Request, st domainauth.State) *http.Request {
	return r.WithContext(domainauth.NewContext(r.Context(), st))
}

// stubResolver returns a fixed state and error for every token.
type stubResolver struct {
	state  domainauth.State
	err    error
	tokens []string
}

func (s *stubResolver) State(_ context.Context, token string) (domainauth.State, error) {
	s.tokens = append(s.tokens, token)
	return s.state, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
