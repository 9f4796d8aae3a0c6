package httpx

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-ui-web/internal/domain/guard"
	"github.com/target/mmk-ui-web/internal/proxy"
)

func TestRouter_AnonymousNavigation(t *testing.T) {
	f := newFixture(t, nil)

	for _, target := range []string{"/", "/reports", "/login/", "/login?next=/reports", "/register?x=1"} {
		rec := f.do(get(target))
		assert.Equal(t, http.StatusSeeOther, rec.Code, target)
		assert.Equal(t, "/login", rec.Header().Get("Location"), target)
	}
	for _, target := range []string{"/login", "/register", "/reset-password"} {
		rec := f.do(get(target))
		assert.Equal(t, http.StatusOK, rec.Code, target)
	}
}

func TestRouter_LoggedInNavigation(t *testing.T) {
	f := newFixture(t, nil)
	token := f.backend.AddUser("ada@example.com", "pw", "Ada")

	rec := f.do(get("/", tokenCookie(token)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body(t, rec), "Welcome, Ada")

	rec = f.do(get("/reports", tokenCookie(token)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body(t, rec), "Page not found")
}

func TestRouter_HTMXPartial(t *testing.T) {
	f := newFixture(t, nil)

	req := get("/login")
	req.Header.Set("Hx-Request", "true")
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	html := body(t, rec)
	assert.Contains(t, html, "<h1>Sign in</h1>")
	assert.NotContains(t, html, "<html")
}

func TestRouter_CustomLoginPath(t *testing.T) {
	f := newFixture(t, func(o *RouterOptions) {
		o.Redirects = Redirects{Login: "/signin"}
		o.Guard = guard.New(guard.Options{
			PublicPaths: append(guard.DefaultPublicPaths(), "/signin"),
			LoginPath:   "/signin",
		})
	})

	rec := f.do(get("/"))
	assert.Equal(t, "/signin", rec.Header().Get("Location"))
	rec = f.do(get("/signin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Health(t *testing.T) {
	f := newFixture(t, func(o *RouterOptions) {
		o.Health = map[string]HealthCheck{"cache": func(context.Context) error { return nil }}
	})

	rec := f.do(get(PathHealth))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Location"))
}

func newProxiedFixture(t *testing.T, compress bool) (*fixture, *[]*http.Request) {
	t.Helper()
	var seen []*http.Request
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Clone(context.Background()))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/forbidden" {
			w.WriteHeader(http.StatusForbidden)
		}
		_, _ = io.WriteString(w, `{"items":[`+strings.Repeat(`"x",`, 200)+`"x"]}`)
	}))
	t.Cleanup(backend.Close)

	f := newFixture(t, func(o *RouterOptions) {
		cookies := o.Cookies
		p, err := proxy.New(proxy.Options{
			Upstream: backend.URL + "/v1",
			Token:    cookies.Token,
		})
		require.NoError(t, err)
		o.Proxy = p
		if compress {
			o.Compression = &CompressionConfig{Level: 6}
		}
	})
	return f, &seen
}

func TestRouter_ProxyBypassesPageMiddleware(t *testing.T) {
	f, seen := newProxiedFixture(t, true)

	// No session lookup and no page guard: the proxy forwards and the backend decides.
	req := httptest.NewRequest(http.MethodPost, "/api/items?page=2", strings.NewReader(`{"a":1}`))
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set(DefaultCSRFHeaderName, testCSRFToken)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRFToken})
	req.AddCookie(tokenCookie("tok"))
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Contains(t, rec.Body.String(), `"items"`)

	require.Len(t, *seen, 1)
	out := (*seen)[0]
	assert.Equal(t, http.MethodPost, out.Method)
	assert.Equal(t, "/v1/items", out.URL.Path)
	assert.Equal(t, "page=2", out.URL.RawQuery)
	assert.Equal(t, "Bearer tok", out.Header.Get("Authorization"))
	assert.Equal(t, "application/json", out.Header.Get("Accept"))
}

func TestRouter_ProxyCookieCredentialsNeedCSRF(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		header    string
		csrf      string
		auth      string
		withToken bool
		want      int
	}{
		{name: "cookie only delete", method: http.MethodDelete, withToken: true, want: http.StatusForbidden},
		{name: "cookie only post", method: http.MethodPost, withToken: true, csrf: testCSRFToken, want: http.StatusForbidden},
		{name: "mismatched header", method: http.MethodDelete, withToken: true, header: "other", csrf: testCSRFToken, want: http.StatusForbidden},
		{name: "header without csrf cookie", method: http.MethodDelete, withToken: true, header: testCSRFToken, want: http.StatusForbidden},
		{name: "double submit", method: http.MethodDelete, withToken: true, header: testCSRFToken, csrf: testCSRFToken, want: http.StatusOK},
		{name: "safe method", method: http.MethodGet, withToken: true, want: http.StatusOK},
		{name: "explicit bearer", method: http.MethodDelete, withToken: true, auth: "Bearer own", want: http.StatusOK},
		{name: "anonymous", method: http.MethodDelete, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, seen := newProxiedFixture(t, false)

			req := httptest.NewRequest(tt.method, "/api/account", nil)
			req.Header.Set("Origin", "https://evil.example")
			if tt.header != "" {
				req.Header.Set(DefaultCSRFHeaderName, tt.header)
			}
			if tt.csrf != "" {
				req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: tt.csrf})
			}
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if tt.withToken {
				req.AddCookie(tokenCookie("victim-token"))
			}
			rec := f.do(req)

			require.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Empty(t, *seen)
				assert.JSONEq(t, `{"error":"csrf_failed","message":"CSRF token validation failed"}`, rec.Body.String())
				return
			}
			require.Len(t, *seen, 1)
			assert.Equal(t, "/v1/account", (*seen)[0].URL.Path)
		})
	}
}

func TestRouter_ProxyForwardsUncleanPaths(t *testing.T) {
	f, seen := newProxiedFixture(t, false)

	for _, target := range []string{"/api//items", "/api/a/../items"} {
		rec := f.do(get(target))
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Empty(t, rec.Header().Get("Location"), target)
	}
	require.Len(t, *seen, 2)
	assert.Equal(t, "/v1/a/../items", (*seen)[1].URL.Path)
}

func TestRouter_ProxyRelaysErrors(t *testing.T) {
	f, _ := newProxiedFixture(t, false)

	rec := f.do(get("/api/forbidden"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestRouter_PagesAreCompressed(t *testing.T) {
	f, _ := newProxiedFixture(t, true)

	req := get("/login")
	req.Header.Set("Accept-Encoding", "gzip")
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	html, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Sign in</h1>")
}

func TestRouter_RecoversFromPanics(t *testing.T) {
	f := newFixture(t, func(o *RouterOptions) {
		o.Proxy = http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(errors.New("boom")) })
		o.Logger = discardLogger()
	})

	rec := f.do(get("/api/anything"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
