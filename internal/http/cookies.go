package httpx

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTokenCookie holds the bearer token between requests.
	DefaultTokenCookie = "auth_token"

	flashCookie        = "flash"
	oauthStateCookie   = "oauth_state"
	oauthNonceCookie   = "oauth_nonce"
	oauthCookieMaxAge  = 600
	flashCookieMaxAge  = 60
	maxFlashMessageLen = 256
)

// CookieConfig describes how auth cookies are written.
type CookieConfig struct {
	// Domain is left empty to scope cookies to the request host.
	Domain string
	// TokenName defaults to DefaultTokenCookie.
	TokenName string
}

func (c CookieConfig) tokenName() string {
	if c.TokenName == "" {
		return DefaultTokenCookie
	}
	return c.TokenName
}

// Token returns the bearer token carried by r, if any.
func (c CookieConfig) Token(r *http.Request) string {
	cookie, err := r.Cookie(c.tokenName())
	if err != nil {
		return ""
	}
	return cookie.Value
}

// setToken stores token in an HttpOnly cookie. A zero expiry makes it a browser-session cookie.
func (c CookieConfig) setToken(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	cookie := c.base(r, c.tokenName(), token)
	if !expires.IsZero() {
		if maxAge := int(time.Until(expires).Seconds()); maxAge > 0 {
			cookie.MaxAge = maxAge
			cookie.Expires = expires.UTC()
		}
	}
	http.SetCookie(w, cookie)
}

func (c CookieConfig) clearToken(w http.ResponseWriter, r *http.Request) {
	c.clear(w, r, c.tokenName())
}

// clear expires a cookie, mirroring the attributes it was set with so every browser drops it.
func (c CookieConfig) clear(w http.ResponseWriter, r *http.Request, name string) {
	cookie := c.base(r, name, "")
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(w, cookie)
}

func (c CookieConfig) setOAuth(w http.ResponseWriter, r *http.Request, state, nonce string) {
	for name, value := range map[string]string{oauthStateCookie: state, oauthNonceCookie: nonce} {
		cookie := c.base(r, name, value)
		cookie.MaxAge = oauthCookieMaxAge
		http.SetCookie(w, cookie)
	}
}

// setFlash stores a one-shot message shown on the next rendered page.
func (c CookieConfig) setFlash(w http.ResponseWriter, r *http.Request, msg string) {
	if len(msg) > maxFlashMessageLen {
		msg = msg[:maxFlashMessageLen]
	}
	cookie := c.base(r, flashCookie, base64.RawURLEncoding.EncodeToString([]byte(msg)))
	cookie.MaxAge = flashCookieMaxAge
	http.SetCookie(w, cookie)
}

// popFlash returns the pending flash message and clears it.
func (c CookieConfig) popFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	c.clear(w, r, flashCookie)
	msg, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}
	return string(msg)
}

func (c CookieConfig) base(r *http.Request, name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}

// isSecureRequest reports whether the browser reached us over HTTPS, directly or through a proxy.
func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	for _, proto := range strings.Split(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}
