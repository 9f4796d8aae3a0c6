package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
	apperrors "github.com/target/mmk-ui-web/internal/errors"
	"github.com/target/mmk-ui-web/internal/http/validation"
	"github.com/target/mmk-ui-web/internal/ports"
	"github.com/target/mmk-ui-web/internal/service"
)

const (
	postLoginCookie = "post_login_redirect"

	maxEmailLen    = 254
	maxNameLen     = 100
	maxPasswordLen = 256
)

// AuthService is the slice of service.AuthService the handlers depend on.
type AuthService interface {
	StateResolver
	Login(ctx context.Context, creds domainauth.Credentials) (ports.LoginResult, error)
	Signup(ctx context.Context, reg domainauth.Registration) (ports.LoginResult, error)
	Logout(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	SupportsPasswordLogin() bool
	SupportsOAuth() bool
	BeginOAuth(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	CompleteOAuth(ctx context.Context, input service.CompleteLoginInput) (ports.LoginResult, error)
}

// Redirects are the page locations the auth flows send the browser to.
type Redirects struct {
	Home   string
	Login  string
	Logout string
}

func (r Redirects) withDefaults() Redirects {
	if r.Home == "" {
		r.Home = "/"
	}
	if r.Login == "" {
		r.Login = "/login"
	}
	if r.Logout == "" {
		r.Logout = "/logout"
	}
	return r
}

// AuthHandlers serves the login, registration, password reset and logout pages
// plus the redirect-based login endpoints.
type AuthHandlers struct {
	Svc       AuthService
	Renderer  *TemplateRenderer
	Cookies   CookieConfig
	Redirects Redirects
	// OAuthRedirectURL is the callback URL registered with the identity provider.
	OAuthRedirectURL string
	Logger           *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) redirects() Redirects { return h.Redirects.withDefaults() }

// LoginPage renders the login form. Logged-in users go straight home.
// GET /login.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if IsLoggedIn(r) {
		redirect(w, r, h.redirects().Home)
		return
	}
	data := NewTemplateData(r, PageMeta{Title: "Sign in", CurrentPage: PageLogin}).
		WithNotice(h.Cookies.popFlash(w, r)).
		Build()
	h.Renderer.RenderPage(w, r, http.StatusOK, data)
}

// LoginSubmit forwards the credentials and stores the returned token.
// POST /login.
func (h *AuthHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	creds := domainauth.Credentials{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	meta := PageMeta{Title: "Sign in", CurrentPage: PageLogin}
	if errs := validation.New().
		Validate("email", creds.Email, validation.Required("Email", maxEmailLen), validation.Email("Email")).
		Validate("password", creds.Password, validation.Secret("Password", 1, maxPasswordLen)).
		Errors(); errs != nil {
		h.renderInvalid(w, r, meta, errs, map[string]string{"Email": creds.Email})
		return
	}

	res, err := h.Svc.Login(r.Context(), creds)
	if err != nil {
		h.renderFormError(w, r, formError{
			meta:    meta,
			err:     err,
			message: "Unable to sign in right now. Please try again.",
			values:  map[string]string{"Email": creds.Email},
		})
		return
	}

	h.logger().InfoContext(r.Context(), "user logged in", "email", creds.Email)
	h.startSession(w, r, res)
	redirect(w, r, h.redirects().Home)
}

// RegisterPage renders the signup form.
// GET /register.
func (h *AuthHandlers) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if IsLoggedIn(r) {
		redirect(w, r, h.redirects().Home)
		return
	}
	data := NewTemplateData(r, PageMeta{Title: "Create an account", CurrentPage: PageRegister}).Build()
	h.Renderer.RenderPage(w, r, http.StatusOK, data)
}

// RegisterSubmit creates the account. When the backend answers without a token the
// user is sent to the login page with a notice.
// POST /register.
func (h *AuthHandlers) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	reg := domainauth.Registration{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	meta := PageMeta{Title: "Create an account", CurrentPage: PageRegister}
	values := map[string]string{"Email": reg.Email, "Name": reg.Name}
	if errs := validation.New().
		Validate("name", reg.Name, validation.Optional("Name", maxNameLen)).
		Validate("email", reg.Email, validation.Required("Email", maxEmailLen), validation.Email("Email")).
		Validate("password", reg.Password, validation.Secret("Password", 1, maxPasswordLen)).
		Errors(); errs != nil {
		h.renderInvalid(w, r, meta, errs, values)
		return
	}

	res, err := h.Svc.Signup(r.Context(), reg)
	if err != nil {
		h.renderFormError(w, r, formError{
			meta:    meta,
			err:     err,
			message: "Unable to create the account right now. Please try again.",
			values:  values,
		})
		return
	}

	h.logger().InfoContext(r.Context(), "user registered", "email", reg.Email, "logged_in", res.Token != "")
	if res.Token == "" {
		h.Cookies.setFlash(w, r, "Account created. Please sign in.")
		redirect(w, r, h.redirects().Login)
		return
	}
	h.startSession(w, r, res)
	redirect(w, r, h.redirects().Home)
}

// ResetPasswordPage renders the reset request form.
// GET /reset-password.
func (h *AuthHandlers) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	data := NewTemplateData(r, PageMeta{Title: "Reset password", CurrentPage: PageResetPassword}).Build()
	h.Renderer.RenderPage(w, r, http.StatusOK, data)
}

// ResetPasswordSubmit asks the backend to send a reset link. The confirmation does
// not reveal whether the address is registered.
// POST /reset-password.
func (h *AuthHandlers) ResetPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	meta := PageMeta{Title: "Reset password", CurrentPage: PageResetPassword}
	if errs := validation.New().
		Validate("email", email, validation.Required("Email", maxEmailLen), validation.Email("Email")).
		Errors(); errs != nil {
		h.renderInvalid(w, r, meta, errs, map[string]string{"Email": email})
		return
	}

	if err := h.Svc.RequestPasswordReset(r.Context(), email); err != nil {
		h.renderFormError(w, r, formError{
			meta:    meta,
			err:     err,
			message: "Unable to request a password reset right now. Please try again.",
			values:  map[string]string{"Email": email},
		})
		return
	}

	data := NewTemplateData(r, meta).
		WithNotice("If an account exists for that address, a reset link is on its way.").
		With("Sent", true).
		Build()
	h.Renderer.RenderPage(w, r, http.StatusOK, data)
}

// Logout revokes the token and clears the cookie. Backend failures are logged;
// the browser is signed out regardless.
// GET|POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := h.Cookies.Token(r); token != "" {
		if err := h.Svc.Logout(r.Context(), token); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}
	h.Cookies.clearToken(w, r)
	redirect(w, r, h.redirects().Home)
}

// OAuthLogin starts the redirect-based login.
// GET /auth/oauth/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	result, err := h.Svc.BeginOAuth(r.Context(), h.OAuthRedirectURL)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin oauth login failed", "error", err)
		WriteAppError(w, err)
		return
	}

	h.Cookies.setOAuth(w, r, result.State, result.Nonce)
	if target := safeRedirectPath(r.URL.Query().Get("redirect_uri")); target != "/" {
		cookie := h.Cookies.base(r, postLoginCookie, target)
		cookie.MaxAge = oauthCookieMaxAge
		http.SetCookie(w, cookie)
	}
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// OAuthCallback completes the redirect-based login.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if idpErr := q.Get("error"); idpErr != "" {
		h.logger().WarnContext(r.Context(), "identity provider rejected login", "error", idpErr, "description", q.Get("error_description"))
		h.Cookies.setFlash(w, r, "Sign-in was cancelled or denied.")
		http.Redirect(w, r, h.redirects().Login, http.StatusFound)
		return
	}

	code := q.Get("code")
	state := q.Get("state")
	if code == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_code", Err: errors.New("authorization code is required")})
		return
	}
	if state == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_state", Err: errors.New("state parameter is required")})
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_state", Err: errors.New("invalid or missing state parameter")})
		return
	}
	nonceCookie, err := r.Cookie(oauthNonceCookie)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_nonce", Err: errors.New("missing nonce parameter")})
		return
	}

	res, err := h.Svc.CompleteOAuth(r.Context(), service.CompleteLoginInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	})
	if err != nil {
		h.logger().ErrorContext(r.Context(), "complete oauth login failed", "error", err)
		WriteAppError(w, err)
		return
	}

	h.startSession(w, r, res)
	h.Cookies.clear(w, r, oauthStateCookie)
	h.Cookies.clear(w, r, oauthNonceCookie)
	http.Redirect(w, r, h.postLoginRedirect(w, r), http.StatusFound)
}

// Status reports the resolved auth state for scripts.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	token := h.Cookies.Token(r)
	st, err := h.Svc.State(r.Context(), token)
	if err != nil {
		h.logger().WarnContext(r.Context(), "auth status resolved without identity", "error", err)
	}
	if token != "" && !st.LoggedIn {
		h.Cookies.clearToken(w, r)
	}

	body := map[string]any{"loggedIn": st.LoggedIn}
	if st.Identity != nil {
		user := map[string]any{"id": st.Identity.UserID, "email": st.Identity.Email, "name": st.Identity.Name}
		body["user"] = user
		if !st.Identity.ExpiresAt.IsZero() {
			body["expiresAt"] = st.Identity.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}
	WriteJSON(w, http.StatusOK, body)
}

func (h *AuthHandlers) startSession(w http.ResponseWriter, r *http.Request, res ports.LoginResult) {
	var expires time.Time
	if res.Identity != nil {
		expires = res.Identity.ExpiresAt
	}
	h.Cookies.setToken(w, r, res.Token, expires)
}

// formError groups what renderFormError needs to redisplay a form.
type formError struct {
	meta    PageMeta
	err     error
	message string
	values  map[string]string
}

// renderFormError redisplays a form with the failure. Field validation errors are
// attached to their input; everything else becomes the page-level message.
func (h *AuthHandlers) renderFormError(w http.ResponseWriter, r *http.Request, fe formError) {
	status := StatusFor(fe.err)
	if status >= http.StatusInternalServerError {
		h.logger().ErrorContext(r.Context(), "auth flow failed", "page", fe.meta.CurrentPage, "error", fe.err)
	}

	b := NewTemplateData(r, fe.meta)
	if field := apperrors.GetField(fe.err); field != "" {
		b.WithFieldErrors(map[string]string{field: userMessage(fe.err, fe.message)})
	} else {
		b.WithError(userMessage(fe.err, fe.message))
	}
	for k, v := range fe.values {
		b.With(k, v)
	}
	h.Renderer.RenderPage(w, r, status, b.Build())
}

// renderInvalid redisplays a form whose input failed validation before reaching the backend.
func (h *AuthHandlers) renderInvalid(w http.ResponseWriter, r *http.Request, meta PageMeta, errs map[string]string, values map[string]string) {
	b := NewTemplateData(r, meta).WithFieldErrors(errs)
	for k, v := range values {
		b.With(k, v)
	}
	h.Renderer.RenderPage(w, r, http.StatusUnprocessableEntity, b.Build())
}

// postLoginRedirect returns the stored post-login target and clears the cookie.
func (h *AuthHandlers) postLoginRedirect(w http.ResponseWriter, r *http.Request) string {
	target := h.redirects().Home
	if c, err := r.Cookie(postLoginCookie); err == nil {
		if p := safeRedirectPath(c.Value); p != "/" {
			target = p
		}
		h.Cookies.clear(w, r, postLoginCookie)
	}
	return target
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(candidate, "//") {
		return "/"
	}
	return candidate
}
