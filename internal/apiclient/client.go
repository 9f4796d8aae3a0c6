// Package apiclient is the authenticated HTTP client for the backend API.
//
// Every request goes through the same-origin API prefix (default "/api/"), carries
// "Authorization: Bearer <token>" when the auth state in the request context holds a
// token, and reports its outcome explicitly. A 401 answer additionally asks the
// configured Navigator to move the user to the login page before the error is handed
// back to the caller unchanged.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/target/mmk-ui-web/internal/domain/auth"
	apperrors "github.com/target/mmk-ui-web/internal/errors"
	"github.com/target/mmk-ui-web/internal/util"
)

const (
	// DefaultBasePath is the same-origin prefix the proxy endpoint listens on.
	DefaultBasePath = "/api/"
	// DefaultLoginPath is where a 401 navigates to.
	DefaultLoginPath = "/login"

	maxResponseBytes = 10 << 20
)

// Outcome classifies a completed call.
type Outcome int

const (
	// OutcomeSuccess is any 2xx answer.
	OutcomeSuccess Outcome = iota
	// OutcomeUnauthorized is exactly HTTP 401.
	OutcomeUnauthorized
	// OutcomeError is every other status and transport failures.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeUnauthorized:
		return "unauthorized"
	default:
		return "error"
	}
}

// TokenSource yields the bearer token for the request carried by ctx.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, bool)

// Token implements TokenSource.
func (f TokenSourceFunc) Token(ctx context.Context) (string, bool) { return f(ctx) }

// StateTokens reads the token from the auth state stored in the context.
type StateTokens struct{}

// Token implements TokenSource.
func (StateTokens) Token(ctx context.Context) (string, bool) {
	st, ok := domainauth.FromContext(ctx)
	if !ok || !st.HasToken() {
		return "", false
	}
	return st.Token, true
}

// Navigator moves the user to another page.
type Navigator interface {
	NavigateTo(ctx context.Context, location string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, location string) error

// NavigateTo implements Navigator.
func (f NavigatorFunc) NavigateTo(ctx context.Context, location string) error { return f(ctx, location) }

// Options configures a Client.
type Options struct {
	// BaseURL is the origin the base path is resolved against (e.g. "http://localhost:3000").
	BaseURL string
	// BasePath defaults to DefaultBasePath.
	BasePath string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// Tokens defaults to StateTokens.
	Tokens TokenSource
	// Navigator is optional; without one a 401 is only reported through the Outcome.
	Navigator Navigator
	// LoginPath defaults to DefaultLoginPath.
	LoginPath string
	Logger    *slog.Logger
}

// Client sends requests to the backend API on behalf of the current user.
type Client struct {
	base      string
	http      *http.Client
	tokens    TokenSource
	navigator Navigator
	loginPath string
	logger    *slog.Logger
}

// New constructs a Client.
func New(opts Options) *Client {
	basePath := opts.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = StateTokens{}
	}
	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:      util.JoinURL(strings.TrimRight(opts.BaseURL, "/"), basePath),
		http:      httpClient,
		tokens:    tokens,
		navigator: opts.Navigator,
		loginPath: loginPath,
		logger:    logger,
	}
}

// WithNavigator returns a copy of c that navigates through n on 401.
// Server handlers use it to bind navigation to the response being written.
func (c *Client) WithNavigator(n Navigator) *Client {
	cp := *c
	cp.navigator = n
	return &cp
}

// BaseURL returns the resolved API root every request path is joined onto.
func (c *Client) BaseURL() string { return c.base }

// Request describes one API call. Path is relative to the API root.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	// Body is sent as-is when it is []byte or io.Reader, and JSON-encoded otherwise.
	Body any
}

// Response is a fully read API answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Outcome    Outcome
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if r == nil || len(r.Body) == 0 {
		return apperrors.Validation("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUpstream, "decode response")
	}
	return nil
}

// StatusError is returned for every non-2xx answer. It unwraps to an AppError
// coded unauthorized for 401 and upstream otherwise.
type StatusError struct {
	Method   string
	URL      string
	Response *Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Response.StatusCode, http.StatusText(e.Response.StatusCode))
}

// Unwrap exposes the error category.
func (e *StatusError) Unwrap() error {
	if e.Response.StatusCode == http.StatusUnauthorized {
		return apperrors.Unauthorized(http.StatusText(http.StatusUnauthorized))
	}
	return &apperrors.AppError{Code: apperrors.ErrCodeUpstream, Message: http.StatusText(e.Response.StatusCode)}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// PostJSON issues a POST request with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Do sends req. Non-2xx answers return both the Response and a *StatusError.
// Transport failures return a nil Response and an upstream AppError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeUpstream, "%s %s", httpReq.Method, httpReq.URL.Redacted())
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.DebugContext(ctx, "close api response body", "error", cerr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeUpstream, "read %s %s", httpReq.Method, httpReq.URL.Redacted())
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Outcome:    classify(resp.StatusCode),
	}
	if out.Outcome == OutcomeSuccess {
		return out, nil
	}

	if out.Outcome == OutcomeUnauthorized {
		c.navigateToLogin(ctx)
	}
	return out, &StatusError{Method: httpReq.Method, URL: httpReq.URL.Redacted(), Response: out}
}

func classify(status int) Outcome {
	switch {
	case status == http.StatusUnauthorized:
		return OutcomeUnauthorized
	case status >= 200 && status < 300:
		return OutcomeSuccess
	default:
		return OutcomeError
	}
}

func (c *Client) navigateToLogin(ctx context.Context) {
	if c.navigator == nil {
		return
	}
	if err := c.navigator.NavigateTo(ctx, c.loginPath); err != nil {
		c.logger.WarnContext(ctx, "navigate to login failed", "location", c.loginPath, "error", err)
	}
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := util.JoinURL(c.base, req.Path)
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}

	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	body, isJSON, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "build request %s %s", method, target)
	}

	if isJSON && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}
	if header.Get("Accept") == "" {
		header.Set("Accept", "application/json")
	}
	c.authorize(ctx, header)
	httpReq.Header = header

	return httpReq, nil
}

// authorize attaches the bearer token, leaving every other header untouched.
func (c *Client) authorize(ctx context.Context, header http.Header) {
	token, ok := c.tokens.Token(ctx)
	if !ok || token == "" {
		return
	}
	header.Set("Authorization", "Bearer "+token)
}

func encodeBody(body any) (io.Reader, bool, error) {
	switch b := body.(type) {
	case nil:
		return nil, false, nil
	case []byte:
		return bytes.NewReader(b), false, nil
	case io.Reader:
		return b, false, nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, false, apperrors.Wrap(err, apperrors.ErrCodeValidation, "encode request body")
		}
		return bytes.NewReader(raw), true, nil
	}
}
