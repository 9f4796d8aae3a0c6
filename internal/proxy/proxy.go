// Package proxy forwards same-origin API calls to the configured backend.
//
// A request for "<prefix><rest>" is sent to "<upstream>/<rest>" with the original
// method, body, query string and headers. Content-Type and Accept are always
// "application/json" on the way out, and a request without an Authorization
// header picks up the bearer token the Token hook finds for it. Whatever the backend answers is relayed
// as-is; nothing is retried.
package proxy

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/target/mmk-ui-web/internal/errors"
	"github.com/target/mmk-ui-web/internal/observability/metrics"
	"github.com/target/mmk-ui-web/internal/observability/statsd"
	"github.com/target/mmk-ui-web/internal/util"
)

// DefaultPrefix is the path prefix stripped before forwarding.
const DefaultPrefix = "/api/"

const jsonMediaType = "application/json"

// ErrNoUpstream is returned by New when no backend URL is configured.
var ErrNoUpstream = errors.New("proxy: upstream URL is required")

// Options configures a Handler.
type Options struct {
	// Upstream is the backend base URL, e.g. "https://backend.example.com/v1".
	Upstream string
	// Prefix defaults to DefaultPrefix.
	Prefix string
	// Transport defaults to a clone of http.DefaultTransport.
	Transport http.RoundTripper
	// Token returns the bearer token for requests that arrive without an
	// Authorization header. Optional.
	Token   func(r *http.Request) string
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// Handler is the proxy endpoint.
type Handler struct {
	upstream string
	prefix   string
	rp       *httputil.ReverseProxy
	token    func(r *http.Request) string
	metrics  statsd.Sink
	logger   *slog.Logger
}

// New validates opts and builds the proxy.
func New(opts Options) (*Handler, error) {
	upstream := strings.TrimSpace(opts.Upstream)
	if upstream == "" {
		return nil, ErrNoUpstream
	}
	u, err := url.Parse(upstream)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperrors.ValidationField("upstream", "proxy: upstream must be an absolute URL")
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	h := &Handler{
		upstream: upstream,
		prefix:   prefix,
		token:    opts.Token,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "proxy"),
	}
	h.rp = &httputil.ReverseProxy{
		Rewrite:      h.rewrite,
		Transport:    transport,
		ErrorHandler: h.handleError,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return h, nil
}

// Target computes the backend URL for an incoming request URL. The boolean is
// false when the path does not carry the proxy prefix.
func (h *Handler) Target(in *url.URL) (*url.URL, bool) {
	rest, ok := util.StripPrefixOnce(in.EscapedPath(), h.prefix)
	if !ok {
		return nil, false
	}

	raw := util.JoinURL(h.upstream, rest)
	if in.RawQuery != "" {
		sep := "?"
		if strings.Contains(raw, "?") {
			sep = "&"
		}
		raw += sep + in.RawQuery
	}

	target, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	return target, true
}

// ServeHTTP forwards r to the backend.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.Target(r.URL); !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "no API route for "+r.URL.Path)
		return
	}

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w}
	h.rp.ServeHTTP(rec, r)

	metrics.EmitProxy(h.metrics, metrics.ProxyMetric{
		Method:   r.Method,
		Status:   rec.status,
		Duration: time.Since(start),
		Err:      rec.err,
	})
}

func (h *Handler) rewrite(pr *httputil.ProxyRequest) {
	target, ok := h.Target(pr.In.URL)
	if !ok {
		// ServeHTTP rejects these before the reverse proxy runs.
		return
	}
	pr.Out.URL = target
	pr.Out.Host = ""
	pr.Out.Header.Set("Content-Type", jsonMediaType)
	pr.Out.Header.Set("Accept", jsonMediaType)
	if h.token != nil && pr.Out.Header.Get("Authorization") == "" {
		if token := h.token(pr.In); token != "" {
			pr.Out.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	wrapped := apperrors.Wrapf(err, apperrors.ErrCodeUpstream, "forward %s %s", r.Method, r.URL.Path)
	if rec, ok := w.(*statusRecorder); ok {
		rec.err = wrapped
	}

	ref := uuid.NewString()
	h.logger.ErrorContext(r.Context(), "upstream request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"ref", ref,
		"error", err,
	)
	writeJSONError(w, http.StatusBadGateway, "upstream_unavailable", "backend unavailable (ref "+ref+")")
}

// statusRecorder captures the status relayed to the client for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
	err    error
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer for flushing.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func writeJSONError(w http.ResponseWriter, code int, errCode, msg string) {
	w.Header().Set("Content-Type", jsonMediaType)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": errCode, "message": msg})
}
