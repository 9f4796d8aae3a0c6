// Package metrics standardises the metrics the web tier emits.
package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/target/mmk-ui-web/internal/observability/errors"
	"github.com/target/mmk-ui-web/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultMiss    = "miss"
	ResultHit     = "hit"
)

// ProxyMetric describes one forwarded API request.
type ProxyMetric struct {
	Method   string
	Status   int
	Duration time.Duration
	Err      error
}

// EmitProxy records a forwarded request. Status is 0 when the backend was unreachable.
func EmitProxy(sink statsd.Sink, in ProxyMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"method": in.Method,
		"result": ResultSuccess,
	}
	if in.Status > 0 {
		tags["status_class"] = strconv.Itoa(in.Status/100) + "xx"
	}
	if in.Err != nil {
		tags["result"] = ResultError
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("proxy.request", 1, tags)
	if in.Duration > 0 {
		sink.Timing("proxy.duration", in.Duration, CloneTags(tags))
	}
}

// AuthMetric describes how a request's auth state was resolved.
type AuthMetric struct {
	// Source is one of "none", "expired", "token", "cache", "backend".
	Source   string
	LoggedIn bool
	Err      error
}

// EmitAuthResolve records a session state resolution.
func EmitAuthResolve(sink statsd.Sink, in AuthMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"source":    in.Source,
		"logged_in": strconv.FormatBool(in.LoggedIn),
	}
	if in.Err != nil {
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count("auth.resolve", 1, tags)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
