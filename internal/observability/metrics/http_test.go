package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/mmk-ui-web/internal/errors"
)

type countCall struct {
	name string
	tags map[string]string
}

type fakeSink struct {
	counts  []countCall
	timings []countCall
}

func (f *fakeSink) Count(name string, _ int64, tags map[string]string) {
	f.counts = append(f.counts, countCall{name: name, tags: tags})
}

func (f *fakeSink) Timing(name string, _ time.Duration, tags map[string]string) {
	f.timings = append(f.timings, countCall{name: name, tags: tags})
}

func TestEmitProxy_Success(t *testing.T) {
	sink := &fakeSink{}
	EmitProxy(sink, ProxyMetric{Method: "GET", Status: 404, Duration: time.Millisecond})

	require.Len(t, sink.counts, 1)
	assert.Equal(t, "proxy.request", sink.counts[0].name)
	assert.Equal(t, map[string]string{"method": "GET", "result": "success", "status_class": "4xx"}, sink.counts[0].tags)
	require.Len(t, sink.timings, 1)
	assert.Equal(t, "proxy.duration", sink.timings[0].name)
}

func TestEmitProxy_Error(t *testing.T) {
	sink := &fakeSink{}
	err := apperrors.Wrap(errors.New("refused"), apperrors.ErrCodeUpstream, "forward")
	EmitProxy(sink, ProxyMetric{Method: "POST", Err: err})

	require.Len(t, sink.counts, 1)
	tags := sink.counts[0].tags
	assert.Equal(t, "error", tags["result"])
	assert.Equal(t, "upstream", tags["error_class"])
	_, hasStatus := tags["status_class"]
	assert.False(t, hasStatus)
	assert.Empty(t, sink.timings)
}

func TestEmitAuthResolve(t *testing.T) {
	sink := &fakeSink{}
	EmitAuthResolve(sink, AuthMetric{Source: "cache", LoggedIn: true})

	require.Len(t, sink.counts, 1)
	assert.Equal(t, "auth.resolve", sink.counts[0].name)
	assert.Equal(t, map[string]string{"source": "cache", "logged_in": "true"}, sink.counts[0].tags)
}

func TestEmitNilSink(_ *testing.T) {
	EmitProxy(nil, ProxyMetric{})
	EmitAuthResolve(nil, AuthMetric{})
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1"}
	cp := CloneTags(src)
	cp["a"] = "2"
	assert.Equal(t, "1", src["a"])
}
