package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/trace"
)

func TestHTTPClientPropagatesContext(t *testing.T) {
	rec, sink := newTestRecorder()

	var received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get(trace.Header)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPClient(rec, zap.NewNop())

	// Caller's span context rides ctx; the outbound span is its child.
	parentSpan, parentCtx := rec.Start("handler", trace.SpanContext{})
	ctx := trace.ContextWith(context.Background(), parentCtx)

	resp, err := client.Get(ctx, srv.URL+"/posts")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	remote, err := trace.Parse(received)
	require.NoError(t, err)
	assert.Equal(t, parentSpan.TraceID, remote.TraceID)
	assert.NotEqual(t, parentSpan.SpanID, remote.SpanID)

	spans := sink.all()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "HTTP GET /posts", span.Name)
	assert.Equal(t, parentSpan.SpanID, span.ParentSpanID)
	assert.Equal(t, trace.StatusOK, span.Status)
	assert.Equal(t, http.StatusOK, span.Attributes["http.status_code"])
	assert.Equal(t, span.SpanID, remote.SpanID,
		"the remote side continues from the outbound span")
}

func TestHTTPClientErrorPropagatesUnchanged(t *testing.T) {
	rec, sink := newTestRecorder()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewHTTPClient(rec, zap.NewNop(), WithRetry(0, 0, 0))

	_, err := client.Get(context.Background(), srv.URL)
	require.Error(t, err)

	spans := sink.all()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.StatusError, spans[0].Status)
	assert.NotEmpty(t, spans[0].Attributes["error.message"])
}

func TestHTTPClientWithoutParentStartsRoot(t *testing.T) {
	rec, sink := newTestRecorder()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewHTTPClient(rec, zap.NewNop())

	_, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	spans := sink.all()
	require.Len(t, spans, 1)
	assert.True(t, spans[0].IsRoot())
}
