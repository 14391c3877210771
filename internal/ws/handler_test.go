package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/shared/id"
	"github.com/tracewire/tracewire/internal/trace"
)

type streamMsg struct {
	Type  string `json:"type"`
	Spans []struct {
		TraceID string `json:"traceId"`
		Name    string `json:"name"`
		Status  string `json:"status"`
	} `json:"spans"`
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/stream", hub.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func testSpan(name string) *trace.Span {
	gen := id.Default()
	sc := trace.NewRoot(gen, true)
	now := time.Now()
	return &trace.Span{
		TraceID:   sc.TraceID,
		SpanID:    sc.SpanID,
		Name:      name,
		StartTime: now,
		EndTime:   now.Add(time.Millisecond),
		Status:    trace.StatusOK,
	}
}

func TestHubStreamsTappedSpans(t *testing.T) {
	hub := NewHub("svc", zap.NewNop())
	conn := dialHub(t, hub)

	var welcome map[string]any
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "system", welcome["type"])

	// The client is registered before the welcome message is sent, so
	// the tap below can reach it.
	hub.Tap([]*trace.Span{testSpan("one"), testSpan("two")})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg streamMsg
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "spans", msg.Type)
	require.Len(t, msg.Spans, 2)
	assert.Equal(t, "one", msg.Spans[0].Name)
	assert.Equal(t, "two", msg.Spans[1].Name)
	assert.Equal(t, "ok", msg.Spans[0].Status)
	assert.NotEmpty(t, msg.Spans[0].TraceID)
}

func TestHubTapWithoutClients(t *testing.T) {
	hub := NewHub("svc", zap.NewNop())
	// Must not block or panic with nobody connected.
	hub.Tap([]*trace.Span{testSpan("lonely")})
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubRemovesClientOnDisconnect(t *testing.T) {
	hub := NewHub("svc", zap.NewNop())
	conn := dialHub(t, hub)

	var welcome map[string]any
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, 1, hub.ClientCount())

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, hub.ClientCount())
}
