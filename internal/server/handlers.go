package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/adapters"
	"github.com/tracewire/tracewire/internal/infrastructure/monitoring"
	"github.com/tracewire/tracewire/internal/trace"
	"github.com/tracewire/tracewire/internal/trace/export"
	"github.com/tracewire/tracewire/internal/ws"
)

const postsURL = "https://jsonplaceholder.typicode.com/posts"

// Handlers contains all HTTP handlers. Every handler runs under the span
// the server middleware opened for the request; handlers derive children
// from the request context.
type Handlers struct {
	recorder *trace.Recorder
	queue    *export.Queue
	db       *adapters.DB
	cache    *adapters.Cache
	client   *adapters.HTTPClient
	hub      *ws.Hub
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

func newHandlers(
	recorder *trace.Recorder,
	queue *export.Queue,
	db *adapters.DB,
	cache *adapters.Cache,
	client *adapters.HTTPClient,
	hub *ws.Hub,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		recorder: recorder,
		queue:    queue,
		db:       db,
		cache:    cache,
		client:   client,
		hub:      hub,
		metrics:  metrics,
		logger:   logger,
	}
}

// Root writes a cache key under a child span and greets.
func (h *Handlers) Root(c *gin.Context) {
	parent, _ := trace.FromContext(c.Request.Context())
	span, sc := h.recorder.Start("read_root", parent)
	span.SetAttribute("key", "name")
	span.SetAttribute("value", "basit")

	ctx := trace.ContextWith(c.Request.Context(), sc)
	if err := h.cache.Set(ctx, "name", "basit", 0); err != nil {
		h.logger.Warn("cache set failed", zap.Error(err))
	}

	if err := h.recorder.End(span, trace.StatusOK, nil); err != nil {
		h.logger.Error("handler ended span twice", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "Hello, World!"})
}

// DBTest runs SELECT 1 through the database adapter.
func (h *Handlers) DBTest(c *gin.Context) {
	var result int
	err := h.db.QueryRow(c.Request.Context(), "SELECT 1 as test", []any{&result})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"db_test": result})
}

// HTTPXTest fetches a public JSON endpoint through the outbound client
// adapter and relays the body.
func (h *Handlers) HTTPXTest(c *gin.Context) {
	resp, err := h.client.Get(c.Request.Context(), postsURL)
	if err != nil {
		h.logger.Error("outbound request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Data(resp.StatusCode(), "application/json", resp.Body())
}

// LoggingTest emits a log line carrying the request's trace identity.
func (h *Handlers) LoggingTest(c *gin.Context) {
	fields := []zap.Field{}
	if sc, ok := trace.FromContext(c.Request.Context()); ok {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID.String()),
			zap.String("span_id", sc.SpanID.String()))
	}
	h.logger.Info("Hello, World!", fields...)

	c.JSON(http.StatusOK, gin.H{"message": "Logging test"})
}

// Favorites looks up a user's favorites list in the cache. The stored
// value is a JSON array; a miss or an empty key yields an empty list.
func (h *Handlers) Favorites(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	parent, _ := trace.FromContext(c.Request.Context())
	span, sc := h.recorder.Start("get_favorites", parent)
	span.SetAttribute("username", username)
	defer func() {
		if err := h.recorder.End(span, trace.StatusOK, nil); err != nil {
			h.logger.Error("handler ended span twice", zap.Error(err))
		}
	}()

	key := fmt.Sprintf("user:%s:favorite", username)
	raw, ok, err := h.cache.Get(trace.ContextWith(c.Request.Context(), sc), key)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"username": username, "favorites": []string{}})
		return
	}

	var favorites []any
	if err := sonic.UnmarshalString(raw, &favorites); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"username":  username,
			"favorites": []string{},
			"error":     "Invalid data format",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": username, "favorites": favorites})
}

// Health reports pipeline liveness for probes.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.recorder.Service(),
		"pipeline": gin.H{
			"state":        h.queue.State().String(),
			"queued":       h.queue.Len(),
			"exported":     h.queue.Exported(),
			"dropped":      h.queue.Dropped(),
			"active_spans": h.recorder.ActiveSpans(),
		},
		"stream_clients": h.hub.ClientCount(),
		"timestamp":      time.Now().Unix(),
	})
}

// Status returns the metrics snapshot as JSON, for dashboards that do
// not scrape Prometheus.
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.GetSnapshot())
}
