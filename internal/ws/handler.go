package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tracewire/tracewire/internal/trace"
	"github.com/tracewire/tracewire/internal/trace/export"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Hub fans finalized spans out to connected WebSocket clients. It plugs
// into the exporter queue as a drain tap, so clients see exactly what
// goes to the collector, in the same order.
type Hub struct {
	service string
	logger  *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	out  chan []export.WireSpan
}

// NewHub creates a hub for the named service.
func NewHub(service string, logger *zap.Logger) *Hub {
	return &Hub{
		service: service,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Tap is the exporter queue hook. It must not block the flush path, so a
// client whose send buffer is full misses the batch.
func (h *Hub) Tap(spans []*trace.Span) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}

	wire := export.NewBatch(h.service, spans).Spans
	for c := range h.clients {
		select {
		case c.out <- wire:
		default:
		}
	}
}

// HandleConnection upgrades the request and streams span batches until
// the client disconnects.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	cl := &client{conn: conn, out: make(chan []export.WireSpan, 16)}
	h.add(cl)
	defer h.remove(cl)

	conn.WriteJSON(map[string]interface{}{
		"type":      "system",
		"message":   "streaming spans for " + h.service,
		"timestamp": time.Now().Unix(),
	})

	// Reader goroutine detects disconnects; inbound payloads are ignored.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case spans := <-cl.out:
			msg := map[string]interface{}{
				"type":      "spans",
				"spans":     spans,
				"timestamp": time.Now().Unix(),
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Hub) add(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[cl] = struct{}{}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, cl)
}

// ClientCount reports connected clients, for the status endpoint.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
