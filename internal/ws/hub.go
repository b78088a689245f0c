package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/types"
	"github.com/GriffinCanCode/scriptbridge/internal/userapi/events"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// Dispatcher delivers actions sent by stream clients
type Dispatcher interface {
	DispatchAction(ctx context.Context, action, payload string) (bool, error)
}

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(ctx context.Context, action, payload string) (bool, error)

// DispatchAction calls f
func (f DispatcherFunc) DispatchAction(ctx context.Context, action, payload string) (bool, error) {
	return f(ctx, action, payload)
}

// Options configures a Hub
type Options struct {
	// AllowOrigins lists accepted Origin headers; empty or "*" accepts any
	AllowOrigins []string
	Logger       *logging.Logger
	Metrics      *monitoring.Metrics
}

// Hub fans events out to every connected websocket client. It is an
// events.Observer: OnEvent never blocks, and a client that cannot keep up
// is disconnected.
type Hub struct {
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	logger     *logging.Logger
	metrics    *monitoring.Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. dispatcher may be nil, in which case action
// messages are refused.
func NewHub(dispatcher Dispatcher, opts Options) *Hub {
	h := &Hub{
		dispatcher: dispatcher,
		logger:     opts.Logger.Named("ws"),
		metrics:    opts.Metrics,
		clients:    make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || origin == "" || set[origin]
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnEvent implements events.Observer
func (h *Hub) OnEvent(e events.Event) {
	data, err := sonic.Marshal(e)
	if err != nil {
		h.logger.Warn("Failed to encode event", zap.String("event", e.Name), zap.Error(err))
		return
	}
	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	var slow []*client

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Disconnecting slow event stream client", zap.String("remote", c.conn.RemoteAddr().String()))
		h.remove(c)
	}
}

// HandleConnection upgrades the request and streams events until the
// client goes away or the hub closes
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.add(cl) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.writePump(cl)
	}()

	h.reply(cl, gin.H{"type": "system", "message": "connected"})
	h.readPump(c.Request.Context(), cl)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

// remove unregisters c and closes its queue; the write pump then closes
// the connection
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) readPump(ctx context.Context, c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg types.WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		h.metrics.RecordWSMessage("in")

		switch msg.Type {
		case "ping":
			h.reply(c, gin.H{"type": "pong", "id": msg.ID})
		case "action":
			h.handleAction(ctx, c, msg)
		default:
			h.reply(c, gin.H{"type": "error", "id": msg.ID, "message": "unknown message type"})
		}
	}
}

func (h *Hub) handleAction(ctx context.Context, c *client, msg types.WSMessage) {
	if h.dispatcher == nil || msg.Action == "" {
		h.reply(c, gin.H{"type": "error", "id": msg.ID, "message": "action not accepted"})
		return
	}

	var payload string
	if msg.Data != nil {
		encoded, err := sonic.MarshalString(msg.Data)
		if err != nil {
			h.reply(c, gin.H{"type": "error", "id": msg.ID, "message": err.Error()})
			return
		}
		payload = encoded
	}

	delivered, err := h.dispatcher.DispatchAction(ctx, msg.Action, payload)
	result := gin.H{"type": "action_result", "id": msg.ID, "delivered": delivered}
	if err != nil {
		result["error"] = err.Error()
	}
	h.reply(c, result)
}

// reply queues a message for one client
func (h *Hub) reply(c *client, body interface{}) {
	data, err := sonic.Marshal(body)
	if err != nil {
		return
	}

	h.mu.RLock()
	_, ok := h.clients[c]
	if ok {
		select {
		case c.send <- data:
		default:
			ok = false
		}
	}
	h.mu.RUnlock()

	if !ok {
		h.remove(c)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.remove(c)
				return
			}
			h.metrics.RecordWSMessage("out")

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// Close disconnects every client and waits for their writers to exit.
// Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.wg.Wait()
}
