package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mproc/internal/api"
	"mproc/internal/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize  = 4 << 10
	sendBufferSize  = 32
	broadcastBuffer = 64

	// eventReady is sent to a client once it is registered.
	eventReady = "ready"
)

type eventClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans change events out to websocket clients. It implements
// tasks.Notifier and never blocks the caller.
type Hub struct {
	logger     *slog.Logger
	clients    map[*eventClient]struct{}
	broadcast  chan []byte
	register   chan *eventClient
	unregister chan *eventClient
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a hub. Call Run to start delivering events.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger.With("component", "events"),
		clients:    make(map[*eventClient]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *eventClient),
		unregister: make(chan *eventClient),
		done:       make(chan struct{}),
	}
}

// TasksChanged queues a tasks_changed event.
func (h *Hub) TasksChanged(ids []string) {
	h.publish(api.Event{Type: api.EventTasksChanged, IDs: ids})
}

// SettingsChanged queues a settings_changed event.
func (h *Hub) SettingsChanged(settings models.Settings) {
	h.publish(api.Event{Type: api.EventSettingsChanged, Settings: &settings})
}

func (h *Hub) publish(event api.Event) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal event", "type", event.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- message:
	case <-h.done:
	default:
		h.logger.Warn("event dropped, broadcast queue full", "type", event.Type)
	}
}

// Run delivers events until ctx is cancelled or Close is called.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.Close()
			return
		case <-h.done:
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.deliver(client, mustMarshalEvent(api.Event{Type: eventReady}))
			h.logger.Debug("client connected", "remote_addr", client.conn.RemoteAddr().String(), "clients", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("client disconnected", "remote_addr", client.conn.RemoteAddr().String(), "clients", len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				h.deliver(client, message)
			}
		}
	}
}

// deliver drops clients whose send buffer is full.
func (h *Hub) deliver(client *eventClient, message []byte) {
	select {
	case client.send <- message:
	default:
		h.logger.Warn("client send buffer full, removing client", "remote_addr", client.conn.RemoteAddr().String())
		close(client.send)
		delete(h.clients, client)
	}
}

// Close stops the hub and disconnects every client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Serve registers an upgraded connection and pumps events to it until either
// side goes away.
func (h *Hub) Serve(conn *websocket.Conn) {
	client := &eventClient{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	go client.writePump()
	client.readPump()
}

// readPump discards client messages; it only keeps the read deadline moving
// and notices when the peer closes.
func (c *eventClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read", "error", err)
			}
			return
		}
	}
}

func (c *eventClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func mustMarshalEvent(event api.Event) []byte {
	message, err := json.Marshal(event)
	if err != nil {
		panic(err)
	}
	return message
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkEventsOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.log().Debug("websocket upgrade", "error", err)
		return
	}
	s.hub.Serve(conn)
}

// checkEventsOrigin applies the CORS origin rules to websocket handshakes,
// which browsers do not preflight.
func (s *Server) checkEventsOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.allowedOrigins) == 0 {
		return isLoopbackOrigin(origin)
	}
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
