package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/config"
	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/govee-local-bridge/internal/node"
	"github.com/nerrad567/govee-local-bridge/internal/report"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypeNodes       = "nodes"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// ChannelPushResult carries every report.Result.
const ChannelPushResult = "push.result"

const (
	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256

	wsBufferSize = 1024
)

// WSMessage is a frame sent to or from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe and unsubscribe frames.
// Addresses narrows a subscription to the listed nodes; empty means all.
type WSSubscribePayload struct {
	Channels  []string `json:"channels"`
	Addresses []string `json:"addresses,omitempty"`
}

// inboundFrame mirrors WSMessage with a raw payload so it can be decoded
// into the shape each message type expects.
type inboundFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub fans push results out to connected WebSocket clients.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	nodes   func() []node.Snapshot
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one connected WebSocket client.
type WSClient struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	subject string

	mu sync.RWMutex
	// filters maps a subscribed channel to the addresses it is limited to.
	// A nil set means every address.
	filters map[string]map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// NewHub creates a hub. nodes supplies the snapshot returned for "nodes"
// requests and may be nil.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, nodes func() []node.Snapshot) *Hub {
	if nodes == nil {
		nodes = func() []node.Snapshot { return nil }
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		nodes:   nodes,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

func (h *Hub) register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n, "subject", c.subject)
}

// unregister removes c. Only the caller that actually removed it closes the
// send channel.
func (h *Hub) unregister(c *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(c.send)
		h.logger.Debug("websocket client disconnected", "clients", n, "subject", c.subject)
	}
}

// BroadcastResult sends res to every client subscribed to push results for
// its address.
func (h *Hub) BroadcastResult(res report.Result) {
	h.Broadcast(ChannelPushResult, res.Address, res)
}

// Broadcast sends payload to clients subscribed to channel whose address
// filter admits address. An empty address reaches every subscriber.
func (h *Hub) Broadcast(channel, address string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.wants(channel, address) {
			c.trySend(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
		delete(h.clients, c)
	}
}

// handleWebSocket upgrades the connection. With auth enabled the client
// must present a ticket from POST /auth/ws-ticket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var subject string
	if s.secCfg.JWT.Secret != "" {
		ticket := r.URL.Query().Get("ticket")
		if ticket == "" {
			writeUnauthorized(w, "ticket query parameter is required")
			return
		}
		entry, ok := s.tickets.redeem(ticket)
		if !ok {
			writeUnauthorized(w, "invalid or expired ticket")
			return
		}
		subject = entry.subject
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, wsSendBufferSize),
		subject: subject,
		filters: make(map[string]map[string]struct{}),
	}
	s.hub.register(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) keepalive() (ping, wait time.Duration) {
	return time.Duration(h.cfg.PingInterval) * time.Second, time.Duration(h.cfg.PongTimeout) * time.Second
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	ping, wait := c.hub.keepalive()
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ping + wait)) }

	c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any frame counts as alive.
		extend() //nolint:errcheck // a failed deadline surfaces as a read error
		c.handleFrame(data)
	}
}

func (c *WSClient) writePump() {
	ping, wait := c.hub.keepalive()
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(wait)) //nolint:errcheck // write error reported below
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // connection is going away
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleFrame(data []byte) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch f.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if len(f.Payload) == 0 || json.Unmarshal(f.Payload, &sub) != nil || len(sub.Channels) == 0 {
			c.sendError(f.ID, "invalid "+f.Type+" payload")
			return
		}
		if f.Type == WSTypeSubscribe {
			c.subscribe(sub)
			c.reply(f.ID, WSTypeResponse, map[string]any{"subscribed": sub.Channels, "addresses": sub.Addresses})
			return
		}
		c.unsubscribe(sub)
		c.reply(f.ID, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
	case WSTypeNodes:
		c.reply(f.ID, WSTypeResponse, map[string]any{"nodes": c.hub.nodes()})
	case WSTypePing:
		c.reply(f.ID, WSTypePong, nil)
	default:
		c.sendError(f.ID, "unknown message type: "+f.Type)
	}
}

// subscribe adds the channels. Subscribing again replaces the address filter.
func (c *WSClient) subscribe(sub WSSubscribePayload) {
	var only map[string]struct{}
	if len(sub.Addresses) > 0 {
		only = make(map[string]struct{}, len(sub.Addresses))
		for _, a := range sub.Addresses {
			only[a] = struct{}{}
		}
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.filters[ch] = only
	}
	c.mu.Unlock()
	c.hub.logger.Debug("websocket client subscribed", "channels", sub.Channels, "addresses", sub.Addresses, "subject", c.subject)
}

func (c *WSClient) unsubscribe(sub WSSubscribePayload) {
	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.filters, ch)
	}
	c.mu.Unlock()
}

func (c *WSClient) wants(channel, address string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	only, ok := c.filters[channel]
	if !ok {
		return false
	}
	if only == nil || address == "" {
		return true
	}
	_, ok = only[address]
	return ok
}

// trySend queues data without blocking. A full buffer drops the frame; a
// send racing with unregister is absorbed.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on closed channel
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}
