package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"stockdash/internal/config"
	"stockdash/internal/infrastructure"
	"stockdash/pkg/contracts/events"
)

const (
	broadcastBuffer = 64
	clientBuffer    = 32
)

// Hub maintains the set of open dashboard pages and fans server events out
// to them. All mutation of the client set and every close of a client's send
// channel happens on the Run goroutine.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger

	metrics     *Metrics
	otelMetrics *OTelMetrics

	pingPeriod time.Duration
	pongWait   time.Duration
	writeWait  time.Duration

	// Counters, guarded by mu
	totalConnections int64
	messagesSent     int64
	messagesDropped  int64

	metricsInterval time.Duration

	quit    chan struct{}
	done    chan struct{}
	running bool
	stopped bool
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithMetrics attaches an in-process metrics collector
func WithMetrics(m *Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithOTelMetrics attaches OpenTelemetry instruments
func WithOTelMetrics(m *OTelMetrics) HubOption {
	return func(h *Hub) { h.otelMetrics = m }
}

// WithKeepalive sets the ping period and pong timeout used by clients
func WithKeepalive(cfg config.WebSocketConfig) HubOption {
	return func(h *Hub) {
		if cfg.PingPeriod > 0 {
			h.pingPeriod = cfg.PingPeriod
		}
		if cfg.PongWait > 0 {
			h.pongWait = cfg.PongWait
		}
	}
}

// WithMetricsInterval sets how often hub metrics are logged
func WithMetricsInterval(d time.Duration) HubOption {
	return func(h *Hub) { h.metricsInterval = d }
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	hub := &Hub{
		clients:         make(map[*Client]bool),
		broadcast:       make(chan []byte, broadcastBuffer),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		logger:          logger.With(slog.String("component", "websocket.hub")),
		metrics:         NewMetrics(),
		pingPeriod:      config.WebSocketPingPeriod,
		pongWait:        config.WebSocketPongWait,
		writeWait:       config.WebSocketWriteWait,
		metricsInterval: 30 * time.Second,
		quit:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(hub)
	}
	// Pings must arrive before the peer's read deadline expires
	if hub.pingPeriod >= hub.pongWait {
		hub.pingPeriod = hub.pongWait * 9 / 10
	}
	return hub
}

// Start starts the hub's goroutines
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running || h.stopped {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
	go h.reportMetrics()
}

// Run is the hub's main loop. It returns once Stop is called.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "closed")

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.totalConnections++
	h.mu.Unlock()

	ctx := client.context()
	h.logger.InfoContext(ctx, "Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	h.metrics.RecordConnection()
	if h.otelMetrics != nil {
		h.otelMetrics.RecordConnection(ctx, client.remoteAddr)
		h.otelMetrics.RecordClientCount(ctx, int64(count))
	}

	msg := events.NewMessage(events.MessageTypeConnection, events.ConnectionEvent{
		ClientID: client.id,
		Status:   "connected",
	})
	msg.TraceID = client.traceID
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling connection message", slog.String("error", err.Error()))
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.WarnContext(ctx, "Failed to send connection message - client buffer full")
	}
}

func (h *Hub) removeClient(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	duration := time.Since(client.connectedAt)
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", duration))

	h.metrics.RecordDisconnection(duration)
	if h.otelMetrics != nil {
		h.otelMetrics.RecordDisconnection(ctx, duration, reason)
		h.otelMetrics.RecordClientCount(ctx, int64(count))
	}
}

func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var delivered, slow []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			delivered = append(delivered, client)
		default:
			slow = append(slow, client)
		}
	}

	h.mu.Lock()
	h.messagesSent += int64(len(delivered))
	h.mu.Unlock()

	// A page that cannot keep up is dropped; it reconnects and reloads
	for _, client := range slow {
		h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
			slog.String("client_id", client.id))
		h.metrics.RecordDroppedMessage()
		h.removeClient(client, "slow")
	}

	h.logger.Debug("Broadcast delivered",
		slog.Int("client_count", len(clients)),
		slog.Int("message_size", len(message)),
		slog.Int("fail_count", len(slow)))

	if h.otelMetrics != nil {
		h.otelMetrics.RecordBroadcast(context.Background(), int64(len(slow)))
	}
}

// Broadcast sends an event of the given type to every connected page.
// It never blocks the caller: when the queue is full the event is dropped.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	payload, err := json.Marshal(events.NewMessage(events.MessageType(messageType), data))
	if err != nil {
		h.logger.Error("Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", messageType))
		return
	}

	select {
	case h.broadcast <- payload:
		h.metrics.RecordMessage("sent", int64(len(payload)), true)
	case <-h.quit:
	default:
		h.mu.Lock()
		h.messagesDropped++
		h.mu.Unlock()
		h.metrics.RecordDroppedMessage()
		if h.otelMetrics != nil {
			h.otelMetrics.RecordDroppedMessage(context.Background(), messageType, "queue_full")
		}
		h.logger.Warn("Broadcast queue full, dropping message",
			slog.String("message_type", messageType))
	}
}

// Register adds a client to the hub. It returns false once the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop gracefully stops the hub and closes every client
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	running := h.running
	h.mu.Unlock()

	close(h.quit)
	if running {
		<-h.done
	}
}

// reportMetrics periodically reports hub metrics
func (h *Hub) reportMetrics() {
	ticker := time.NewTicker(h.metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return

		case <-ticker.C:
			depth := int64(len(h.broadcast))
			h.metrics.RecordQueueDepth(depth)
			if h.otelMetrics != nil {
				h.otelMetrics.RecordQueueDepth(context.Background(), depth)
			}

			stats := h.Stats()
			h.logger.Info("WebSocket hub metrics",
				slog.Int("active_clients", stats.ActiveClients),
				slog.Int64("total_connections", stats.TotalConnections),
				slog.Int64("messages_sent", stats.MessagesSent),
				slog.Int64("messages_dropped", stats.MessagesDropped),
				slog.Int64("broadcast_queue", depth))
		}
	}
}

// HubStats is a point-in-time view of the hub counters
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// Stats returns current hub metrics
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HubStats{
		ActiveClients:    len(h.clients),
		TotalConnections: h.totalConnections,
		MessagesSent:     h.messagesSent,
		MessagesDropped:  h.messagesDropped,
	}
}

// Metrics returns the hub's in-process metrics collector
func (h *Hub) Metrics() *Metrics {
	return h.metrics
}

// GetSnapshot returns the in-process metrics for the detailed health view
func (h *Hub) GetSnapshot() map[string]interface{} {
	return h.metrics.GetSnapshot()
}
