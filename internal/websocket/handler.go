package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"stockdash/internal/config"
	apierrors "stockdash/internal/errors"
	"stockdash/internal/infrastructure"
)

// Handler upgrades /ws requests and hands the connection to the hub
type Handler struct {
	hub            *Hub
	upgrader       websocket.Upgrader
	allowedOrigins []string
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
}

// NewHandler creates the upgrade handler. Origins outside allowedOrigins are
// refused unless they match the request host.
func NewHandler(hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *Handler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	h := &Handler{
		hub:            hub,
		allowedOrigins: allowedOrigins,
		logger:         logger.With(slog.String("component", "websocket.handler")),
		errorHandler:   errorHandler,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
		Error:           h.upgradeError,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	// Same-origin pages are always welcome
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}

	h.logger.WarnContext(r.Context(), "WebSocket origin check - origin not allowed",
		slog.String("origin", origin),
		slog.Any("allowed_origins", h.allowedOrigins))
	return false
}

func (h *Handler) upgradeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	h.logger.ErrorContext(r.Context(), "WebSocket upgrade failed",
		slog.Int("status", status),
		slog.String("reason", reason.Error()),
		slog.String("origin", r.Header.Get("Origin")))

	apiErr := apierrors.New(status, apierrors.ErrWebSocketUpgrade.ErrorCode, reason.Error())
	if h.errorHandler == nil {
		http.Error(w, apiErr.Message, status)
		return
	}
	h.errorHandler.HandleError(w, r, apiErr)
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered the request
		return
	}

	reqID := middleware.GetReqID(r.Context())
	client := NewClient(h.hub, NewConnectionWrapper(conn), reqID, h.logger)
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	h.logger.InfoContext(r.Context(), "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("client_id", client.ID()))

	go client.WritePump()
	go client.ReadPump()
}
