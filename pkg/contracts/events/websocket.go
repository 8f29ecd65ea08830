// Package events contains event contract definitions for WebSocket
// communication between the dashboard server and open browser pages.
package events

import (
	"time"

	"stockdash/pkg/contracts/domain"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Connection messages
	MessageTypeConnection MessageType = "connection"
	MessageTypeError      MessageType = "error"

	// Data messages
	MessageTypeUploadStored     MessageType = "upload:stored"
	MessageTypeCacheInvalidated MessageType = "cache:invalidated"
)

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// NewMessage stamps a message of the given type
func NewMessage(t MessageType, data interface{}) WebSocketMessage {
	return WebSocketMessage{Type: t, Timestamp: time.Now().UTC(), Data: data}
}

// ConnectionEvent is sent to a client right after it connects
type ConnectionEvent struct {
	ClientID string `json:"client_id"`
	Status   string `json:"status"`
}

// UploadStoredEvent announces a newly stored upload
type UploadStoredEvent struct {
	Upload domain.Upload `json:"upload"`
}

// CacheInvalidatedEvent announces that memoized loads were dropped
type CacheInvalidatedEvent struct {
	Entries int    `json:"entries"`
	Reason  string `json:"reason"`
}

// ErrorEvent carries an error to the client
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
