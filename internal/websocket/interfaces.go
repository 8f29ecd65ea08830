package websocket

import (
	"time"
)

// Connection is the subset of a gorilla connection the client uses.
// It lets tests drive ReadPump and WritePump without a network.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

// MetricsCollector defines the interface for metrics collection
type MetricsCollector interface {
	RecordConnection()
	RecordDisconnection(duration time.Duration)
	RecordMessage(direction string, size int64, success bool)
	RecordQueueDepth(depth int64)
	RecordDroppedMessage()
	GetSnapshot() map[string]interface{}
	Reset()
}

var _ MetricsCollector = (*Metrics)(nil)
