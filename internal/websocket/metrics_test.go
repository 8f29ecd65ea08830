package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Connections(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordConnection()
	metrics.RecordConnection()
	assert.Equal(t, int64(2), metrics.TotalConnections)
	assert.Equal(t, int64(2), metrics.MaxConcurrent)

	metrics.RecordDisconnection(2 * time.Second)
	metrics.RecordDisconnection(4 * time.Second)
	assert.Equal(t, int64(0), metrics.ActiveConnections)
	assert.Equal(t, 3*time.Second, metrics.AvgConnectionTime)

	// Never goes negative
	metrics.RecordDisconnection(time.Second)
	assert.Equal(t, int64(0), metrics.ActiveConnections)
}

func TestMetrics_RecordMessage(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordMessage("sent", 256, true)
	metrics.RecordMessage("received", 128, true)
	metrics.RecordMessage("sent", 64, false)
	metrics.RecordMessage("sideways", 1, true)

	assert.Equal(t, int64(2), metrics.MessagesSent)
	assert.Equal(t, int64(320), metrics.BytesSent)
	assert.Equal(t, int64(1), metrics.MessagesReceived)
	assert.Equal(t, int64(128), metrics.BytesReceived)
	assert.Equal(t, int64(1), metrics.MessageErrors)
}

func TestMetrics_RecordQueueDepth(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordQueueDepth(10)
	metrics.RecordQueueDepth(20)
	metrics.RecordQueueDepth(0)

	assert.Equal(t, int64(20), metrics.MaxQueueDepth)
	// 10, then (90+20)/10 = 11, then 99/10 = 9
	assert.Equal(t, int64(9), metrics.AvgQueueDepth)
}

func TestMetrics_GetSnapshot(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordConnection()
	metrics.RecordConnection()
	metrics.RecordDisconnection(time.Minute)
	metrics.RecordMessage("sent", 100, true)
	metrics.RecordMessage("sent", 200, true)
	metrics.RecordMessage("received", 50, true)
	metrics.RecordDroppedMessage()

	snapshot := metrics.GetSnapshot()

	connections := snapshot["connections"].(map[string]interface{})
	messages := snapshot["messages"].(map[string]interface{})
	assert.Equal(t, int64(1), connections["active"])
	assert.Equal(t, int64(2), connections["total"])
	assert.Equal(t, int64(60000), connections["avg_duration_ms"])
	assert.Equal(t, int64(2), messages["sent"])
	assert.Equal(t, int64(1), messages["received"])
	assert.Equal(t, int64(300), messages["bytes_sent"])
	assert.Equal(t, int64(1), messages["dropped"])
	assert.Contains(t, snapshot, "queue")
	assert.Contains(t, snapshot, "uptime_seconds")
}

func TestMetrics_Reset(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordConnection()
	metrics.RecordMessage("sent", 100, true)
	metrics.RecordQueueDepth(10)
	metrics.RecordDroppedMessage()

	metrics.Reset()

	assert.Equal(t, int64(0), metrics.TotalConnections)
	assert.Equal(t, int64(0), metrics.ActiveConnections)
	assert.Equal(t, int64(0), metrics.MessagesSent)
	assert.Equal(t, int64(0), metrics.BytesSent)
	assert.Equal(t, int64(0), metrics.DroppedMessages)
	assert.Equal(t, int64(0), metrics.MaxQueueDepth)
	assert.WithinDuration(t, time.Now(), metrics.LastReset, time.Second)
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	metrics := NewMetrics()
	const workers, ops = 10, 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				metrics.RecordConnection()
				metrics.RecordMessage("sent", 100, true)
				metrics.RecordMessage("received", 50, true)
				metrics.RecordDroppedMessage()
				metrics.GetSnapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*ops), metrics.TotalConnections)
	assert.Equal(t, int64(workers*ops), metrics.MessagesSent)
	assert.Equal(t, int64(workers*ops), metrics.MessagesReceived)
	assert.Equal(t, int64(workers*ops), metrics.DroppedMessages)
}
