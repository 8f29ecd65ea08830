package services

import (
	"github.com/stretchr/testify/mock"

	"stockdash/internal/files"
)

// MockBroadcaster is a mock for the Broadcaster interface
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(messageType string, data interface{}) {
	m.Called(messageType, data)
}

// MockCacheInvalidator is a mock for the CacheInvalidator interface
type MockCacheInvalidator struct {
	mock.Mock
}

func (m *MockCacheInvalidator) InvalidateCache() int {
	args := m.Called()
	return args.Int(0)
}

// MockDataStatus is a mock for the DataStatus interface
type MockDataStatus struct {
	mock.Mock
}

func (m *MockDataStatus) DefaultsPresent() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockDataStatus) CacheStats() files.CacheStats {
	args := m.Called()
	return args.Get(0).(files.CacheStats)
}

// MockClientCounter is a mock for the ClientCounter interface
type MockClientCounter struct {
	mock.Mock
}

func (m *MockClientCounter) ClientCount() int {
	args := m.Called()
	return args.Int(0)
}
