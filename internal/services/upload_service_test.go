package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stockdash/internal/files"
	"stockdash/internal/infrastructure"
	"stockdash/internal/shared/testutil"
	"stockdash/pkg/contracts/domain"
	"stockdash/pkg/contracts/events"
)

func newTestUploadService(t *testing.T, maxBytes int64) (*UploadService, *MockBroadcaster, *MockCacheInvalidator) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	store := files.NewUploadStore(filepath.Join(t.TempDir(), "uploads"), maxBytes, logger)
	hub := new(MockBroadcaster)
	cache := new(MockCacheInvalidator)
	return NewUploadService(store, nil, cache, hub, infrastructure.NoopBusinessMetrics(), logger), hub, cache
}

func TestUploadServiceStore(t *testing.T) {
	svc, hub, _ := newTestUploadService(t, 1<<20)
	ctx := context.Background()

	hub.On("Broadcast", string(events.MessageTypeUploadStored), mock.MatchedBy(func(e events.UploadStoredEvent) bool {
		return e.Upload.Filename == "prices.csv" && e.Upload.Kind == domain.UploadCSV
	})).Once()

	upload, err := svc.Store(ctx, "prices.csv", strings.NewReader("Date,Close\n2024-01-01,1\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.UploadCSV, upload.Kind)
	assert.Equal(t, int64(24), upload.Size)
	hub.AssertExpectations(t)

	got, err := svc.Get(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, upload.ID, got.ID)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, upload.ID))
	_, err = svc.Get(ctx, upload.ID)
	assert.ErrorIs(t, err, files.ErrUploadNotFound)
}

func TestUploadServiceRejects(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		maxBytes int64
		wantErr  error
	}{
		{"unsupported extension", "prices.txt", "Date\n", 1 << 20, files.ErrUnsupportedFileType},
		{"text named xlsx", "prices.xlsx", "Date,Close\n", 1 << 20, files.ErrUnsupportedFileType},
		{"too large", "prices.csv", strings.Repeat("x", 64), 16, files.ErrUploadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, hub, _ := newTestUploadService(t, tt.maxBytes)

			_, err := svc.Store(context.Background(), tt.filename, strings.NewReader(tt.content))
			assert.ErrorIs(t, err, tt.wantErr)
			hub.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything)
		})
	}
}

func TestUploadServiceInvalidateCache(t *testing.T) {
	svc, hub, cache := newTestUploadService(t, 1<<20)

	cache.On("InvalidateCache").Return(3).Once()
	hub.On("Broadcast", string(events.MessageTypeCacheInvalidated),
		events.CacheInvalidatedEvent{Entries: 3, Reason: "manual"}).Once()

	assert.Equal(t, 3, svc.InvalidateCache(context.Background(), "manual"))
	cache.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestUploadServiceWithoutHub(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	store := files.NewUploadStore(t.TempDir(), 1<<20, logger)
	cache := new(MockCacheInvalidator)
	cache.On("InvalidateCache").Return(0)

	svc := NewUploadService(store, nil, cache, nil, nil, logger)
	_, err := svc.Store(context.Background(), "a.csv", strings.NewReader("Date\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, svc.InvalidateCache(context.Background(), "test"))
}
