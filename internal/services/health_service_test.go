package services

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockdash/internal/config"
	"stockdash/internal/files"
	"stockdash/internal/shared/testutil"
)

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	base := t.TempDir()
	paths, err := config.NewPaths(config.PathsConfig{BaseDir: base, DataDir: "data", UploadsDir: "uploads", LogsDir: "logs"})
	require.NoError(t, err)
	return paths
}

func TestHealthServiceChecks(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	ctx := context.Background()

	tests := []struct {
		name            string
		defaultsPresent bool
		wantReady       string
		wantData        string
	}{
		{"defaults present", true, "ready", "ready"},
		{"defaults missing", false, "ready", "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := new(MockDataStatus)
			data.On("DefaultsPresent").Return(tt.defaultsPresent)
			data.On("CacheStats").Return(files.CacheStats{Entries: 2, MaxEntries: 16})
			hub := new(MockClientCounter)
			hub.On("ClientCount").Return(3)

			hs := NewHealthService("1.2.3", "2026-01-01", "abc", testPaths(t), data, hub, logger)

			health := hs.HealthCheck(ctx)
			assert.Equal(t, "ok", health.Status)
			assert.Equal(t, "1.2.3", health.Version)

			ready := hs.ReadinessCheck(ctx)
			assert.Equal(t, tt.wantReady, ready.Status)
			assert.Equal(t, tt.wantData, ready.Services["data"].(ServiceHealth).Status)
			assert.Equal(t, "ready", ready.Services["uploads"].(ServiceHealth).Status)
			assert.Equal(t, "ready", ready.Services["websocket"].(ServiceHealth).Status)

			live := hs.LivenessCheck(ctx)
			assert.Equal(t, "alive", live.Status)
			assert.Equal(t, runtime.Version(), live.Runtime["go_version"])
		})
	}
}

func TestHealthServiceNotReadyWithoutDependencies(t *testing.T) {
	hs := NewHealthService("1.0.0", "", "", nil, nil, nil, nil)

	ready := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", ready.Status)
	assert.Equal(t, "not_ready", ready.Services["data"].(ServiceHealth).Status)

	stats, err := hs.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.WebSocketClients)
	assert.Zero(t, stats.UploadFiles)
}

func TestHealthServiceVersion(t *testing.T) {
	hs := NewHealthService("1.0.0", "2026-01-01T00:00:00Z", "deadbeef", nil, nil, nil, nil)

	v := hs.Version()
	assert.Equal(t, "1.0.0", v["version"])
	assert.Equal(t, "2026-01-01T00:00:00Z", v["build_time"])
	assert.Equal(t, "deadbeef", v["build_id"])
	assert.Equal(t, "v1", v["api_version"])
	assert.NotContains(t, v, "git_commit")

	v = NewHealthService("1.0.0", "", "", nil, nil, nil, nil).Version()
	assert.NotContains(t, v, "build_time")
}

func TestHealthServiceSystemStats(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, os.MkdirAll(paths.UploadsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(paths.UploadsDir, "a.csv"), []byte("Date\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(paths.UploadsDir, "b.xlsx"), []byte("PK"), 0644))

	data := new(MockDataStatus)
	data.On("DefaultsPresent").Return(false)
	data.On("CacheStats").Return(files.CacheStats{Entries: 1, Hits: 4, Misses: 1})
	hub := new(MockClientCounter)
	hub.On("ClientCount").Return(2)

	hs := NewHealthService("1.0.0", "", "", paths, data, hub, nil)
	stats, err := hs.SystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.UploadFiles)
	assert.Equal(t, int64(7), stats.UploadSizeBytes)
	assert.Equal(t, 2, stats.WebSocketClients)
	assert.Equal(t, int64(4), stats.Cache.Hits)

	detailed := hs.GetDetailedHealth(context.Background())
	require.Contains(t, detailed, "readiness")
	assert.Contains(t, detailed, "stats")

	readiness := detailed["readiness"].(HealthStatus)
	assert.Equal(t, "ready", readiness.Status, "missing defaults only degrade the data check")
	assert.Equal(t, "degraded", readiness.Services["data"].(ServiceHealth).Status)
	data.AssertExpectations(t)
}
