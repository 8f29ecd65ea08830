package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"stockdash/internal/config"
	"stockdash/internal/files"
	"stockdash/internal/infrastructure"
	"stockdash/pkg/contracts"
)

// DataStatus reports the state of the data sources
type DataStatus interface {
	DefaultsPresent() bool
	CacheStats() files.CacheStats
}

// ClientCounter reports how many dashboards are connected
type ClientCounter interface {
	ClientCount() int
}

// MetricsReporter is implemented by components that keep in-process counters
type MetricsReporter interface {
	GetSnapshot() map[string]interface{}
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	paths     *config.Paths
	data      DataStatus
	hub       ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64          `json:"uptime_seconds"`
	UploadFiles      int              `json:"upload_files"`
	UploadSizeBytes  int64            `json:"upload_size_bytes"`
	WebSocketClients int              `json:"websocket_clients"`
	Cache            files.CacheStats `json:"cache"`
	GoVersion        string           `json:"go_version"`
	OS               string           `json:"os"`
	Arch             string           `json:"arch"`
}

// NewHealthService creates a new health service. data and hub may be nil.
func NewHealthService(version, buildTime, buildID string, paths *config.Paths, data DataStatus, hub ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime),
		slog.String("build_id", buildID))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		buildID:   buildID,
		paths:     paths,
		data:      data,
		hub:       hub,
		startTime: time.Now(),
		logger:    infrastructure.WithComponent(logger, "health_service"),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status. Missing default files degrade the
// data service without making the application unready, since uploads still work.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["websocket"] = hs.checkWebSocketHealth()
	status.Services["data"] = hs.checkDataHealth()
	status.Services["uploads"] = hs.checkUploadsHealth()

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status == "not_ready" {
			status.Status = "not_ready"
			break
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"api_version":  contracts.APIVersion,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}
	if contracts.GitCommit != "unknown" {
		result["git_commit"] = contracts.GitCommit
	}

	return result
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}

	if hs.paths != nil {
		entries, err := os.ReadDir(hs.paths.UploadsDir)
		if err != nil && !os.IsNotExist(err) {
			return stats, fmt.Errorf("failed to read uploads directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if info, err := entry.Info(); err == nil {
				stats.UploadFiles++
				stats.UploadSizeBytes += info.Size()
			}
		}
	}
	if hs.hub != nil {
		stats.WebSocketClients = hs.hub.ClientCount()
	}
	if hs.data != nil {
		stats.Cache = hs.data.CacheStats()
	}

	return stats, nil
}

// checkWebSocketHealth checks WebSocket service health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "WebSocket hub not initialized",
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("WebSocket service is healthy (%d clients)", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkDataHealth reports whether the default files can be loaded
func (hs *HealthService) checkDataHealth() ServiceHealth {
	if hs.data == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "Dashboard service not initialized",
		}
	}

	if !hs.data.DefaultsPresent() {
		return ServiceHealth{
			Status:  "degraded",
			Message: msgDefaultsMissing,
		}
	}

	stats := hs.data.CacheStats()
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("Default files present, %d cached loads", stats.Entries),
	}
}

// checkUploadsHealth checks that uploads can be written
func (hs *HealthService) checkUploadsHealth() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "Paths not configured",
		}
	}

	dir := hs.paths.UploadsDir
	if err := os.MkdirAll(dir, config.DirPermission); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Cannot create uploads directory: %v", err),
		}
	}

	probe, err := os.CreateTemp(dir, ".health_*")
	if err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Cannot write to uploads directory: %v", err),
		}
	}
	probe.Close()
	os.Remove(filepath.Clean(probe.Name()))

	return ServiceHealth{
		Status:  "ready",
		Message: "Uploads directory is writable",
	}
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	stats, _ := hs.SystemStats(ctx)

	detailed := map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     stats,
	}
	if reporter, ok := hs.hub.(MetricsReporter); ok {
		detailed["websocket"] = reporter.GetSnapshot()
	}
	return detailed
}
