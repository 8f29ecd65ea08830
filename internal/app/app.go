package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"stockdash/internal/charts"
	"stockdash/internal/config"
	apierrors "stockdash/internal/errors"
	"stockdash/internal/files"
	"stockdash/internal/infrastructure"
	customMiddleware "stockdash/internal/middleware"
	"stockdash/internal/services"
	handlers "stockdash/internal/transport/http"
	"stockdash/internal/validation"
	ws "stockdash/internal/websocket"
)

const (
	VERSION = config.AppVersion
	AppName = "Stock Data Visualization"

	// Compression level for HTML and JSON responses
	compressLevel = 5
)

var (
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(VERSION))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	WebSocketHub  *ws.Hub
	Services      *ServiceContainer
	ErrorHandler  *apierrors.ErrorHandler
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Dashboard *services.DashboardService
	Uploads   *services.UploadService
	Health    *services.HealthService
}

// NewApplication loads configuration from the environment and builds the application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New wires every component from an already loaded configuration.
// The websocket hub is running when New returns; Stop releases it.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", VERSION))

	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	logger.Info("Ensuring required directories exist")
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		logger.Warn("Business metrics unavailable", slog.String("error", err.Error()))
		metrics = infrastructure.NoopBusinessMetrics()
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
	}

	if err := app.initializeServices(); err != nil {
		otelProviders.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	validator := validation.NewFileValidator(a.Logger)

	// A missing or empty data directory only means the user must upload files
	if err := validator.ValidateDataDirectory(a.Paths.DataDir); err != nil {
		a.Logger.Warn("Data directory check failed",
			slog.String("path", a.Paths.DataDir),
			slog.String("error", err.Error()))
	}
	if err := validator.ValidateOutputDirectory(a.Paths.UploadsDir); err != nil {
		return fmt.Errorf("uploads directory unusable: %w", err)
	}

	hubOpts := []ws.HubOption{ws.WithKeepalive(a.Config.WebSocket)}
	if a.OTelProviders.MeterProvider != nil {
		wsMetrics, err := ws.NewOTelMetrics(a.OTelProviders.MeterProvider)
		if err != nil {
			return fmt.Errorf("failed to initialize WebSocket metrics: %w", err)
		}
		hubOpts = append(hubOpts, ws.WithOTelMetrics(wsMetrics))
	}
	hub := ws.NewHub(a.Logger, hubOpts...)
	hub.Start()
	a.WebSocketHub = hub

	discovery := files.NewDiscovery(a.Paths.DataDir)
	uploads := files.NewUploadStore(a.Paths.UploadsDir, a.Config.Data.MaxUploadBytes, a.Logger)
	renderer := charts.NewRenderer(a.Config.Charts)

	dashboard := services.NewDashboardService(a.Config.Data, discovery, uploads, renderer, a.Metrics, a.Logger)
	uploadService := services.NewUploadService(uploads, validator, dashboard, hub, a.Metrics, a.Logger)
	healthService := services.NewHealthService(VERSION, BuildTime, BuildID, a.Paths, dashboard, hub, a.Logger)

	a.Services = &ServiceContainer{
		Dashboard: dashboard,
		Uploads:   uploadService,
		Health:    healthService,
	}

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Only middleware that leaves the ResponseWriter alone runs before /ws
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	wsHandler := ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger, a.ErrorHandler)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Handle("/ws", wsHandler)

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.DefaultSecureHeaders().Handler)
		r.Use(customMiddleware.CORS(a.getCORSConfig()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(customMiddleware.AuditLog(a.Logger))
		r.Use(customMiddleware.Compress(compressLevel))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

		a.setupHTMLRoutes(r)
		a.setupAPIRoutes(r)
	})

	// Prometheus scrape endpoint stays outside the middleware group
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.Router = r
}

// setupHTMLRoutes registers the server-rendered dashboard page
func (a *Application) setupHTMLRoutes(r chi.Router) {
	validator := customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler, a.Config.Data.MaxUploadBytes)
	pages, err := handlers.NewPageHandler(a.Services.Dashboard, a.Services.Uploads, validator, a.Config.Data.MaxUploadBytes, a.Logger)
	if err != nil {
		// Templates are embedded; a parse failure is a build defect
		a.Logger.Error("Dashboard page unavailable", slog.String("error", err.Error()))
		return
	}
	pages.RegisterRoutes(r)
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validator := customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler, a.Config.Data.MaxUploadBytes)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/health/detailed", healthHandler.DetailedHealth)
		r.Get("/version", healthHandler.Version)

		r.Mount("/metrics", handlers.NewMetricsHandler(a.Services.Health, a.ErrorHandler).Routes())

		handlers.NewDashboardHandler(a.Services.Dashboard, validator, a.Logger, a.ErrorHandler).RegisterRoutes(r)
		handlers.NewUploadHandler(a.Services.Uploads, validator, a.Logger, a.ErrorHandler).RegisterRoutes(r)

		r.Post("/logs", handlers.NewClientLogHandler(a.Logger, a.ErrorHandler).Handle)
	})
}

// getCORSConfig returns the CORS configuration. With CORS disabled only the
// dashboard's own origin is accepted.
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedOrigins: []string{
			fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
			fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
		},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		AllowCredentials: false,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	if a.Config.Security.EnableCORS && len(a.Config.Security.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = append(cfg.AllowedOrigins, a.Config.Security.AllowedOrigins...)
	}

	a.Logger.Info("CORS configured", slog.Any("allowed_origins", cfg.AllowedOrigins))
	return cfg
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts serving in the background. A listener failure cancels ctx
// through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", VERSION),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var serverErr error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			serverErr = fmt.Errorf("server shutdown error: %w", err)
		}
	}

	// Hijacked websocket connections are not tracked by Shutdown
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return serverErr
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	// ctx may already be cancelled; shutdown gets its own deadline
	return a.Stop(context.Background())
}

// performStartupHealthCheck checks writable directories and the default data files
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	directories := map[string]string{
		"Uploads": a.Paths.UploadsDir,
		"Logs":    a.Paths.LogsDir,
	}

	for name, dir := range directories {
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), config.FilePermission); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
		} else {
			os.Remove(testFile)
		}
	}

	for _, name := range []string{a.Config.Data.DefaultCSV, a.Config.Data.DefaultXLSX} {
		if path := a.Paths.DataFile(name); !config.FileExists(path) {
			warnings = append(warnings, fmt.Sprintf("default data file not found: %s", path))
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
