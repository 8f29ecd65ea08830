package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the namespace for every environment variable read by Load.
const EnvPrefix = "STOCKDASH"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Data      DataConfig      `yaml:"data" envconfig:"DATA"`
	Charts    ChartsConfig    `yaml:"charts" envconfig:"CHARTS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8501"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"60s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8501"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"100"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/stockdash.log"`
}

// PathsConfig contains file system paths configuration.
// Relative directories are resolved against BaseDir.
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR" default:"."`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" default:"."`
	UploadsDir string `yaml:"uploads_dir" envconfig:"UPLOADS_DIR" default:"uploads"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// DataConfig controls how datasets are located, cached and displayed
type DataConfig struct {
	DefaultCSV      string        `yaml:"default_csv" envconfig:"DEFAULT_CSV" default:"yahoo_stock_data_extraction.csv"`
	DefaultXLSX     string        `yaml:"default_xlsx" envconfig:"DEFAULT_XLSX" default:"yahoo_stock_data_extraction.xlsx"`
	CacheTTL        time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" default:"15m"`
	CacheMaxEntries int           `yaml:"cache_max_entries" envconfig:"CACHE_MAX_ENTRIES" default:"16"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"33554432"`
	MaxDisplayRows  int           `yaml:"max_display_rows" envconfig:"MAX_DISPLAY_ROWS" default:"500"`
}

// ChartsConfig sets the PNG canvas used by the chart renderer
type ChartsConfig struct {
	Width   int `yaml:"width" envconfig:"WIDTH" default:"960"`
	Height  int `yaml:"height" envconfig:"HEIGHT" default:"480"`
	MaxBars int `yaml:"max_bars" envconfig:"MAX_BARS" default:"120"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// Load loads configuration from a .env file, environment variables and config file
func Load() (*Config, error) {
	// A missing .env file is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := getConfigFilePath(); configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg, explicitEnv())
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// explicitEnv reports which variables were set in the environment, so that
// envconfig defaults do not mask values from the config file.
func explicitEnv() func(key string) bool {
	return func(key string) bool {
		_, ok := os.LookupEnv(EnvPrefix + "_" + key)
		return ok
	}
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(fileConfig, envConfig Config, isSet func(key string) bool) Config {
	pickInt := func(key string, env *int, file int) {
		if !isSet(key) && file != 0 {
			*env = file
		}
	}
	pickInt64 := func(key string, env *int64, file int64) {
		if !isSet(key) && file != 0 {
			*env = file
		}
	}
	pickDur := func(key string, env *time.Duration, file time.Duration) {
		if !isSet(key) && file != 0 {
			*env = file
		}
	}
	pickStr := func(key string, env *string, file string) {
		if !isSet(key) && file != "" {
			*env = file
		}
	}

	pickInt("SERVER_PORT", &envConfig.Server.Port, fileConfig.Server.Port)
	pickDur("SERVER_READ_TIMEOUT", &envConfig.Server.ReadTimeout, fileConfig.Server.ReadTimeout)
	pickDur("SERVER_WRITE_TIMEOUT", &envConfig.Server.WriteTimeout, fileConfig.Server.WriteTimeout)
	pickDur("SERVER_IDLE_TIMEOUT", &envConfig.Server.IdleTimeout, fileConfig.Server.IdleTimeout)
	pickDur("SERVER_SHUTDOWN_TIMEOUT", &envConfig.Server.ShutdownTimeout, fileConfig.Server.ShutdownTimeout)
	pickDur("SERVER_REQUEST_TIMEOUT", &envConfig.Server.RequestTimeout, fileConfig.Server.RequestTimeout)

	if !isSet("SECURITY_ALLOWED_ORIGINS") && len(fileConfig.Security.AllowedOrigins) > 0 {
		envConfig.Security.AllowedOrigins = fileConfig.Security.AllowedOrigins
	}

	pickStr("LOGGING_LEVEL", &envConfig.Logging.Level, fileConfig.Logging.Level)
	pickStr("LOGGING_OUTPUT", &envConfig.Logging.Output, fileConfig.Logging.Output)
	pickStr("LOGGING_FILE_PATH", &envConfig.Logging.FilePath, fileConfig.Logging.FilePath)

	pickStr("PATHS_BASE_DIR", &envConfig.Paths.BaseDir, fileConfig.Paths.BaseDir)
	pickStr("PATHS_DATA_DIR", &envConfig.Paths.DataDir, fileConfig.Paths.DataDir)
	pickStr("PATHS_UPLOADS_DIR", &envConfig.Paths.UploadsDir, fileConfig.Paths.UploadsDir)
	pickStr("PATHS_LOGS_DIR", &envConfig.Paths.LogsDir, fileConfig.Paths.LogsDir)

	pickStr("DATA_DEFAULT_CSV", &envConfig.Data.DefaultCSV, fileConfig.Data.DefaultCSV)
	pickStr("DATA_DEFAULT_XLSX", &envConfig.Data.DefaultXLSX, fileConfig.Data.DefaultXLSX)
	pickDur("DATA_CACHE_TTL", &envConfig.Data.CacheTTL, fileConfig.Data.CacheTTL)
	pickInt("DATA_CACHE_MAX_ENTRIES", &envConfig.Data.CacheMaxEntries, fileConfig.Data.CacheMaxEntries)
	pickInt64("DATA_MAX_UPLOAD_BYTES", &envConfig.Data.MaxUploadBytes, fileConfig.Data.MaxUploadBytes)
	pickInt("DATA_MAX_DISPLAY_ROWS", &envConfig.Data.MaxDisplayRows, fileConfig.Data.MaxDisplayRows)

	pickInt("CHARTS_WIDTH", &envConfig.Charts.Width, fileConfig.Charts.Width)
	pickInt("CHARTS_HEIGHT", &envConfig.Charts.Height, fileConfig.Charts.Height)
	pickInt("CHARTS_MAX_BARS", &envConfig.Charts.MaxBars, fileConfig.Charts.MaxBars)

	return envConfig
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Data.DefaultCSV == "" || c.Data.DefaultXLSX == "" {
		return fmt.Errorf("default csv and xlsx file names must be set")
	}

	if c.Data.CacheMaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive")
	}

	if c.Data.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}

	if c.Charts.Width < 200 || c.Charts.Height < 150 {
		return fmt.Errorf("chart size %dx%d is too small", c.Charts.Width, c.Charts.Height)
	}

	if c.Charts.MaxBars <= 0 {
		return fmt.Errorf("chart max bars must be positive")
	}

	// JSON is the only supported format
	c.Logging.Format = "json"

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/stockdash.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8501,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8501"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   100,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/stockdash.log",
		},
		Paths: PathsConfig{
			BaseDir:    ".",
			DataDir:    ".",
			UploadsDir: "uploads",
			LogsDir:    "logs",
		},
		Data: DataConfig{
			DefaultCSV:      DefaultCSVName,
			DefaultXLSX:     DefaultXLSXName,
			CacheTTL:        DataCacheDuration,
			CacheMaxEntries: 16,
			MaxUploadBytes:  32 << 20,
			MaxDisplayRows:  500,
		},
		Charts: ChartsConfig{
			Width:   960,
			Height:  480,
			MaxBars: 120,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
		},
	}
}
