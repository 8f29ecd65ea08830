package config

import (
	"time"

	"stockdash/pkg/contracts"
)

// Application constants for the stock dashboard
const (
	// Application Info
	AppName    = "Stock Dashboard"
	AppVersion = contracts.Version

	// Default data files, looked up in the data directory
	DefaultCSVName  = "yahoo_stock_data_extraction.csv"
	DefaultXLSXName = "yahoo_stock_data_extraction.xlsx"

	// Upload limits
	MaxMultipartMemory = 8 << 20

	// Cache Settings
	DataCacheDuration = 15 * time.Minute

	// WebSocket
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second
	WebSocketWriteWait  = 10 * time.Second
	MaxMessageSize      = 512 * 1024

	// File Permissions
	DirPermission  = 0755
	FilePermission = 0644
)
