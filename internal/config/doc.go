// Package config provides centralized configuration management for the
// stock dashboard. It loads settings from several sources, validates them
// and resolves the directories the application reads from and writes to.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A .env file in the working directory (loaded into the environment)
//	3. A YAML configuration file (config.yaml or configs/config.yaml)
//	4. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern STOCKDASH_* for namespacing:
//
//	STOCKDASH_SERVER_PORT=8501
//	STOCKDASH_DATA_DEFAULT_CSV=yahoo_stock_data_extraction.csv
//	STOCKDASH_DATA_CACHE_TTL=15m
//	STOCKDASH_CHARTS_WIDTH=960
//
// # Path Management
//
// Paths are resolved relative to Paths.BaseDir:
//
//	paths, err := config.NewPaths(cfg.Paths)
//	csvPath := paths.DataFile(cfg.Data.DefaultCSV)
package config
