package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved directories used by the application.
// This is the single source of truth for file system locations.
type Paths struct {
	BaseDir    string
	DataDir    string
	UploadsDir string
	LogsDir    string
}

// NewPaths resolves the configured directories into absolute paths.
// Relative entries are joined onto BaseDir, which itself is made absolute
// against the current working directory.
func NewPaths(pc PathsConfig) (*Paths, error) {
	base := pc.BaseDir
	if base == "" {
		base = "."
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %q: %w", base, err)
	}

	resolve := func(dir, fallback string) string {
		if dir == "" {
			dir = fallback
		}
		if filepath.IsAbs(dir) {
			return filepath.Clean(dir)
		}
		return filepath.Join(absBase, dir)
	}

	return &Paths{
		BaseDir:    absBase,
		DataDir:    resolve(pc.DataDir, "."),
		UploadsDir: resolve(pc.UploadsDir, "uploads"),
		LogsDir:    resolve(pc.LogsDir, "logs"),
	}, nil
}

// EnsureDirectories creates the writable directories if they don't exist.
// The data directory is read-only input and is not created.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.UploadsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, DirPermission); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Default().Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// DataFile returns the path of a file in the data directory
func (p *Paths) DataFile(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.DataDir, name)
}

// UploadFile returns the path of a stored upload
func (p *Paths) UploadFile(name string) string {
	return filepath.Join(p.UploadsDir, filepath.Base(name))
}

// LogPathResolution logs the resolved directories for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Info("Resolved application paths",
		slog.Group("paths",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("uploads", p.UploadsDir),
			slog.String("logs", p.LogsDir),
		),
	)
}

// FileExists checks if a regular file exists
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
