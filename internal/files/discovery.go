package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"stockdash/pkg/contracts/domain"
)

// ErrDefaultFileMissing is returned when a default data file does not exist.
// It wraps fs.ErrNotExist.
var ErrDefaultFileMissing = fmt.Errorf("default data file missing: %w", fs.ErrNotExist)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string            `json:"path"`
	Name    string            `json:"name"`
	Kind    domain.UploadKind `json:"kind"`
	Size    int64             `json:"size"`
	ModTime time.Time         `json:"mod_time"`
}

// Discovery locates data files in the data directory
type Discovery struct {
	dataDir string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(dataDir string) *Discovery {
	return &Discovery{dataDir: dataDir}
}

// DataDir returns the directory searched by the discovery
func (d *Discovery) DataDir() string {
	return d.dataDir
}

// FindDataFiles lists the CSV and XLSX files in the data directory, oldest first
func (d *Discovery) FindDataFiles() ([]FileInfo, error) {
	entries, err := os.ReadDir(d.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", d.dataDir, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind, err := KindFromName(entry.Name())
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(d.dataDir, entry.Name()),
			Name:    entry.Name(),
			Kind:    kind,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.Before(files[j].ModTime)
	})
	return files, nil
}

// Default resolves one default file by name
func (d *Discovery) Default(name string, kind domain.UploadKind) (*FileSource, error) {
	path := d.resolve(name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDefaultFileMissing, filepath.Base(path))
	}
	return NewFileSource(path, kind), nil
}

// Defaults resolves the default CSV and XLSX files by name. Both must exist;
// the error lists every missing file and matches ErrDefaultFileMissing.
func (d *Discovery) Defaults(csvName, xlsxName string) (*FileSource, *FileSource, error) {
	csvSource, csvErr := d.Default(csvName, domain.UploadCSV)
	xlsxSource, xlsxErr := d.Default(xlsxName, domain.UploadXLSX)

	var missing []string
	if csvErr != nil {
		missing = append(missing, filepath.Base(d.resolve(csvName)))
	}
	if xlsxErr != nil {
		missing = append(missing, filepath.Base(d.resolve(xlsxName)))
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrDefaultFileMissing, strings.Join(missing, ", "))
	}

	return csvSource, xlsxSource, nil
}

// DefaultsPresent reports whether both default files exist
func (d *Discovery) DefaultsPresent(csvName, xlsxName string) bool {
	_, _, err := d.Defaults(csvName, xlsxName)
	return err == nil
}

func (d *Discovery) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.dataDir, name)
}

// IsMissing reports whether err means a data file does not exist
func IsMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
