package files

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"

	"stockdash/pkg/contracts/domain"
)

// ErrUnsupportedFileType is returned for files that are neither CSV nor XLSX
var ErrUnsupportedFileType = errors.New("unsupported file type")

// Source is a data file the dashboard can load
type Source interface {
	// Name is a short label used in logs and messages
	Name() string
	Kind() domain.UploadKind
	Open() (io.ReadCloser, error)
	// Fingerprint identifies the current content of the source
	Fingerprint() (string, error)
}

// KindFromName infers the file kind from its extension
func KindFromName(name string) (domain.UploadKind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return domain.UploadCSV, nil
	case ".xlsx":
		return domain.UploadXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Base(name))
	}
}

// FileSource is a Source backed by a file on disk
type FileSource struct {
	path string
	kind domain.UploadKind
}

// NewFileSource creates a source for the file at path
func NewFileSource(path string, kind domain.UploadKind) *FileSource {
	return &FileSource{path: path, kind: kind}
}

// Name returns the base name of the file
func (s *FileSource) Name() string {
	return filepath.Base(s.path)
}

// Path returns the full path of the file
func (s *FileSource) Path() string {
	return s.path
}

// Kind returns the file kind
func (s *FileSource) Kind() domain.UploadKind {
	return s.kind
}

// Open opens the file for reading
func (s *FileSource) Open() (io.ReadCloser, error) {
	return os.Open(s.path)
}

// Fingerprint returns the hex blake2b-256 digest of the file content
func (s *FileSource) Fingerprint() (string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", s.Name(), err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
