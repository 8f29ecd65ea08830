package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"stockdash/pkg/contracts/domain"
)

// sniffLen is how much of an upload is inspected to detect its content type
const sniffLen = 3072

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeZip  = "application/zip"
	mimeText = "text/plain"
)

// ErrContentMismatch is returned when file content does not match its extension
var ErrContentMismatch = errors.New("file content does not match its type")

// FileValidator checks directories at startup and the content of uploads
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateDataDirectory checks that dir exists and logs how many data files it holds.
// A directory without data files is not an error; uploads can still be used.
func (v *FileValidator) ValidateDataDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("Data directory does not exist",
			slog.String("directory", dir))
		return fmt.Errorf("data directory %s does not exist", dir)
	}
	if err != nil {
		v.logger.Error("Failed to stat data directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		v.logger.Error("Data path is not a directory",
			slog.String("path", dir))
		return fmt.Errorf("%s is not a directory", dir)
	}

	counts := make(map[string]int)
	for _, pattern := range []string{"*.csv", "*.xlsx"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return fmt.Errorf("failed to check for files: %w", err)
		}
		counts[pattern] = len(matches)
	}

	if counts["*.csv"]+counts["*.xlsx"] == 0 {
		v.logger.Warn("No data files found",
			slog.String("directory", dir))
		return nil
	}

	v.logger.Info("Data directory validated",
		slog.String("directory", dir),
		slog.Int("csv_files", counts["*.csv"]),
		slog.Int("xlsx_files", counts["*.xlsx"]))
	return nil
}

// ValidateOutputDirectory ensures dir exists or can be created, and is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

// CheckContent reports whether head, the first bytes of a file, looks like kind.
// XLSX files must be zip archives and CSV files must be text.
func (v *FileValidator) CheckContent(kind domain.UploadKind, head []byte) error {
	detected := mimetype.Detect(head)

	var ok bool
	switch kind {
	case domain.UploadXLSX:
		ok = detected.Is(mimeXLSX) || detected.Is(mimeZip)
	case domain.UploadCSV:
		ok = len(head) == 0 || isText(detected)
	}

	if !ok {
		v.logger.Warn("Upload content rejected",
			slog.String("kind", string(kind)),
			slog.String("detected", detected.String()))
		return fmt.Errorf("%w: expected %s, detected %s", ErrContentMismatch, kind, detected.String())
	}
	return nil
}

// Sniff reads the head of r, checks it with CheckContent and returns a reader
// that yields the full content again.
func (v *FileValidator) Sniff(kind domain.UploadKind, r io.Reader) (io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	if err := v.CheckContent(kind, head); err != nil {
		return nil, err
	}
	return io.MultiReader(bytes.NewReader(head), r), nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(mimeText) {
			return true
		}
	}
	return false
}
