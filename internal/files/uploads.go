package files

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockdash/internal/config"
	"stockdash/pkg/contracts/domain"
)

var (
	// ErrUploadNotFound is returned when no stored upload has the given ID
	ErrUploadNotFound = errors.New("upload not found")
	// ErrUploadTooLarge is returned when an upload exceeds the size limit
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
)

// UploadStore keeps user uploaded data files under the uploads directory.
// Files are stored as <uuid>.<ext> so that an ID plus a kind resolve a file.
type UploadStore struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger

	mu    sync.RWMutex
	names map[string]string // upload ID -> original file name
}

// NewUploadStore creates a store writing to dir
func NewUploadStore(dir string, maxBytes int64, logger *slog.Logger) *UploadStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadStore{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logger.With(slog.String("component", "upload_store")),
		names:    make(map[string]string),
	}
}

// Save copies r into a new upload. filename decides the kind and is kept
// for display; the stored name is generated.
func (s *UploadStore) Save(filename string, r io.Reader) (domain.Upload, error) {
	kind, err := KindFromName(filename)
	if err != nil {
		return domain.Upload{}, err
	}

	if err := os.MkdirAll(s.dir, config.DirPermission); err != nil {
		return domain.Upload{}, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return domain.Upload{}, fmt.Errorf("failed to create upload file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	size, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return domain.Upload{}, fmt.Errorf("failed to write upload: %w", err)
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return domain.Upload{}, fmt.Errorf("%w: %s is larger than %d bytes", ErrUploadTooLarge, filepath.Base(filename), s.maxBytes)
	}

	upload := domain.Upload{
		ID:       uuid.NewString(),
		Kind:     kind,
		Filename: filepath.Base(filename),
		Size:     size,
		StoredAt: time.Now().UTC(),
	}
	if err := os.Rename(tmpPath, s.path(upload.ID, kind)); err != nil {
		return domain.Upload{}, fmt.Errorf("failed to store upload: %w", err)
	}

	s.mu.Lock()
	s.names[upload.ID] = upload.Filename
	s.mu.Unlock()

	s.logger.Info("Stored upload",
		slog.String("upload_id", upload.ID),
		slog.String("kind", string(kind)),
		slog.String("filename", upload.Filename),
		slog.Int64("size_bytes", size))

	return upload, nil
}

// Source resolves an upload ID of the given kind to a readable source
func (s *UploadStore) Source(id string, kind domain.UploadKind) (*FileSource, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, id)
	}
	path := s.path(id, kind)
	if !config.FileExists(path) {
		return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, id)
	}
	return NewFileSource(path, kind), nil
}

// Get returns the description of a stored upload
func (s *UploadStore) Get(id string) (domain.Upload, error) {
	for _, kind := range []domain.UploadKind{domain.UploadCSV, domain.UploadXLSX} {
		src, err := s.Source(id, kind)
		if err != nil {
			continue
		}
		return s.describe(id, kind, src.Path())
	}
	return domain.Upload{}, fmt.Errorf("%w: %s", ErrUploadNotFound, id)
}

// List returns every stored upload, newest first
func (s *UploadStore) List() ([]domain.Upload, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read uploads directory: %w", err)
	}

	var uploads []domain.Upload
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind, err := KindFromName(entry.Name())
		if err != nil {
			continue
		}
		id := entry.Name()[:len(entry.Name())-len(filepath.Ext(entry.Name()))]
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		upload, err := s.describe(id, kind, filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		uploads = append(uploads, upload)
	}

	sort.Slice(uploads, func(i, j int) bool {
		return uploads[i].StoredAt.After(uploads[j].StoredAt)
	})
	return uploads, nil
}

// Delete removes a stored upload of any kind
func (s *UploadStore) Delete(id string) error {
	upload, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := os.Remove(s.path(id, upload.Kind)); err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}

	s.mu.Lock()
	delete(s.names, id)
	s.mu.Unlock()

	s.logger.Info("Deleted upload", slog.String("upload_id", id))
	return nil
}

func (s *UploadStore) describe(id string, kind domain.UploadKind, path string) (domain.Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Upload{}, err
	}

	s.mu.RLock()
	name, ok := s.names[id]
	s.mu.RUnlock()
	if !ok {
		name = filepath.Base(path)
	}

	return domain.Upload{
		ID:       id,
		Kind:     kind,
		Filename: name,
		Size:     info.Size(),
		StoredAt: info.ModTime().UTC(),
	}, nil
}

func (s *UploadStore) path(id string, kind domain.UploadKind) string {
	return filepath.Join(s.dir, id+"."+string(kind))
}
