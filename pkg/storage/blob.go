package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StoredObject describes a persisted blob.
type StoredObject struct {
	URL       string    `json:"url"`
	StorageID string    `json:"storage_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LocalStorage persists uploaded documents on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Upload writes the given bytes under folder and returns the object reference.
// The storage ID keeps the original extension so served files retain their type.
func (s *LocalStorage) Upload(data []byte, originalFilename, folder string) (*StoredObject, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	storageID := path.Join(folder, uuid.NewString()+ext)

	target := filepath.Join(s.baseDir, filepath.FromSlash(storageID))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("prepare upload directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	return &StoredObject{
		URL:       "/files/" + storageID,
		StorageID: storageID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Open returns a read-only handle for a stored object.
func (s *LocalStorage) Open(storageID string) (*os.File, error) {
	file, err := os.Open(s.resolve(storageID))
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	return file, nil
}

// Delete removes a stored object if present.
func (s *LocalStorage) Delete(storageID string) error {
	if err := os.Remove(s.resolve(storageID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

// Path exposes the underlying absolute path (useful for debugging).
func (s *LocalStorage) Path(storageID string) string {
	return s.resolve(storageID)
}

func (s *LocalStorage) resolve(storageID string) string {
	clean := filepath.FromSlash(path.Clean("/" + storageID))
	return filepath.Join(s.baseDir, clean)
}
