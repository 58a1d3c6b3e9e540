package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/etnz/cryptofolio/common"
)

// FileBackend stores each key as a file in a directory.
type FileBackend struct {
	dir    string
	logger *common.Logger
}

// NewFileBackend creates a FileBackend rooted at dir, creating it if needed.
func NewFileBackend(logger *common.Logger, dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	logger.Debug().Str("path", dir).Msg("FileBackend opened")
	return &FileBackend{dir: dir, logger: logger}, nil
}

// sanitizeKey makes a key safe for use as a filename.
// Replaces /, \, : with _ and collapses ".." to "_" to prevent path traversal.
func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, sanitizeKey(key))
}

// Read returns the content of key, or ErrNotFound.
func (b *FileBackend) Read(_ context.Context, key string) ([]byte, error) {
	path := b.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("'%s': %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// Write replaces the content of key atomically: the data goes to a temp file in
// the same directory which is then renamed over the target.
func (b *FileBackend) Write(_ context.Context, key string, data []byte) error {
	target := b.path(key)

	tmpFile, err := os.CreateTemp(b.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	b.logger.Trace().Str("key", key).Int("bytes", len(data)).Msg("document written")
	return nil
}

// Close is a no-op, files are closed after each operation.
func (b *FileBackend) Close() error { return nil }
