// Package storage persists small JSON documents, one per key, with pluggable backends.
//
// Every backend writes a document atomically: a reader sees either the previous
// or the new content of a key, never a partial write.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/etnz/cryptofolio/common"
)

// ErrNotFound is returned by Read when a key has never been written.
var ErrNotFound = errors.New("not found")

// Backend reads and writes whole documents by key.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Close() error
}

// Backend type constants.
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Open creates a backend based on the configuration.
// Supported backends: "file" (default), "badger".
func Open(logger *common.Logger, config *common.StorageConfig) (Backend, error) {
	backend := config.Backend
	if backend == "" {
		backend = BackendFile
	}

	switch backend {
	case BackendFile:
		return NewFileBackend(logger, config.Path)

	case BackendBadger:
		return NewBadgerBackend(logger, config.Path)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: file, badger)", backend)
	}
}
