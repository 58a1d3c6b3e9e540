package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/etnz/cryptofolio/common"
	"github.com/timshannon/badgerhold/v4"
)

// Document is a keyed blob stored in BadgerDB.
type Document struct {
	Key  string `badgerhold:"key"`
	Data []byte
}

// BadgerBackend stores documents in an embedded BadgerHold database.
type BadgerBackend struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewBadgerBackend opens (or creates) a BadgerHold store at the given directory path.
func NewBadgerBackend(logger *common.Logger, path string) (*BadgerBackend, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory %s: %w", path, err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // Disable default badger logger

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("BadgerHold store opened")

	return &BadgerBackend{db: db, logger: logger}, nil
}

// Read returns the content of key, or ErrNotFound.
func (b *BadgerBackend) Read(_ context.Context, key string) ([]byte, error) {
	var doc Document
	err := b.db.Get(key, &doc)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("'%s': %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get key '%s': %w", key, err)
	}
	return doc.Data, nil
}

// Write replaces the content of key in a single transaction.
func (b *BadgerBackend) Write(_ context.Context, key string, data []byte) error {
	doc := Document{Key: key, Data: data}
	if err := b.db.Upsert(key, &doc); err != nil {
		return fmt.Errorf("failed to set key '%s': %w", key, err)
	}
	b.logger.Trace().Str("key", key).Int("bytes", len(data)).Msg("document written")
	return nil
}

// Close closes the BadgerHold database.
func (b *BadgerBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
