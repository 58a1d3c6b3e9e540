package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/etnz/cryptofolio/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns one fresh instance of every backend.
func backends(t *testing.T) map[string]Backend {
	t.Helper()
	logger := common.NewSilentLogger()

	file, err := NewFileBackend(logger, t.TempDir())
	require.NoError(t, err)

	badger, err := NewBadgerBackend(logger, t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		file.Close()
		badger.Close()
	})
	return map[string]Backend{BackendFile: file, BackendBadger: badger}
}

func TestBackend_ReadWrite(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Read(ctx, "portfolio.json")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotFound))

			require.NoError(t, b.Write(ctx, "portfolio.json", []byte(`{"BTC": 1}`)))
			data, err := b.Read(ctx, "portfolio.json")
			require.NoError(t, err)
			assert.Equal(t, `{"BTC": 1}`, string(data))

			require.NoError(t, b.Write(ctx, "portfolio.json", []byte(`{"BTC": 2}`)))
			data, err = b.Read(ctx, "portfolio.json")
			require.NoError(t, err)
			assert.Equal(t, `{"BTC": 2}`, string(data))
		})
	}
}

func TestBackend_ConcurrentReadsSeeWholeDocuments(t *testing.T) {
	ctx := context.Background()
	small := []byte(`{"history": []}`)
	large := make([]byte, 1<<16)
	for i := range large {
		large[i] = 'x'
	}

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Write(ctx, "doc", small))

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					if i%2 == 0 {
						assert.NoError(t, b.Write(ctx, "doc", large))
					} else {
						assert.NoError(t, b.Write(ctx, "doc", small))
					}
				}
			}()
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					data, err := b.Read(ctx, "doc")
					if assert.NoError(t, err) {
						assert.Contains(t, []int{len(small), len(large)}, len(data))
					}
				}
			}()
			wg.Wait()
		})
	}
}

func TestFileBackend_NoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(common.NewSilentLogger(), dir)
	require.NoError(t, err)

	require.NoError(t, b.Write(context.Background(), "portfolio_history.json", []byte("{}")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "portfolio_history.json", entries[0].Name())
}

func TestFileBackend_SanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(common.NewSilentLogger(), dir)
	require.NoError(t, err)

	require.NoError(t, b.Write(context.Background(), "../escape", []byte("x")))
	_, err = os.Stat(filepath.Join(dir, "__escape"))
	assert.NoError(t, err)
}

func TestOpen(t *testing.T) {
	logger := common.NewSilentLogger()

	b, err := Open(logger, &common.StorageConfig{Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, b)

	_, err = Open(logger, &common.StorageConfig{Backend: "s3", Path: t.TempDir()})
	assert.Error(t, err)
}
