// Package memory implements an in-memory vericloud.BlobStore for tests and
// development.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/vericloud/vericloud/pkg/vericloud"
)

// Backend is an in-memory implementation of the vericloud.BlobStore interface
type Backend struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New creates a new in-memory storage backend
func New() vericloud.BlobStore {
	return &Backend{
		blobs: make(map[string][]byte),
	}
}

// Upload stores the reader's bytes under key
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return &vericloud.StorageError{Backend: "memory", Key: key, Op: "upload", Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.blobs[key] = data
	return nil
}

// Download returns the blob bytes at key
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.blobs[key]
	if !exists {
		return nil, vericloud.ErrBlobNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the blob at key
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.blobs[key]; !exists {
		return vericloud.ErrBlobNotFound
	}

	delete(b.blobs, key)
	return nil
}

// Exists reports whether a blob exists at key
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, exists := b.blobs[key]
	return exists, nil
}
