// Package fs implements a filesystem-backed vericloud.BlobStore.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/vericloud/vericloud/pkg/vericloud"
)

const backendName = "fs"

// Config options for the filesystem backend
type Config struct {
	BaseDir  string // Base directory for storing blobs
	Compress bool   // Gzip blobs on disk
}

// Backend is a filesystem implementation of the vericloud.BlobStore
// interface. Writes go to a temp file first and are renamed into place, so
// a blob is either fully present or absent.
type Backend struct {
	baseDir  string
	compress bool
}

// New creates a new filesystem storage backend, creating the base directory
// if it does not exist.
func New(config Config) (vericloud.BlobStore, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:  config.BaseDir,
		compress: config.Compress,
	}, nil
}

// Upload writes the reader's bytes under key, overwriting prior content.
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader) error {
	if err := validateKey(key); err != nil {
		return &vericloud.StorageError{Backend: backendName, Key: key, Op: "upload", Err: err}
	}

	filePath := filepath.Join(b.baseDir, key)

	// Write to a temp file in the same directory, then rename into place.
	tmpPath := filepath.Join(b.baseDir, "."+uuid.NewString()+".tmp")
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return &vericloud.StorageError{Backend: backendName, Key: key, Op: "upload", Err: err}
	}

	var w io.Writer = tmp
	var gz *gzip.Writer
	if b.compress {
		gz = gzip.NewWriter(tmp)
		w = gz
	}

	_, err = io.Copy(w, reader)
	if err == nil && gz != nil {
		err = gz.Close()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return &vericloud.StorageError{Backend: backendName, Key: key, Op: "upload", Err: err}
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return &vericloud.StorageError{Backend: backendName, Key: key, Op: "upload", Err: err}
	}

	return nil
}

// Download returns the blob bytes at key.
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, &vericloud.StorageError{Backend: backendName, Key: key, Op: "download", Err: err}
	}

	file, err := os.Open(filepath.Join(b.baseDir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vericloud.ErrBlobNotFound
		}
		return nil, &vericloud.StorageError{Backend: backendName, Key: key, Op: "download", Err: err}
	}

	if !b.compress {
		return file, nil
	}

	gz, err := gzip.NewReader(file)
	if err != nil {
		file.Close()
		return nil, &vericloud.StorageError{Backend: backendName, Key: key, Op: "download", Err: err}
	}
	return &gzipReadCloser{gz: gz, file: file}, nil
}

// Delete removes the blob at key.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return &vericloud.StorageError{Backend: backendName, Key: key, Op: "delete", Err: err}
	}

	filePath := filepath.Join(b.baseDir, key)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return vericloud.ErrBlobNotFound
	}

	if err := os.Remove(filePath); err != nil {
		return &vericloud.StorageError{Backend: backendName, Key: key, Op: "delete", Err: err}
	}

	return nil
}

// Exists reports whether a blob exists at key.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, &vericloud.StorageError{Backend: backendName, Key: key, Op: "stat", Err: err}
	}

	_, err := os.Stat(filepath.Join(b.baseDir, key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &vericloud.StorageError{Backend: backendName, Key: key, Op: "stat", Err: err}
	}
	return true, nil
}

// validateKey rejects keys that could escape the base directory. The
// service sanitizes stored names before they get here, but a backend must
// not rely on its callers for that.
func validateKey(key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if filepath.IsAbs(key) {
		return errors.New("absolute paths are not allowed")
	}
	if strings.Contains(key, "..") {
		return errors.New("path traversal not allowed")
	}
	if strings.ContainsAny(key, "/\\\x00") {
		return errors.New("key contains invalid characters")
	}
	return nil
}

type gzipReadCloser struct {
	gz   *gzip.Reader
	file *os.File
}

func (r *gzipReadCloser) Read(p []byte) (int, error) { return r.gz.Read(p) }

func (r *gzipReadCloser) Close() error {
	gzErr := r.gz.Close()
	fileErr := r.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}
