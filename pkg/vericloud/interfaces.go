package vericloud

import (
	"context"
	"io"
)

// BlobStore defines the interface for blob storage backends. Keys are
// storage-safe strings derived from the identifier and sanitized filename.
type BlobStore interface {
	// Upload writes the reader's bytes under key, overwriting any prior
	// content at that key.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// Download returns the blob bytes at key. Returns ErrBlobNotFound if
	// no blob exists there.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob at key. Returns ErrBlobNotFound if no blob
	// exists there.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a blob exists at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// MetadataRepository defines the interface for metadata persistence.
// Implementations enforce the conflict policy: Create fails with ErrExists
// rather than silently overwriting a record, so an identifier collision can
// never clobber an earlier upload.
type MetadataRepository interface {
	// Create persists a new record keyed by record.ID. Returns ErrExists
	// if a record already exists for that identifier.
	Create(ctx context.Context, record *FileMetadata) error

	// Get returns the record for id, or ErrFileNotFound.
	Get(ctx context.Context, id string) (*FileMetadata, error)

	// List returns a snapshot of all records ordered by creation time
	// descending (newest first), identifier descending as tiebreak.
	List(ctx context.Context) ([]*FileMetadata, error)

	// Update atomically applies the mutation to the record for id and
	// persists the result. Returns ErrFileNotFound if absent.
	Update(ctx context.Context, id string, apply func(*FileMetadata) error) (*FileMetadata, error)

	// Delete removes the record for id, or returns ErrFileNotFound.
	Delete(ctx context.Context, id string) error
}
