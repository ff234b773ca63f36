package vericloud

import "context"

// DefaultMaxUploadSize caps single payloads at 10 MiB unless overridden.
const DefaultMaxUploadSize = 10 << 20

// Service defines the main interface for the vericloud file store. It
// orchestrates a BlobStore and a MetadataRepository into file-level
// operations and owns the consistency contract between the two.
type Service interface {
	// Upload stores a new file: blob first, then metadata. Returns
	// ErrFileTooLarge for oversized payloads.
	Upload(ctx context.Context, req UploadRequest) (*FileMetadata, error)

	// UploadBatch stores each item independently; one item's failure does
	// not abort the rest.
	UploadBatch(ctx context.Context, reqs []UploadRequest) *BatchResult

	// Get returns the metadata record for id.
	Get(ctx context.Context, id string) (*FileMetadata, error)

	// GetContent returns the blob decoded as UTF-8 text. Returns ErrNotText
	// for binary content; use Download for that.
	GetContent(ctx context.Context, id string) (*FileContent, error)

	// Download returns the raw blob bytes with the original name and
	// declared content type.
	Download(ctx context.Context, id string) (*DownloadResult, error)

	// List returns all metadata records, newest first.
	List(ctx context.Context) ([]*FileMetadata, error)

	// Update replaces the blob content in place and refreshes the derived
	// metadata fields. Identifier, original name, and location are unchanged.
	Update(ctx context.Context, req UpdateRequest) (*FileMetadata, error)

	// Delete removes blob and metadata, tolerating an already-missing
	// blob, and returns the deleted file's original name.
	Delete(ctx context.Context, id string) (string, error)
}
