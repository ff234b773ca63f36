// Package vericloud provides a small file-storage library with pluggable
// blob storage and metadata persistence backends.
//
// It exposes a single Service interface that orchestrates upload, download,
// listing, update, and deletion of stored files. Each stored file is a pair
// of a raw blob (kept in a BlobStore) and a structured metadata record (kept
// in a MetadataRepository), joined by a time-ordered identifier.
// Implementations of blob stores (memory, filesystem, S3) and metadata
// repositories (memory, filesystem, Postgres) are provided under subpackages.
//
// Consistency Contract
//
// The two stores are not updated transactionally. On upload the blob is
// written before the metadata record, so a crash between the two writes
// leaves an orphan blob with no discoverable metadata; it never leaves a
// metadata record pointing at a missing blob. Orphan blobs are not collected
// automatically.
package vericloud
