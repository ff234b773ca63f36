package vericloud

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrFileNotFound indicates no metadata record exists for the identifier
	ErrFileNotFound = errors.New("file not found")

	// ErrBlobNotFound indicates no blob exists at the storage key
	ErrBlobNotFound = errors.New("blob not found")

	// ErrFileTooLarge indicates a payload exceeds the configured maximum size
	ErrFileTooLarge = errors.New("file too large")

	// ErrExists indicates a metadata record already exists for the identifier
	ErrExists = errors.New("file already exists")

	// ErrNotText indicates blob content is not valid UTF-8 text
	ErrNotText = errors.New("content is not valid text")
)

// FileError represents an error related to a file operation
type FileError struct {
	ID  string
	Op  string
	Err error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file operation %s failed for %q: %v", e.Op, e.ID, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// StorageError represents an error from a storage backend
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %q on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
