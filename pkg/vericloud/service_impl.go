package vericloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vericloud/vericloud/pkg/vericloud/fileid"
)

// IdentifierGenerator mints file identifiers. Next is used for single
// uploads, NextFine for batch uploads where many identifiers may be minted
// within the same second.
type IdentifierGenerator interface {
	Next() string
	NextFine() string
}

// service implements the Service interface
type service struct {
	repo          MetadataRepository
	blobStore     BlobStore
	backendName   string
	ids           IdentifierGenerator
	maxUploadSize int64
	locks         *keyLock
	now           func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithMetadataRepository sets the metadata repository for the service
func WithMetadataRepository(repo MetadataRepository) Option {
	return func(s *service) {
		s.repo = repo
	}
}

// WithBlobStore sets the blob storage backend and its name. The name is
// recorded in each file's location so operators can tell which backend
// holds the blob.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.backendName = name
		s.blobStore = store
	}
}

// WithMaxUploadSize overrides the default 10 MiB payload cap
func WithMaxUploadSize(n int64) Option {
	return func(s *service) {
		s.maxUploadSize = n
	}
}

// WithIdentifierGenerator overrides the default identifier generator
func WithIdentifierGenerator(gen IdentifierGenerator) Option {
	return func(s *service) {
		s.ids = gen
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		ids:           fileid.New(),
		maxUploadSize: DefaultMaxUploadSize,
		locks:         newKeyLock(),
		now:           time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repo == nil {
		return nil, fmt.Errorf("metadata repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.maxUploadSize <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}

	return s, nil
}

func (s *service) Upload(ctx context.Context, req UploadRequest) (*FileMetadata, error) {
	return s.upload(ctx, req, s.ids.Next)
}

func (s *service) UploadBatch(ctx context.Context, reqs []UploadRequest) *BatchResult {
	result := &BatchResult{
		Succeeded: []*FileMetadata{},
		Failed:    []BatchFailure{},
	}

	for _, req := range reqs {
		record, err := s.upload(ctx, req, s.ids.NextFine)
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{
				FileName: req.FileName,
				Err:      err,
				Reason:   err.Error(),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, record)
	}

	return result
}

// upload runs the two-phase write: blob first, then metadata. A crash
// between the two writes leaves an orphan blob, never a metadata record
// pointing at a missing blob.
func (s *service) upload(ctx context.Context, req UploadRequest, nextID func() string) (*FileMetadata, error) {
	if int64(len(req.Data)) > s.maxUploadSize {
		return nil, ErrFileTooLarge
	}

	id := nextID()
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	// Refuse a taken identifier before the blob write. When the colliding
	// uploads carry the same original name the stored names coincide, and
	// writing first would clobber the winner's blob.
	if _, err := s.repo.Get(ctx, id); err == nil {
		return nil, &FileError{ID: id, Op: "upload", Err: ErrExists}
	} else if !errors.Is(err, ErrFileNotFound) {
		return nil, &FileError{ID: id, Op: "upload", Err: err}
	}

	storedName := StoredName(id, req.FileName)

	contentType := req.ContentType
	if contentType == "" {
		contentType = DetectContentType(req.Data)
	}

	if err := s.blobStore.Upload(ctx, storedName, bytes.NewReader(req.Data)); err != nil {
		return nil, &FileError{ID: id, Op: "upload", Err: err}
	}

	record := &FileMetadata{
		ID:            id,
		OriginalName:  req.FileName,
		StoredName:    storedName,
		Size:          int64(len(req.Data)),
		ContentType:   contentType,
		CreatedAt:     s.now().UTC(),
		Location:      fmt.Sprintf("%s://%s", s.backendName, storedName),
		SchemaVersion: MetadataSchemaVersion,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		// The blob is already on disk; remove it so an identifier conflict
		// does not strand an orphan. Never remove a key the winning record
		// points at: a missing blob is worse than an orphan.
		if errors.Is(err, ErrExists) {
			if winner, gerr := s.repo.Get(ctx, id); gerr == nil && winner.StoredName != storedName {
				_ = s.blobStore.Delete(ctx, storedName)
			}
		}
		return nil, &FileError{ID: id, Op: "upload", Err: err}
	}

	return record, nil
}

func (s *service) Get(ctx context.Context, id string) (*FileMetadata, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) GetContent(ctx context.Context, id string) (*FileContent, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.readBlob(ctx, record.StoredName)
	if err != nil {
		return nil, &FileError{ID: id, Op: "get_content", Err: err}
	}

	if !IsText(data) {
		return nil, &FileError{ID: id, Op: "get_content", Err: ErrNotText}
	}

	return &FileContent{
		Content:  string(data),
		FileName: record.OriginalName,
		Size:     record.Size,
	}, nil
}

func (s *service) Download(ctx context.Context, id string) (*DownloadResult, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.readBlob(ctx, record.StoredName)
	if err != nil {
		return nil, &FileError{ID: id, Op: "download", Err: err}
	}

	return &DownloadResult{
		Data:        data,
		FileName:    record.OriginalName,
		ContentType: record.ContentType,
	}, nil
}

func (s *service) List(ctx context.Context) ([]*FileMetadata, error) {
	return s.repo.List(ctx)
}

func (s *service) Update(ctx context.Context, req UpdateRequest) (*FileMetadata, error) {
	if int64(len(req.Data)) > s.maxUploadSize {
		return nil, ErrFileTooLarge
	}

	s.locks.Lock(req.ID)
	defer s.locks.Unlock(req.ID)

	record, err := s.repo.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = DetectContentType(req.Data)
	}

	// Overwrite in place: the stored name and location do not change.
	if err := s.blobStore.Upload(ctx, record.StoredName, bytes.NewReader(req.Data)); err != nil {
		return nil, &FileError{ID: req.ID, Op: "update", Err: err}
	}

	updated, err := s.repo.Update(ctx, req.ID, func(m *FileMetadata) error {
		now := s.now().UTC()
		m.Size = int64(len(req.Data))
		m.ContentType = contentType
		m.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return nil, &FileError{ID: req.ID, Op: "update", Err: err}
	}

	return updated, nil
}

func (s *service) Delete(ctx context.Context, id string) (string, error) {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}

	// A missing blob does not block metadata cleanup.
	if err := s.blobStore.Delete(ctx, record.StoredName); err != nil && !errors.Is(err, ErrBlobNotFound) {
		return "", &FileError{ID: id, Op: "delete", Err: err}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return "", &FileError{ID: id, Op: "delete", Err: err}
	}

	return record.OriginalName, nil
}

func (s *service) readBlob(ctx context.Context, storedName string) ([]byte, error) {
	rc, err := s.blobStore.Download(ctx, storedName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}
