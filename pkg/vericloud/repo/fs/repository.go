// Package fs implements a vericloud.MetadataRepository that keeps one JSON
// document per record in a metadata directory.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vericloud/vericloud/pkg/vericloud"
)

// Config options for the filesystem repository
type Config struct {
	BaseDir string // Directory holding one <id>.json per record
}

// Repository implements vericloud.MetadataRepository on the local
// filesystem. Each record lives in its own <id>.json file; creates and
// updates write a temp file first and link or rename it into place so a
// record is never half-written.
type Repository struct {
	mu      sync.Mutex
	baseDir string
}

// New creates a new filesystem repository, creating the metadata directory
// if it does not exist.
func New(config Config) (vericloud.MetadataRepository, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}

	return &Repository{baseDir: config.BaseDir}, nil
}

func (r *Repository) Create(ctx context.Context, record *vericloud.FileMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata record: %w", err)
	}

	// Write the full document to a temp file first so a concurrent Get or
	// List never observes a truncated record, then link it into place.
	// Link fails on an existing target, which makes the conflict check and
	// the create a single step.
	tmpPath := filepath.Join(r.baseDir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata record: %w", err)
	}
	defer os.Remove(tmpPath)

	if err := os.Link(tmpPath, r.recordPath(record.ID)); err != nil {
		if os.IsExist(err) {
			return vericloud.ErrExists
		}
		return fmt.Errorf("failed to create metadata record: %w", err)
	}

	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*vericloud.FileMetadata, error) {
	return r.read(r.recordPath(id))
}

func (r *Repository) List(ctx context.Context) ([]*vericloud.FileMetadata, error) {
	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata directory: %w", err)
	}

	result := make([]*vericloud.FileMetadata, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		record, err := r.read(filepath.Join(r.baseDir, entry.Name()))
		if err != nil {
			// A record deleted mid-enumeration is not an error.
			if errors.Is(err, vericloud.ErrFileNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, record)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

func (r *Repository) Update(ctx context.Context, id string, apply func(*vericloud.FileMetadata) error) (*vericloud.FileMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.read(r.recordPath(id))
	if err != nil {
		return nil, err
	}

	if err := apply(record); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata record: %w", err)
	}

	tmpPath := filepath.Join(r.baseDir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata record: %w", err)
	}
	if err := os.Rename(tmpPath, r.recordPath(id)); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to replace metadata record: %w", err)
	}

	return record, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := os.Remove(r.recordPath(id))
	if os.IsNotExist(err) {
		return vericloud.ErrFileNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete metadata record: %w", err)
	}
	return nil
}

func (r *Repository) recordPath(id string) string {
	// Identifiers are generated internally, but never trust them as paths.
	return filepath.Join(r.baseDir, vericloud.SanitizeFileName(id)+".json")
}

func (r *Repository) read(path string) (*vericloud.FileMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, vericloud.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open metadata record: %w", err)
	}
	defer f.Close()

	var record vericloud.FileMetadata
	if err := json.NewDecoder(f).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode metadata record: %w", err)
	}

	return &record, nil
}
