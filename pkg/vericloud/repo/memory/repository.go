// Package memory implements an in-memory vericloud.MetadataRepository for
// tests and development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vericloud/vericloud/pkg/vericloud"
)

// Repository implements vericloud.MetadataRepository using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	records map[string]*vericloud.FileMetadata
}

// New creates a new in-memory repository
func New() vericloud.MetadataRepository {
	return &Repository{
		records: make(map[string]*vericloud.FileMetadata),
	}
}

func (r *Repository) Create(ctx context.Context, record *vericloud.FileMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ID]; exists {
		return vericloud.ErrExists
	}

	// Store a copy to avoid external modifications
	recordCopy := *record
	r.records[record.ID] = &recordCopy

	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*vericloud.FileMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return nil, vericloud.ErrFileNotFound
	}

	recordCopy := *record
	return &recordCopy, nil
}

func (r *Repository) List(ctx context.Context) ([]*vericloud.FileMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*vericloud.FileMetadata, 0, len(r.records))
	for _, record := range r.records {
		recordCopy := *record
		result = append(result, &recordCopy)
	}

	// Newest first, identifier as tiebreak
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

	record, exists := r.records[id]
	if !exists {
		return nil, vericloud.ErrFileNotFound
	}

	updated := *record
	if err := apply(&updated); err != nil {
		return nil, err
	}
	r.records[id] = &updated

	resultCopy := updated
	return &resultCopy, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; !exists {
		return vericloud.ErrFileNotFound
	}

	delete(r.records, id)
	return nil
}
