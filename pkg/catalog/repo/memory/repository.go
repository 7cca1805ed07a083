package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

// Repository implements catalog.MetadataStore using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	records []*catalog.FileRecord
	byID    map[uuid.UUID]*catalog.FileRecord
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		byID: make(map[uuid.UUID]*catalog.FileRecord),
	}
}

func (r *Repository) List(ctx context.Context) ([]*catalog.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*catalog.FileRecord, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Clone()
	}
	return out, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*catalog.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return nil, catalog.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (r *Repository) Insert(ctx context.Context, record *catalog.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[record.ID]; ok {
		return fmt.Errorf("%s: %w", record.ID, catalog.ErrDuplicateRecord)
	}

	// Create a copy to avoid external modifications
	rec := record.Clone()
	r.records = append(r.records, rec)
	r.byID[rec.ID] = rec
	return nil
}

func (r *Repository) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return false, nil
	}
	for i, rec := range r.records {
		if rec.ID == id {
			r.records = append(r.records[:i:i], r.records[i+1:]...)
			break
		}
	}
	delete(r.byID, id)
	return true, nil
}

func (r *Repository) Close() error {
	return nil
}
