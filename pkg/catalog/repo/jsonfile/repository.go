// Package jsonfile keeps the catalog as a single JSON array on disk.
//
// The whole array is held in memory and every mutation rewrites the file
// atomically while holding the write lock, so concurrent uploads and
// deletes never lose each other's updates. A lock file next to the catalog
// keeps a second process from opening it while the first one is running.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/renameio"
	"github.com/google/uuid"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

const backendName = "jsonfile"

// ErrLocked is returned by New when another process holds the catalog file
var ErrLocked = errors.New("catalog file is in use by another process")

// Repository implements catalog.MetadataStore on top of a JSON file
type Repository struct {
	mu      sync.RWMutex
	path    string
	lock    *flock.Flock
	records []*catalog.FileRecord
	byID    map[uuid.UUID]*catalog.FileRecord
	logger  *slog.Logger
}

// Option configures the repository
type Option func(*Repository)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// New opens the catalog file at path. A missing or blank file is an empty catalog;
// a file that does not parse is reported instead of being overwritten.
func New(path string, opts ...Option) (*Repository, error) {
	if path == "" {
		return nil, errors.New("catalog file path is required")
	}

	r := &Repository{
		path:   path,
		byID:   make(map[uuid.UUID]*catalog.FileRecord),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("component", "jsonfile"))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, r.wrap("open", err)
	}

	r.lock = flock.New(path + ".lock")
	locked, err := r.lock.TryLock()
	if err != nil {
		return nil, r.wrap("lock", err)
	}
	if !locked {
		return nil, r.wrap("lock", ErrLocked)
	}

	if err := r.load(); err != nil {
		r.lock.Unlock()
		return nil, err
	}

	r.logger.Info("catalog loaded", slog.Int("records", len(r.records)), slog.String("path", path))
	return r, nil
}

func (r *Repository) load() error {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return r.wrap("load", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var records []*catalog.FileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return r.wrap("load", fmt.Errorf("parse %s: %w", r.path, err))
	}

	for _, rec := range records {
		if rec == nil {
			continue
		}
		if _, dup := r.byID[rec.ID]; dup {
			r.logger.Warn("duplicate record id in catalog file", slog.String("id", rec.ID.String()))
			continue
		}
		r.records = append(r.records, rec)
		r.byID[rec.ID] = rec
	}
	return nil
}

// List returns copies of all records in insertion order
func (r *Repository) List(ctx context.Context) ([]*catalog.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*catalog.FileRecord, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Clone()
	}
	return out, nil
}

// GetByID returns a copy of the record
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*catalog.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return nil, catalog.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// Insert appends the record and persists the catalog before it becomes visible
func (r *Repository) Insert(ctx context.Context, record *catalog.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[record.ID]; ok {
		return fmt.Errorf("%s: %w", record.ID, catalog.ErrDuplicateRecord)
	}

	rec := record.Clone()
	next := make([]*catalog.FileRecord, len(r.records), len(r.records)+1)
	copy(next, r.records)
	next = append(next, rec)

	if err := r.persist(next); err != nil {
		return err
	}

	r.records = next
	r.byID[rec.ID] = rec
	return nil
}

// DeleteByID removes the record and persists the catalog
func (r *Repository) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return false, nil
	}

	next := make([]*catalog.FileRecord, 0, len(r.records))
	for _, rec := range r.records {
		if rec.ID != id {
			next = append(next, rec)
		}
	}

	if err := r.persist(next); err != nil {
		return false, err
	}

	r.records = next
	delete(r.byID, id)
	return true, nil
}

// Close releases the catalog lock; every mutation is already on disk
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lock.Unlock(); err != nil {
		return r.wrap("close", err)
	}
	return nil
}

// persist atomically replaces the catalog file with records
func (r *Repository) persist(records []*catalog.FileRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return r.wrap("persist", err)
	}
	if err := renameio.WriteFile(r.path, data, 0644); err != nil {
		return r.wrap("persist", err)
	}
	return nil
}

func (r *Repository) wrap(op string, err error) error {
	return &catalog.StorageError{Backend: backendName, Key: r.path, Op: op, Err: err}
}
