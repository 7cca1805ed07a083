package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-catalog/pkg/catalog"
	"github.com/tendant/simple-catalog/pkg/catalog/objectkey"
)

type object struct {
	data     []byte
	mimeType string
	modTime  time.Time
}

// Backend is an in-memory implementation of the catalog.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	keys    objectkey.Generator
	now     func() time.Time
}

// Option configures the in-memory backend
type Option func(*Backend)

// WithKeyGenerator sets the stored-name strategy
func WithKeyGenerator(g objectkey.Generator) Option {
	return func(b *Backend) {
		b.keys = g
	}
}

// WithClock overrides the time source used for modification times
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// New creates a new in-memory storage backend
func New(opts ...Option) *Backend {
	b := &Backend{
		objects: make(map[string]object),
		keys:    objectkey.NewFlatGenerator(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Store reads the whole content before publishing it under its name
func (b *Backend) Store(ctx context.Context, req catalog.StoreRequest) (*catalog.BlobInfo, error) {
	name := b.keys.GenerateKey(req.ID, &objectkey.KeyMetadata{
		FieldName: req.FieldName,
		Extension: req.Extension,
	})

	data, err := io.ReadAll(catalog.LimitReader(req.Reader, req.SizeLimit))
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, &catalog.StorageError{Backend: "memory", Key: name, Op: "store", Err: err}
	}

	obj := object{data: data, mimeType: req.MimeType, modTime: b.now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[name] = obj

	return &catalog.BlobInfo{Name: name, Size: int64(len(data)), ModTime: obj.modTime}, nil
}

// Open returns a reader over a snapshot of the blob
func (b *Backend) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.objects[storedName]
	if !ok {
		return nil, fmt.Errorf("%s: %w", storedName, catalog.ErrBlobNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Stat returns size and modification time of the blob
func (b *Backend) Stat(ctx context.Context, storedName string) (*catalog.BlobInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.objects[storedName]
	if !ok {
		return nil, fmt.Errorf("%s: %w", storedName, catalog.ErrBlobNotFound)
	}
	return &catalog.BlobInfo{Name: storedName, Size: int64(len(obj.data)), ModTime: obj.modTime}, nil
}

// Delete removes the blob
func (b *Backend) Delete(ctx context.Context, storedName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.objects[storedName]; !ok {
		return fmt.Errorf("%s: %w", storedName, catalog.ErrBlobNotFound)
	}
	delete(b.objects, storedName)
	return nil
}

// List returns every blob sorted by name
func (b *Backend) List(ctx context.Context) ([]catalog.BlobInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	blobs := make([]catalog.BlobInfo, 0, len(b.objects))
	for name, obj := range b.objects {
		blobs = append(blobs, catalog.BlobInfo{Name: name, Size: int64(len(obj.data)), ModTime: obj.modTime})
	}
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Name < blobs[j].Name })
	return blobs, nil
}
