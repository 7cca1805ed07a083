package catalog

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BlobStore defines the interface for blob storage backends
type BlobStore interface {
	// Store streams content into a new blob whose name is derived from req.ID.
	// It fails with ErrSizeLimitExceeded once more than req.SizeLimit bytes are read,
	// leaving nothing behind.
	Store(ctx context.Context, req StoreRequest) (*BlobInfo, error)

	// Open returns a reader for the named blob
	Open(ctx context.Context, storedName string) (io.ReadCloser, error)

	// Stat returns size and modification time of the named blob
	Stat(ctx context.Context, storedName string) (*BlobInfo, error)

	// Delete removes the named blob
	Delete(ctx context.Context, storedName string) error

	// List returns every blob currently stored
	List(ctx context.Context) ([]BlobInfo, error)
}

// MetadataStore defines the interface for catalog record persistence.
// Implementations serialize all mutations.
type MetadataStore interface {
	// List returns all records in insertion order
	List(ctx context.Context) ([]*FileRecord, error)

	// GetByID returns the record or ErrRecordNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*FileRecord, error)

	// Insert appends a record; a duplicate id fails with ErrDuplicateRecord
	Insert(ctx context.Context, record *FileRecord) error

	// DeleteByID removes the record, reporting whether it existed
	DeleteByID(ctx context.Context, id uuid.UUID) (bool, error)

	// Close releases resources held by the store
	Close() error
}

// EventSink defines the interface for catalog event handling
type EventSink interface {
	// RecordCreated is fired after an upload is committed
	RecordCreated(ctx context.Context, record *FileRecord) error

	// RecordDeleted is fired after a record and its blob are removed
	RecordDeleted(ctx context.Context, record *FileRecord) error

	// OrphanDetected is fired when the two stores are found to disagree
	OrphanDetected(ctx context.Context, kind OrphanKind, name string) error
}

// StoreRequest contains parameters for storing a blob
type StoreRequest struct {
	ID        uuid.UUID
	FieldName string
	Extension string
	MimeType  string
	SizeLimit int64
	Reader    io.Reader
}
