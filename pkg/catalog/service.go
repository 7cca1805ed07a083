package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the main interface of the document catalog
type Service interface {
	// Upload stores the content and creates its catalog record
	Upload(ctx context.Context, req UploadRequest) (*FileRecord, error)

	// List returns every record in upload order
	List(ctx context.Context) ([]*FileRecord, error)

	// Get returns a single record
	Get(ctx context.Context, id uuid.UUID) (*FileRecord, error)

	// Download opens the blob of a record for streaming
	Download(ctx context.Context, id uuid.UUID) (*Download, error)

	// Delete removes the blob and then the record
	Delete(ctx context.Context, id uuid.UUID) error

	// Reconcile compares blobs against records and optionally repairs orphans
	Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileReport, error)

	// Close releases the underlying metadata store
	Close() error
}
