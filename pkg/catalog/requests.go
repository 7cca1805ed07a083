package catalog

import (
	"io"
	"time"
)

// UploadRequest contains parameters for uploading a document.
//
// Empty optional fields (Title, ExamType, PublishDate, Description) and a zero
// ExamYear are replaced by their defaults. A zero SizeLimit uses the service limit.
type UploadRequest struct {
	Reader       io.Reader
	FieldName    string
	OriginalName string
	MimeType     string
	SizeLimit    int64

	Title       string
	ExamType    string
	ExamYear    int
	PublishDate string
	Description string
}

// ReconcileOptions controls Service.Reconcile
type ReconcileOptions struct {
	// Repair deletes orphan blobs and removes orphan records
	Repair bool
	// GracePeriod skips orphan blobs modified more recently than this,
	// since they may belong to an upload that has not been committed yet.
	GracePeriod time.Duration
}
