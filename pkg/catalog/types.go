package catalog

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Default values applied to optional upload fields.
const (
	DefaultExamType  = "General"
	DefaultFieldName = "file"
	DefaultMimeType  = "application/octet-stream"

	// DefaultMaxUploadSize is the per-upload limit used when none is configured (50 MiB).
	DefaultMaxUploadSize int64 = 50 * 1024 * 1024

	// PublishDateLayout is the layout of FileRecord.PublishDate.
	PublishDateLayout = "2006-01-02"
)

// FileRecord is one catalog entry. Records are immutable once created.
type FileRecord struct {
	ID              uuid.UUID `json:"id"`
	StoredName      string    `json:"storedName"`
	OriginalName    string    `json:"originalName"`
	Extension       string    `json:"extension"`
	MimeType        string    `json:"mimeType"`
	SizeBytes       int64     `json:"sizeBytes"`
	UploadTimestamp time.Time `json:"uploadTimestamp"`
	Title           string    `json:"title"`
	ExamType        string    `json:"examType"`
	ExamYear        int       `json:"examYear"`
	PublishDate     string    `json:"publishDate"`
	Description     string    `json:"description"`
}

// Clone returns a copy of the record.
func (r *FileRecord) Clone() *FileRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// BlobInfo describes a blob held by a BlobStore.
type BlobInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Download is a streamed blob together with the record it belongs to.
// Callers must close Body.
type Download struct {
	Record      *FileRecord
	Body        io.ReadCloser
	Size        int64
	ContentType string
	FileName    string
}

// ReconcileReport summarizes a comparison of the blob store against the catalog.
type ReconcileReport struct {
	Records       int      `json:"records"`
	Blobs         int      `json:"blobs"`
	OrphanBlobs   []string `json:"orphanBlobs"`
	OrphanRecords []string `json:"orphanRecords"`
	SkippedBlobs  []string `json:"skippedBlobs,omitempty"`
	Repaired      int      `json:"repaired"`
}

// Clean reports whether no orphans were found.
func (r *ReconcileReport) Clean() bool {
	return len(r.OrphanBlobs) == 0 && len(r.OrphanRecords) == 0
}

// OrphanKind classifies an inconsistency between the two stores.
type OrphanKind string

const (
	// OrphanBlob is a blob with no record referencing it.
	OrphanBlob OrphanKind = "blob"
	// OrphanRecord is a record whose blob is missing.
	OrphanRecord OrphanKind = "record"
)
