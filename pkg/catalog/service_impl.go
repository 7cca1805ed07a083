package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultReconcileGrace is the grace period used when ReconcileOptions leaves it unset.
const DefaultReconcileGrace = time.Hour

// service implements the Service interface
type service struct {
	blobs         BlobStore
	metadata      MetadataStore
	eventSink     EventSink
	logger        *slog.Logger
	maxUploadSize int64
	now           func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithBlobStore sets the blob storage backend
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobs = store
	}
}

// WithMetadataStore sets the metadata store
func WithMetadataStore(store MetadataStore) Option {
	return func(s *service) {
		s.metadata = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithMaxUploadSize sets the size limit applied when a request does not carry one
func WithMaxUploadSize(limit int64) Option {
	return func(s *service) {
		s.maxUploadSize = limit
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink:     NewNoopEventSink(),
		maxUploadSize: DefaultMaxUploadSize,
		now:           time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.metadata == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}

	return s, nil
}

func (s *service) Upload(ctx context.Context, req UploadRequest) (*FileRecord, error) {
	if req.Reader == nil {
		return nil, ValidationError("no content supplied")
	}
	if strings.TrimSpace(req.OriginalName) == "" {
		return nil, ValidationError("original file name is required")
	}

	now := s.now().UTC()
	record := &FileRecord{
		ID:              uuid.New(),
		OriginalName:    req.OriginalName,
		Extension:       extensionOf(req.OriginalName),
		UploadTimestamp: now,
		Title:           req.Title,
		ExamType:        req.ExamType,
		ExamYear:        req.ExamYear,
		PublishDate:     req.PublishDate,
		Description:     req.Description,
	}
	record.MimeType = mimeTypeFor(req.MimeType, record.Extension)
	if record.Title == "" {
		record.Title = req.OriginalName
	}
	if record.ExamType == "" {
		record.ExamType = DefaultExamType
	}
	if record.ExamYear == 0 {
		record.ExamYear = now.Year()
	}
	if record.PublishDate == "" {
		record.PublishDate = now.Format(PublishDateLayout)
	}

	fieldName := req.FieldName
	if fieldName == "" {
		fieldName = DefaultFieldName
	}
	limit := req.SizeLimit
	if limit <= 0 {
		limit = s.maxUploadSize
	}

	blob, err := s.blobs.Store(ctx, StoreRequest{
		ID:        record.ID,
		FieldName: fieldName,
		Extension: record.Extension,
		MimeType:  record.MimeType,
		SizeLimit: limit,
		Reader:    req.Reader,
	})
	if err != nil {
		if errors.Is(err, ErrSizeLimitExceeded) {
			s.logger.Info("upload rejected", "original_name", req.OriginalName, "limit", limit)
		}
		return nil, &RecordError{ID: record.ID, Op: "upload", Err: err}
	}
	record.StoredName = blob.Name
	record.SizeBytes = blob.Size

	if err := s.metadata.Insert(ctx, record); err != nil {
		// compensate: the blob must not outlive a failed insert
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), blob.Name); derr != nil && !errors.Is(derr, ErrBlobNotFound) {
			s.logger.Error("orphan blob left after failed insert",
				"id", record.ID, "stored_name", blob.Name, "error", derr)
			s.notifyOrphan(ctx, OrphanBlob, blob.Name)
		}
		return nil, &RecordError{ID: record.ID, Op: "upload", Err: err}
	}

	if err := s.eventSink.RecordCreated(ctx, record); err != nil {
		s.logger.Warn("event sink failed", "event", "record_created", "id", record.ID, "error", err)
	}
	s.logger.Debug("file uploaded", "id", record.ID, "stored_name", record.StoredName, "size", record.SizeBytes)

	return record.Clone(), nil
}

func (s *service) List(ctx context.Context) ([]*FileRecord, error) {
	return s.metadata.List(ctx)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*FileRecord, error) {
	return s.metadata.GetByID(ctx, id)
}

func (s *service) Download(ctx context.Context, id uuid.UUID) (*Download, error) {
	record, err := s.metadata.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	body, err := s.blobs.Open(ctx, record.StoredName)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			s.logger.Error("record has no blob", "id", id, "stored_name", record.StoredName)
			s.notifyOrphan(ctx, OrphanRecord, record.StoredName)
		}
		return nil, &RecordError{ID: id, Op: "download", Err: err}
	}

	return &Download{
		Record:      record,
		Body:        body,
		Size:        record.SizeBytes,
		ContentType: record.MimeType,
		FileName:    record.OriginalName,
	}, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	record, err := s.metadata.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, record.StoredName); err != nil {
		if !errors.Is(err, ErrBlobNotFound) {
			return &RecordError{ID: id, Op: "delete", Err: err}
		}
		s.logger.Warn("blob already absent during delete", "id", id, "stored_name", record.StoredName)
	}

	removed, err := s.metadata.DeleteByID(ctx, id)
	if err != nil {
		s.logger.Error("orphan record left after blob removal",
			"id", id, "stored_name", record.StoredName, "error", err)
		s.notifyOrphan(ctx, OrphanRecord, record.StoredName)
		return &RecordError{ID: id, Op: "delete", Err: err}
	}
	if !removed {
		// a concurrent delete got there first
		return ErrRecordNotFound
	}

	if err := s.eventSink.RecordDeleted(ctx, record); err != nil {
		s.logger.Warn("event sink failed", "event", "record_deleted", "id", id, "error", err)
	}
	return nil
}

func (s *service) Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileReport, error) {
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultReconcileGrace
	}

	// records first: a blob committed after this point shows up as a young orphan
	records, err := s.metadata.List(ctx)
	if err != nil {
		return nil, err
	}
	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{Records: len(records), Blobs: len(blobs)}
	referenced := make(map[string]struct{}, len(records))
	for _, r := range records {
		referenced[r.StoredName] = struct{}{}
	}
	present := make(map[string]struct{}, len(blobs))
	cutoff := s.now().Add(-grace)

	for _, b := range blobs {
		present[b.Name] = struct{}{}
		if _, ok := referenced[b.Name]; ok {
			continue
		}
		if b.ModTime.After(cutoff) {
			report.SkippedBlobs = append(report.SkippedBlobs, b.Name)
			continue
		}
		report.OrphanBlobs = append(report.OrphanBlobs, b.Name)
		s.notifyOrphan(ctx, OrphanBlob, b.Name)
		if !opts.Repair {
			continue
		}
		if err := s.blobs.Delete(ctx, b.Name); err != nil && !errors.Is(err, ErrBlobNotFound) {
			s.logger.Error("failed to remove orphan blob", "stored_name", b.Name, "error", err)
			continue
		}
		report.Repaired++
	}

	for _, r := range records {
		if _, ok := present[r.StoredName]; ok {
			continue
		}
		report.OrphanRecords = append(report.OrphanRecords, r.ID.String())
		s.notifyOrphan(ctx, OrphanRecord, r.StoredName)
		if !opts.Repair {
			continue
		}
		if _, err := s.metadata.DeleteByID(ctx, r.ID); err != nil {
			s.logger.Error("failed to remove orphan record", "id", r.ID, "error", err)
			continue
		}
		report.Repaired++
	}

	s.logger.Info("reconcile finished",
		"records", report.Records, "blobs", report.Blobs,
		"orphan_blobs", len(report.OrphanBlobs), "orphan_records", len(report.OrphanRecords),
		"repaired", report.Repaired)
	return report, nil
}

func (s *service) Close() error {
	return s.metadata.Close()
}

func (s *service) notifyOrphan(ctx context.Context, kind OrphanKind, name string) {
	if err := s.eventSink.OrphanDetected(ctx, kind, name); err != nil {
		s.logger.Warn("event sink failed", "event", "orphan_detected", "kind", kind, "error", err)
	}
}

// extensionOf returns the lower-cased extension of the base name, including the dot.
func extensionOf(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.ToLower(filepath.Ext(filepath.Base(name)))
}

func mimeTypeFor(declared, ext string) string {
	if declared != "" && declared != DefaultMimeType {
		return declared
	}
	if ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	if declared != "" {
		return declared
	}
	return DefaultMimeType
}
