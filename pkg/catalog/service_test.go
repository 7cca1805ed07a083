package catalog_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-catalog/pkg/catalog"
	"github.com/tendant/simple-catalog/pkg/catalog/repo/jsonfile"
	"github.com/tendant/simple-catalog/pkg/catalog/repo/memory"
	fsstorage "github.com/tendant/simple-catalog/pkg/catalog/storage/fs"
	memorystorage "github.com/tendant/simple-catalog/pkg/catalog/storage/memory"
)

// flakyStore fails the first N inserts or deletes
type flakyStore struct {
	*memory.Repository
	mu          sync.Mutex
	failInserts int
	failDeletes int
}

func (f *flakyStore) Insert(ctx context.Context, record *catalog.FileRecord) error {
	f.mu.Lock()
	fail := f.failInserts > 0
	if fail {
		f.failInserts--
	}
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Repository.Insert(ctx, record)
}

func (f *flakyStore) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	fail := f.failDeletes > 0
	if fail {
		f.failDeletes--
	}
	f.mu.Unlock()
	if fail {
		return false, errors.New("disk full")
	}
	return f.Repository.DeleteByID(ctx, id)
}

type recordingSink struct {
	mu      sync.Mutex
	created int
	deleted int
	orphans []catalog.OrphanKind
}

func (s *recordingSink) RecordCreated(ctx context.Context, record *catalog.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created++
	return nil
}

func (s *recordingSink) RecordDeleted(ctx context.Context, record *catalog.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted++
	return nil
}

func (s *recordingSink) OrphanDetected(ctx context.Context, kind catalog.OrphanKind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orphans = append(s.orphans, kind)
	return nil
}

func newTestService(t *testing.T, opts ...catalog.Option) (catalog.Service, *memorystorage.Backend) {
	t.Helper()
	blobs := memorystorage.New()
	base := []catalog.Option{
		catalog.WithBlobStore(blobs),
		catalog.WithMetadataStore(memory.New()),
	}
	svc, err := catalog.New(append(base, opts...)...)
	require.NoError(t, err)
	return svc, blobs
}

func TestNew_RequiresStores(t *testing.T) {
	_, err := catalog.New(catalog.WithMetadataStore(memory.New()))
	assert.Error(t, err)

	_, err = catalog.New(catalog.WithBlobStore(memorystorage.New()))
	assert.Error(t, err)
}

func TestService_UploadRoundTrip(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	svc, _ := newTestService(t, catalog.WithEventSink(sink))

	content := []byte("Question 1: integrate x^2")
	record, err := svc.Upload(ctx, catalog.UploadRequest{
		Reader:       bytes.NewReader(content),
		OriginalName: "calc.pdf",
		MimeType:     "application/pdf",
		Title:        "Calculus",
		ExamType:     "Final",
		ExamYear:     2022,
		PublishDate:  "2022-05-01",
		Description:  "Spring term",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.Equal(t, "Calculus", record.Title)
	assert.Equal(t, 2022, record.ExamYear)
	assert.Equal(t, int64(len(content)), record.SizeBytes)
	assert.True(t, strings.HasSuffix(record.StoredName, ".pdf"))
	assert.Equal(t, 1, sink.created)

	got, err := svc.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record, got)

	dl, err := svc.Download(ctx, record.ID)
	require.NoError(t, err)
	defer dl.Body.Close()
	data, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, "calc.pdf", dl.FileName)
	assert.Equal(t, "application/pdf", dl.ContentType)
	assert.Equal(t, int64(len(content)), dl.Size)
}

func TestService_UploadDefaults(t *testing.T) {
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, catalog.WithClock(func() time.Time { return now }))

	record, err := svc.Upload(context.Background(), catalog.UploadRequest{
		Reader:       bytes.NewReader(make([]byte, 1024)),
		OriginalName: "report.pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", record.Title)
	assert.Equal(t, catalog.DefaultExamType, record.ExamType)
	assert.Equal(t, 2024, record.ExamYear)
	assert.Equal(t, "2024-03-09", record.PublishDate)
	assert.Equal(t, "", record.Description)
	assert.Equal(t, ".pdf", record.Extension)
	assert.Equal(t, "application/pdf", record.MimeType)
	assert.Equal(t, int64(1024), record.SizeBytes)
	assert.Equal(t, now, record.UploadTimestamp)
}

func TestService_UploadMimeFallback(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		declared string
		want     string
	}{
		{name: "figure.png", declared: "application/octet-stream", want: "image/png"},
		{name: "noext", declared: "", want: catalog.DefaultMimeType},
		{name: "paper.pdf", declared: "application/x-custom", want: "application/x-custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := svc.Upload(ctx, catalog.UploadRequest{
				Reader:       strings.NewReader("x"),
				OriginalName: tt.name,
				MimeType:     tt.declared,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, record.MimeType)
		})
	}
}

func TestService_UploadValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, catalog.UploadRequest{OriginalName: "a.pdf"})
	assert.ErrorIs(t, err, catalog.ErrValidation)

	_, err = svc.Upload(ctx, catalog.UploadRequest{Reader: strings.NewReader("x"), OriginalName: "  "})
	assert.ErrorIs(t, err, catalog.ErrValidation)
}

func TestService_UploadSizeLimit(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newTestService(t, catalog.WithMaxUploadSize(8))

	_, err := svc.Upload(ctx, catalog.UploadRequest{
		Reader:       strings.NewReader("0123456789"),
		OriginalName: "big.pdf",
	})
	require.ErrorIs(t, err, catalog.ErrSizeLimitExceeded)

	stored, err := blobs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	// per-request limit overrides the service default
	_, err = svc.Upload(ctx, catalog.UploadRequest{
		Reader:       strings.NewReader("0123456789"),
		OriginalName: "big.pdf",
		SizeLimit:    10,
	})
	require.NoError(t, err)
}

func TestService_UploadCompensatesFailedInsert(t *testing.T) {
	ctx := context.Background()
	blobs := memorystorage.New()
	store := &flakyStore{Repository: memory.New(), failInserts: 1}
	svc, err := catalog.New(catalog.WithBlobStore(blobs), catalog.WithMetadataStore(store))
	require.NoError(t, err)

	_, err = svc.Upload(ctx, catalog.UploadRequest{Reader: strings.NewReader("x"), OriginalName: "a.pdf"})
	require.Error(t, err)
	var recErr *catalog.RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "upload", recErr.Op)

	stored, err := blobs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored, "blob must be removed when the record cannot be saved")
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	svc, blobs := newTestService(t, catalog.WithEventSink(sink))

	record, err := svc.Upload(ctx, catalog.UploadRequest{Reader: strings.NewReader("x"), OriginalName: "a.pdf"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, record.ID))
	assert.Equal(t, 1, sink.deleted)

	_, err = blobs.Stat(ctx, record.StoredName)
	assert.ErrorIs(t, err, catalog.ErrBlobNotFound)

	_, err = svc.Get(ctx, record.ID)
	assert.ErrorIs(t, err, catalog.ErrRecordNotFound)

	err = svc.Delete(ctx, record.ID)
	assert.ErrorIs(t, err, catalog.ErrRecordNotFound)

	err = svc.Delete(ctx, uuid.New())
	assert.True(t, catalog.IsNotFound(err))
}

func TestService_DeleteMissingBlob(t *testing.T) {
	ctx := context.Background()
	svc, blobs := newTestService(t)

	record, err := svc.Upload(ctx, catalog.UploadRequest{Reader: strings.NewReader("x"), OriginalName: "a.pdf"})
	require.NoError(t, err)
	require.NoError(t, blobs.Delete(ctx, record.StoredName))

	_, err = svc.Download(ctx, record.ID)
	require.ErrorIs(t, err, catalog.ErrBlobNotFound)

	require.NoError(t, svc.Delete(ctx, record.ID))
	_, err = svc.Get(ctx, record.ID)
	assert.ErrorIs(t, err, catalog.ErrRecordNotFound)
}

func TestService_DeleteRetryAfterMetadataFailure(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	blobs := memorystorage.New()
	store := &flakyStore{Repository: memory.New(), failDeletes: 1}
	svc, err := catalog.New(
		catalog.WithBlobStore(blobs),
		catalog.WithMetadataStore(store),
		catalog.WithEventSink(sink),
	)
	require.NoError(t, err)

	record, err := svc.Upload(ctx, catalog.UploadRequest{Reader: strings.NewReader("x"), OriginalName: "a.pdf"})
	require.NoError(t, err)

	err = svc.Delete(ctx, record.ID)
	require.Error(t, err)
	assert.False(t, catalog.IsNotFound(err))
	assert.Contains(t, sink.orphans, catalog.OrphanRecord)

	// the record survives and a retry completes the delete
	_, err = svc.Get(ctx, record.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, record.ID))

	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// backends lists the store pairs the concurrency tests run against
func backends(t *testing.T) map[string]func(t *testing.T) (catalog.Service, catalog.BlobStore) {
	t.Helper()
	return map[string]func(t *testing.T) (catalog.Service, catalog.BlobStore){
		"memory": func(t *testing.T) (catalog.Service, catalog.BlobStore) {
			svc, blobs := newTestService(t)
			return svc, blobs
		},
		"fs+jsonfile": func(t *testing.T) (catalog.Service, catalog.BlobStore) {
			dir := t.TempDir()
			blobs, err := fsstorage.New(fsstorage.Config{BaseDir: filepath.Join(dir, "uploads")})
			require.NoError(t, err)
			store, err := jsonfile.New(filepath.Join(dir, "data", "files.json"))
			require.NoError(t, err)
			svc, err := catalog.New(catalog.WithBlobStore(blobs), catalog.WithMetadataStore(store))
			require.NoError(t, err)
			t.Cleanup(func() { svc.Close() })
			return svc, blobs
		},
	}
}

func TestService_ConcurrentUploads(t *testing.T) {
	for name, build := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc, blobs := build(t)

			const n = 50
			var wg sync.WaitGroup
			results := make([]*catalog.FileRecord, n)
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = svc.Upload(ctx, catalog.UploadRequest{
						Reader:       strings.NewReader("same name"),
						OriginalName: "paper.pdf",
					})
				}(i)
			}
			wg.Wait()

			ids := make(map[uuid.UUID]struct{}, n)
			names := make(map[string]struct{}, n)
			for i := 0; i < n; i++ {
				require.NoError(t, errs[i])
				ids[results[i].ID] = struct{}{}
				names[results[i].StoredName] = struct{}{}
			}
			assert.Len(t, ids, n)
			assert.Len(t, names, n)

			records, err := svc.List(ctx)
			require.NoError(t, err)
			assert.Len(t, records, n)

			stored, err := blobs.List(ctx)
			require.NoError(t, err)
			assert.Len(t, stored, n)
		})
	}
}

func TestService_ConcurrentDeleteSameID(t *testing.T) {
	for name, build := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc, blobs := build(t)

			record, err := svc.Upload(ctx, catalog.UploadRequest{
				Reader:       strings.NewReader("contested"),
				OriginalName: "paper.pdf",
			})
			require.NoError(t, err)

			const n = 10
			var wg sync.WaitGroup
			errs := make([]error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = svc.Delete(ctx, record.ID)
				}(i)
			}
			wg.Wait()

			var ok, notFound int
			for _, err := range errs {
				switch {
				case err == nil:
					ok++
				case errors.Is(err, catalog.ErrRecordNotFound):
					notFound++
				default:
					t.Errorf("unexpected delete error: %v", err)
				}
			}
			assert.Equal(t, 1, ok)
			assert.Equal(t, n-1, notFound)

			_, err = blobs.Stat(ctx, record.StoredName)
			assert.ErrorIs(t, err, catalog.ErrBlobNotFound)

			records, err := svc.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestService_ListOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	var want []uuid.UUID
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		record, err := svc.Upload(ctx, catalog.UploadRequest{Reader: strings.NewReader(name), OriginalName: name})
		require.NoError(t, err)
		want = append(want, record.ID)
	}

	records, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, want[i], r.ID)
	}
}

func TestService_Reconcile(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	now := start
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	sink := &recordingSink{}
	blobs := memorystorage.New(memorystorage.WithClock(clock))
	svc, err := catalog.New(
		catalog.WithBlobStore(blobs),
		catalog.WithMetadataStore(memory.New()),
		catalog.WithEventSink(sink),
		catalog.WithClock(clock),
	)
	require.NoError(t, err)

	kept, err := svc.Upload(ctx, catalog.UploadRequest{Reader: strings.NewReader("keep"), OriginalName: "keep.pdf"})
	require.NoError(t, err)
	lost, err := svc.Upload(ctx, catalog.UploadRequest{Reader: strings.NewReader("lost"), OriginalName: "lost.pdf"})
	require.NoError(t, err)
	require.NoError(t, blobs.Delete(ctx, lost.StoredName))

	stray, err := blobs.Store(ctx, catalog.StoreRequest{
		ID:        uuid.New(),
		FieldName: catalog.DefaultFieldName,
		Extension: ".pdf",
		Reader:    strings.NewReader("stray"),
	})
	require.NoError(t, err)

	// inside the grace period the stray blob is left alone
	report, err := svc.Reconcile(ctx, catalog.ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Records)
	assert.Equal(t, 2, report.Blobs)
	assert.Empty(t, report.OrphanBlobs)
	assert.Equal(t, []string{stray.Name}, report.SkippedBlobs)
	assert.Equal(t, []string{lost.ID.String()}, report.OrphanRecords)
	assert.False(t, report.Clean())

	advance(2 * time.Hour)

	report, err = svc.Reconcile(ctx, catalog.ReconcileOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{stray.Name}, report.OrphanBlobs)
	assert.Zero(t, report.Repaired)

	report, err = svc.Reconcile(ctx, catalog.ReconcileOptions{Repair: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Repaired)
	assert.Contains(t, sink.orphans, catalog.OrphanBlob)
	assert.Contains(t, sink.orphans, catalog.OrphanRecord)

	report, err = svc.Reconcile(ctx, catalog.ReconcileOptions{})
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.Records)
	assert.Equal(t, 1, report.Blobs)

	_, err = svc.Get(ctx, kept.ID)
	require.NoError(t, err)
}
