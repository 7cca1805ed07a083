// Package repotest holds behaviour checks shared by every catalog.MetadataStore.
package repotest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

// NewRecord returns a fully populated record with a fresh id.
func NewRecord(name string) *catalog.FileRecord {
	id := uuid.New()
	return &catalog.FileRecord{
		ID:              id,
		StoredName:      "file-" + id.String() + ".pdf",
		OriginalName:    name,
		Extension:       ".pdf",
		MimeType:        "application/pdf",
		SizeBytes:       2048,
		UploadTimestamp: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		Title:           name,
		ExamType:        "Final",
		ExamYear:        2023,
		PublishDate:     "2023-06-01",
		Description:     "Past paper",
	}
}

// Run exercises store through the MetadataStore contract. The store must start empty.
func Run(t *testing.T, newStore func(t *testing.T) catalog.MetadataStore) {
	t.Run("EmptyList", func(t *testing.T) {
		store := newStore(t)
		list, err := store.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("InsertionOrder", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		var ids []uuid.UUID
		for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
			rec := NewRecord(name)
			require.NoError(t, store.Insert(ctx, rec))
			ids = append(ids, rec.ID)
		}

		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		for i, id := range ids {
			assert.Equal(t, id, list[i].ID)
		}
	})

	t.Run("GetByID", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec := NewRecord("report.pdf")
		require.NoError(t, store.Insert(ctx, rec))

		got, err := store.GetByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.StoredName, got.StoredName)
		assert.Equal(t, rec.OriginalName, got.OriginalName)
		assert.Equal(t, rec.MimeType, got.MimeType)
		assert.Equal(t, rec.SizeBytes, got.SizeBytes)
		assert.Equal(t, rec.ExamYear, got.ExamYear)
		assert.Equal(t, rec.PublishDate, got.PublishDate)
		assert.Equal(t, rec.Description, got.Description)
		assert.True(t, rec.UploadTimestamp.Equal(got.UploadTimestamp))

		_, err = store.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, catalog.ErrRecordNotFound)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rec := NewRecord("a.pdf")
		require.NoError(t, store.Insert(ctx, rec))
		assert.ErrorIs(t, store.Insert(ctx, rec), catalog.ErrDuplicateRecord)
	})

	t.Run("DeleteByID", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		keep, drop := NewRecord("keep.pdf"), NewRecord("drop.pdf")
		require.NoError(t, store.Insert(ctx, keep))
		require.NoError(t, store.Insert(ctx, drop))

		removed, err := store.DeleteByID(ctx, drop.ID)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = store.DeleteByID(ctx, drop.ID)
		require.NoError(t, err)
		assert.False(t, removed)

		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, keep.ID, list[0].ID)
	})

	t.Run("ConcurrentInserts", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- store.Insert(ctx, NewRecord("doc.pdf"))
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		list, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, n)
	})
}
