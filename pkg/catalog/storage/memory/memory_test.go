package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-catalog/pkg/catalog"
	memorystorage "github.com/tendant/simple-catalog/pkg/catalog/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	backend := memorystorage.New(memorystorage.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()
	testData := "Hello, World! This is test data."

	var name string

	t.Run("Store", func(t *testing.T) {
		info, err := backend.Store(ctx, catalog.StoreRequest{
			ID:        uuid.New(),
			FieldName: "file",
			Extension: ".txt",
			MimeType:  "text/plain",
			Reader:    strings.NewReader(testData),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(len(testData)), info.Size)
		assert.Equal(t, fixed, info.ModTime)
		name = info.Name
	})

	t.Run("Stat", func(t *testing.T) {
		info, err := backend.Stat(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, int64(len(testData)), info.Size)
	})

	t.Run("Open", func(t *testing.T) {
		reader, err := backend.Open(ctx, name)
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, testData, string(data))
	})

	t.Run("List", func(t *testing.T) {
		blobs, err := backend.List(ctx)
		require.NoError(t, err)
		require.Len(t, blobs, 1)
		assert.Equal(t, name, blobs[0].Name)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, name))

		_, err := backend.Open(ctx, name)
		assert.ErrorIs(t, err, catalog.ErrBlobNotFound)

		err = backend.Delete(ctx, name)
		assert.ErrorIs(t, err, catalog.ErrBlobNotFound)
	})
}

func TestMemoryBackend_SizeLimit(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()

	_, err := backend.Store(ctx, catalog.StoreRequest{
		ID:        uuid.New(),
		SizeLimit: 4,
		Reader:    strings.NewReader("12345"),
	})
	assert.ErrorIs(t, err, catalog.ErrSizeLimitExceeded)

	blobs, err := backend.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

func TestMemoryBackend_CancelledStore(t *testing.T) {
	backend := memorystorage.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := backend.Store(ctx, catalog.StoreRequest{
		ID:     uuid.New(),
		Reader: strings.NewReader("abandoned"),
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, catalog.ErrStorageFailure)

	blobs, err := backend.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, blobs)
}
