package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

func TestSink(t *testing.T) {
	ctx := context.Background()
	sink := NewSink()

	SeedStoredBytes([]*catalog.FileRecord{{SizeBytes: 100}, {SizeBytes: 50}})
	assert.Equal(t, float64(150), testutil.ToFloat64(storedBytes))

	uploadsBefore := testutil.ToFloat64(uploadsTotal)
	deletesBefore := testutil.ToFloat64(deletesTotal)
	orphansBefore := testutil.ToFloat64(orphansTotal.WithLabelValues("blob"))

	rec := &catalog.FileRecord{SizeBytes: 25}
	assert.NoError(t, sink.RecordCreated(ctx, rec))
	assert.Equal(t, uploadsBefore+1, testutil.ToFloat64(uploadsTotal))
	assert.Equal(t, float64(175), testutil.ToFloat64(storedBytes))

	assert.NoError(t, sink.RecordDeleted(ctx, rec))
	assert.Equal(t, deletesBefore+1, testutil.ToFloat64(deletesTotal))
	assert.Equal(t, float64(150), testutil.ToFloat64(storedBytes))

	assert.NoError(t, sink.OrphanDetected(ctx, catalog.OrphanBlob, "file-x.pdf"))
	assert.Equal(t, orphansBefore+1, testutil.ToFloat64(orphansTotal.WithLabelValues("blob")))
}
