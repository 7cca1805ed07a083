// Package metrics exposes catalog activity as Prometheus metrics.
//
// Business metrics are updated through Sink, which plugs into the service
// as a catalog.EventSink. HTTP metrics are updated by the api middleware.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_http_requests_total",
			Help: "Total number of HTTP requests served by the catalog",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_http_request_duration_seconds",
			Help:    "Duration of catalog HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Business metrics
var (
	uploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_uploads_total",
		Help: "Total number of committed uploads",
	})

	deletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_deletes_total",
		Help: "Total number of deleted records",
	})

	orphansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_orphans_total",
		Help: "Inconsistencies detected between the blob store and the catalog",
	}, []string{"kind"})

	storedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_stored_bytes",
		Help: "Bytes held by cataloged blobs, as seen by this process",
	})
)

// Sink is a catalog.EventSink that records events as metrics
type Sink struct{}

// NewSink returns a metrics-backed event sink
func NewSink() *Sink {
	return &Sink{}
}

// SeedStoredBytes initializes the stored-bytes gauge from an existing catalog
func SeedStoredBytes(records []*catalog.FileRecord) {
	var total int64
	for _, r := range records {
		total += r.SizeBytes
	}
	storedBytes.Set(float64(total))
}

func (s *Sink) RecordCreated(ctx context.Context, record *catalog.FileRecord) error {
	uploadsTotal.Inc()
	storedBytes.Add(float64(record.SizeBytes))
	return nil
}

func (s *Sink) RecordDeleted(ctx context.Context, record *catalog.FileRecord) error {
	deletesTotal.Inc()
	storedBytes.Sub(float64(record.SizeBytes))
	return nil
}

func (s *Sink) OrphanDetected(ctx context.Context, kind catalog.OrphanKind, storedName string) error {
	orphansTotal.WithLabelValues(string(kind)).Inc()
	return nil
}
