// Package metrics holds the Prometheus collectors for the catalog service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

var (
	ImageNormalizations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_image_normalizations_total",
			Help: "Uploaded images run through the normalizer, by result",
		},
		[]string{"result"},
	)

	ImageUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_image_uploads_total",
			Help: "Image uploads to the asset host, by result",
		},
		[]string{"result"},
	)

	ImageDeletes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_image_deletes_total",
			Help: "Image deletions on the asset host, by result",
		},
		[]string{"result"},
	)

	ImageBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_image_upload_bytes",
			Help:    "Size of normalized images sent to the asset host",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		},
	)
)

// Result maps an error to an outcome label.
func Result(err error) string {
	if err != nil {
		return ResultFailed
	}
	return ResultOK
}
