package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_image_provider_request_duration_seconds",
			Help:    "Duration of image provider API calls, including retries.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	uploadTargetsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gallery_upload_targets_issued_total",
		Help: "One-time upload targets obtained from the image provider.",
	})

	photosRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_photos_recorded_total",
			Help: "Photo metadata submissions by result.",
		},
		[]string{"result"},
	)

	revalidationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gallery_revalidation_failures_total",
		Help: "Revalidation notifications that failed after a photo was recorded.",
	})
)

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}
