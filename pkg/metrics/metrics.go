package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docvault", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docvault", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// DocumentOps counts lifecycle operations by outcome (ok, or the error kind).
	DocumentOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docvault", Name: "documents_lifecycle_total", Help: "Document lifecycle operations by op and outcome."},
		[]string{"op", "outcome"},
	)
	BlobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "docvault", Name: "blob_operation_seconds", Help: "Blob store call latency by op.", Buckets: prometheus.DefBuckets},
		[]string{"op"},
	)
	VersionRecords = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docvault", Name: "version_records_total", Help: "Version records appended to document histories."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(DocumentOps)
	reg.MustRegister(BlobDuration)
	reg.MustRegister(VersionRecords)
}
