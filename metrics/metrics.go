// Package metrics declares the prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	prometheus.MustRegister(StoreOperations, StoreLatency, CollectionRetries, UploadBytes)
}

var (
	StoreOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Document store calls by backend, operation and outcome",
	}, []string{"backend", "op", "outcome"})

	StoreLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "campus",
		Subsystem: "store",
		Name:      "operation_seconds",
		Help:      "Latency of document store calls",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "op"})

	CollectionRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus",
		Subsystem: "collections",
		Name:      "retries_total",
		Help:      "Read-modify-write cycles restarted, by collection and reason",
	}, []string{"collection", "reason"})

	UploadBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus",
		Subsystem: "uploads",
		Name:      "bytes_total",
		Help:      "Bytes stored through the upload gateway by category",
	}, []string{"category"})
)
