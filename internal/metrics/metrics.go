package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecomputeQueueLength tracks the number of creators waiting for a recompute
	RecomputeQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "memescore_recompute_queue_length",
		Help: "The number of creators currently in the recompute queue",
	})

	// WorkersActive tracks the number of active workers
	WorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "memescore_workers_active",
		Help: "The number of workers currently active",
	})

	// RecomputesTotal tracks creator recomputes by status
	RecomputesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memescore_recomputes_total",
			Help: "The total number of creator score recomputes",
		},
		[]string{"status"}, // success, failed
	)

	// RecomputeSeconds tracks time taken by one creator recompute
	RecomputeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "memescore_recompute_seconds",
		Help:    "Time taken to recompute one creator score in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})

	// TipsRecorded tracks tip notifications by outcome
	TipsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memescore_tips_recorded_total",
			Help: "The total number of tip notifications processed",
		},
		[]string{"status"}, // recorded, duplicate, rejected
	)

	// ExternalRequestsTotal tracks calls to the social platform, AI backend and chain RPC
	ExternalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memescore_external_requests_total",
			Help: "The total number of external requests",
		},
		[]string{"target", "status"},
	)

	// DatabaseOperations tracks database operations
	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memescore_database_operations_total",
			Help: "The total number of database operations",
		},
		[]string{"operation", "status"},
	)

	// RPCEndpointHealth tracks RPC endpoint health
	RPCEndpointHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memescore_rpc_endpoint_health",
			Help: "Health status of RPC endpoints (1 = healthy, 0 = unhealthy)",
		},
		[]string{"endpoint"},
	)

	// WorkerTaskDuration tracks how long workers spend on tasks
	WorkerTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memescore_worker_task_duration_seconds",
			Help:    "Time taken by workers to complete tasks",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task_type", "worker_id"},
	)

	// HTTPRequestsTotal tracks API requests by route and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memescore_http_requests_total",
			Help: "The total number of API requests",
		},
		[]string{"route", "method", "code"},
	)
)

// RecordRecompute records the outcome and duration of one creator recompute
func RecordRecompute(status string, duration float64) {
	RecomputesTotal.WithLabelValues(status).Inc()
	RecomputeSeconds.Observe(duration)
}

// RecordTip records a processed tip notification
func RecordTip(status string) {
	TipsRecorded.WithLabelValues(status).Inc()
}

// RecordExternalRequest records a request to an external dependency
func RecordExternalRequest(target, status string) {
	ExternalRequestsTotal.WithLabelValues(target, status).Inc()
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string) {
	DatabaseOperations.WithLabelValues(operation, status).Inc()
}

// SetRPCEndpointHealth sets the health status of an RPC endpoint
func SetRPCEndpointHealth(endpoint string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	RPCEndpointHealth.WithLabelValues(endpoint).Set(value)
}

// RecordWorkerTaskDuration records the time taken by a worker to complete a task
func RecordWorkerTaskDuration(taskType, workerID string, duration float64) {
	WorkerTaskDuration.WithLabelValues(taskType, workerID).Observe(duration)
}

// RecordHTTPRequest records a served API request
func RecordHTTPRequest(route, method, code string) {
	HTTPRequestsTotal.WithLabelValues(route, method, code).Inc()
}
