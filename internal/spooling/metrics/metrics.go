package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesProcessed tracks files processed per configuration and outcome
	FilesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlspool_files_processed_total",
			Help: "Total number of files processed",
		},
		[]string{"config", "processor", "status"},
	)

	// ProcessingDuration tracks file processing latency per processor
	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlspool_processing_duration_seconds",
			Help:    "File processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"processor"},
	)

	// SQLExecutionDuration tracks SQL script execution latency
	SQLExecutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlspool_sql_execution_seconds",
			Help:    "SQL script execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SQLStatements tracks executed statements by kind and outcome
	SQLStatements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlspool_sql_statements_total",
			Help: "Total number of SQL statements executed",
		},
		[]string{"kind", "status"},
	)

	// CircuitState exposes the current breaker state per resource
	// (0=closed, 1=open, 2=half-open)
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sqlspool_circuit_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"resource"},
	)

	// CircuitRejections counts calls short-circuited to the fallback
	CircuitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlspool_circuit_rejections_total",
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"resource"},
	)

	// RetryAttempts counts retry attempts per operation and result
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlspool_retry_attempts_total",
			Help: "Total number of retry attempts",
		},
		[]string{"operation", "result"},
	)

	// ErrorsTotal counts handled errors by category and context
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlspool_errors_total",
			Help: "Total number of classified errors",
		},
		[]string{"category", "context"},
	)

	// QueuedFiles exposes the degradation queue depth per configuration
	QueuedFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sqlspool_queued_files",
			Help: "Number of files waiting in the degradation queue",
		},
		[]string{"config"},
	)

	// DegradedMode exposes whether a resource is degraded (0/1)
	DegradedMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sqlspool_degraded_mode",
			Help: "Whether a resource is in degraded mode (0/1)",
		},
		[]string{"resource"},
	)

	// DBConnectionPoolUsage exposes database pool utilisation percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlspool_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
