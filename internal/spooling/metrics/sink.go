package metrics

import (
	"strconv"
	"time"

	"github.com/spoolhouse/sqlspool/internal/core/domain"
)

// Sink receives processing and resilience events for recording.
type Sink interface {
	RecordProcessingResult(configName string, result domain.ProcessingResult)
	RecordSQLExecutionTime(d time.Duration)
	RecordStatement(kind string, success bool)
	RecordCircuitStateChange(resource string, newState string)
	RecordCircuitRejection(resource string)
	RecordRetryAttempt(operation string, attempt int)
	RecordRetrySuccess(operation string)
	RecordRetryFailure(operation string)
	RecordError(category domain.ErrorCategory, context string)
	RecordQueueDepth(configName string, depth int)
	RecordDegradedMode(resource string, active bool)
}

// PromSink records events into the package-level Prometheus collectors.
type PromSink struct{}

// NewPromSink returns a Prometheus-backed sink.
func NewPromSink() *PromSink { return &PromSink{} }

func (s *PromSink) RecordProcessingResult(configName string, result domain.ProcessingResult) {
	FilesProcessed.WithLabelValues(configName, result.ProcessorType, string(result.Status)).Inc()
	ProcessingDuration.WithLabelValues(result.ProcessorType).
		Observe(float64(result.DurationMs) / 1000)
}

func (s *PromSink) RecordSQLExecutionTime(d time.Duration) {
	SQLExecutionDuration.Observe(d.Seconds())
}

func (s *PromSink) RecordStatement(kind string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	SQLStatements.WithLabelValues(kind, status).Inc()
}

func (s *PromSink) RecordCircuitStateChange(resource string, newState string) {
	var v float64
	switch newState {
	case "open":
		v = 1
	case "half_open":
		v = 2
	}
	CircuitState.WithLabelValues(resource).Set(v)
}

func (s *PromSink) RecordCircuitRejection(resource string) {
	CircuitRejections.WithLabelValues(resource).Inc()
}

func (s *PromSink) RecordRetryAttempt(operation string, attempt int) {
	RetryAttempts.WithLabelValues(operation, "attempt_"+strconv.Itoa(attempt)).Inc()
}

func (s *PromSink) RecordRetrySuccess(operation string) {
	RetryAttempts.WithLabelValues(operation, "success").Inc()
}

func (s *PromSink) RecordRetryFailure(operation string) {
	RetryAttempts.WithLabelValues(operation, "failure").Inc()
}

func (s *PromSink) RecordError(category domain.ErrorCategory, context string) {
	ErrorsTotal.WithLabelValues(string(category), context).Inc()
}

func (s *PromSink) RecordQueueDepth(configName string, depth int) {
	QueuedFiles.WithLabelValues(configName).Set(float64(depth))
}

func (s *PromSink) RecordDegradedMode(resource string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	DegradedMode.WithLabelValues(resource).Set(v)
}

// NopSink discards all events. Used by tests.
type NopSink struct{}

// NewNop returns a sink that records nothing.
func NewNop() *NopSink { return &NopSink{} }

func (s *NopSink) RecordProcessingResult(string, domain.ProcessingResult) {}
func (s *NopSink) RecordSQLExecutionTime(time.Duration)                   {}
func (s *NopSink) RecordStatement(string, bool)                           {}
func (s *NopSink) RecordCircuitStateChange(string, string)                {}
func (s *NopSink) RecordCircuitRejection(string)                          {}
func (s *NopSink) RecordRetryAttempt(string, int)                         {}
func (s *NopSink) RecordRetrySuccess(string)                              {}
func (s *NopSink) RecordRetryFailure(string)                              {}
func (s *NopSink) RecordError(domain.ErrorCategory, string)               {}
func (s *NopSink) RecordQueueDepth(string, int)                           {}
func (s *NopSink) RecordDegradedMode(string, bool)                        {}
