package domain

import "time"

// ProcessingStatus is the outcome of handing one file to a processor.
type ProcessingStatus string

const (
	StatusSuccess ProcessingStatus = "SUCCESS"
	StatusFailure ProcessingStatus = "FAILURE"
	StatusSkipped ProcessingStatus = "SKIPPED"
)

// ProcessingResult describes what happened to a single dropped file.
// It is immutable once returned by the registry.
type ProcessingResult struct {
	Filename      string
	ProcessorType string
	Status        ProcessingStatus
	ErrorMessage  string
	DurationMs    int64
	ExecutedAt    time.Time
	Metadata      map[string]string
}

// Success builds a successful result for a file.
func Success(filename, processorType string) ProcessingResult {
	return ProcessingResult{
		Filename:      filename,
		ProcessorType: processorType,
		Status:        StatusSuccess,
		ExecutedAt:    time.Now(),
	}
}

// Failure builds a failed result carrying an error message.
func Failure(filename, processorType, message string) ProcessingResult {
	return ProcessingResult{
		Filename:      filename,
		ProcessorType: processorType,
		Status:        StatusFailure,
		ErrorMessage:  message,
		ExecutedAt:    time.Now(),
	}
}

// Skipped builds a result for a file the processor declined to handle.
func Skipped(filename, processorType, reason string) ProcessingResult {
	return ProcessingResult{
		Filename:      filename,
		ProcessorType: processorType,
		Status:        StatusSkipped,
		ErrorMessage:  reason,
		ExecutedAt:    time.Now(),
	}
}
