package domain

import "time"

// ErrorCategory groups raised errors by the subsystem they implicate.
type ErrorCategory string

const (
	CategoryDatabase   ErrorCategory = "DATABASE"
	CategoryFileSystem ErrorCategory = "FILE_SYSTEM"
	CategorySecurity   ErrorCategory = "SECURITY"
	CategoryUnknown    ErrorCategory = "UNKNOWN"
)

// RecoveryStrategy is the action the error handler recommends to the caller.
type RecoveryStrategy string

const (
	StrategyExponentialBackoff RecoveryStrategy = "EXPONENTIAL_BACKOFF"
	StrategyLinearBackoff      RecoveryStrategy = "LINEAR_BACKOFF"
	StrategyFailFast           RecoveryStrategy = "FAIL_FAST"
	StrategyCircuitBreak       RecoveryStrategy = "CIRCUIT_BREAK"
)

// ErrorReport is returned by the error handler for every handled error.
type ErrorReport struct {
	Category    ErrorCategory
	Strategy    RecoveryStrategy
	Message     string
	Occurrences int
	ShouldAlert bool
}

// ErrorPattern tracks repetition of one (context, category) error signature.
type ErrorPattern struct {
	Context     string
	Category    ErrorCategory
	Occurrences int
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Resource names guarded by circuit breakers and degraded-mode tracking.
const (
	ResourceDatabase   = "database"
	ResourceFilesystem = "filesystem"
)
