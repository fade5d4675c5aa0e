package config

import (
	"time"

	"github.com/spoolhouse/sqlspool/internal/infra/queuestore"
	"github.com/spoolhouse/sqlspool/internal/infra/storage"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig           `yaml:"server"`
	Logging    LoggingConfig          `yaml:"logging"`
	Database   storage.Config         `yaml:"database"`
	Redis      queuestore.RedisConfig `yaml:"redis"`
	Spool      SpoolConfig            `yaml:"spool"`
	Watches    []WatchConfig          `yaml:"watches"`
	Resilience ResilienceConfig       `yaml:"resilience"`
}

// ServerConfig holds HTTP server settings for the ops surface.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SpoolConfig holds settings shared across all watches.
type SpoolConfig struct {
	QueueFolder          string        `yaml:"queue_folder"`           // root for degraded-mode file diversion
	DiskThresholdPercent float64       `yaml:"disk_threshold_percent"` // 0 disables the disk probe
	HealthInterval       time.Duration `yaml:"health_interval"`
}

// WatchConfig defines one monitored folder workflow.
type WatchConfig struct {
	Name            string        `yaml:"name"`
	ProcessorType   string        `yaml:"processor_type"`
	WatchFolder     string        `yaml:"watch_folder"`
	CompletedFolder string        `yaml:"completed_folder"`
	ErrorFolder     string        `yaml:"error_folder"`
	FilePatterns    []string      `yaml:"file_patterns"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	Enabled         bool          `yaml:"enabled"`
	FSEvents        bool          `yaml:"fs_events"` // fsnotify fast path on top of polling
}

// ResilienceConfig groups retry, breaker, and error-handler tuning.
type ResilienceConfig struct {
	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`
	Errors  ErrorsConfig  `yaml:"errors"`
}

// RetryConfig tunes the bounded-retry executor.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// BreakerConfig tunes the per-resource circuit breakers.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Window           time.Duration `yaml:"window"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// ErrorsConfig tunes the error handler.
type ErrorsConfig struct {
	EscalationThreshold int `yaml:"escalation_threshold"`
}
