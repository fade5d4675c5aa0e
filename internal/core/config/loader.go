package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// MinPollInterval is the floor applied to watch polling intervals.
const MinPollInterval = 100 * time.Millisecond

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8081
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Spool.QueueFolder == "" {
		cfg.Spool.QueueFolder = "spool/queue"
	}
	if cfg.Spool.HealthInterval == 0 {
		cfg.Spool.HealthInterval = 15 * time.Second
	}
	if cfg.Spool.DiskThresholdPercent == 0 {
		cfg.Spool.DiskThresholdPercent = 95
	}

	for i := range cfg.Watches {
		if cfg.Watches[i].PollInterval == 0 {
			cfg.Watches[i].PollInterval = 10 * time.Second
		}
		if cfg.Watches[i].PollInterval < MinPollInterval {
			cfg.Watches[i].PollInterval = MinPollInterval
		}
	}

	if cfg.Resilience.Retry.MaxAttempts == 0 {
		cfg.Resilience.Retry.MaxAttempts = 3
	}
	if cfg.Resilience.Retry.InitialDelay == 0 {
		cfg.Resilience.Retry.InitialDelay = 1 * time.Second
	}
	if cfg.Resilience.Retry.Multiplier == 0 {
		cfg.Resilience.Retry.Multiplier = 2.0
	}
	if cfg.Resilience.Retry.MaxDelay == 0 {
		cfg.Resilience.Retry.MaxDelay = 60 * time.Second
	}
	if cfg.Resilience.Breaker.FailureThreshold == 0 {
		cfg.Resilience.Breaker.FailureThreshold = 5
	}
	if cfg.Resilience.Breaker.Window == 0 {
		cfg.Resilience.Breaker.Window = 60 * time.Second
	}
	if cfg.Resilience.Breaker.Cooldown == 0 {
		cfg.Resilience.Breaker.Cooldown = 30 * time.Second
	}
	if cfg.Resilience.Errors.EscalationThreshold == 0 {
		cfg.Resilience.Errors.EscalationThreshold = 10
	}
}

func validate(cfg *AppConfig) error {
	seen := make(map[string]bool)
	for _, w := range cfg.Watches {
		if w.Name == "" {
			return fmt.Errorf("watch config missing name")
		}
		if seen[w.Name] {
			return fmt.Errorf("duplicate watch config name: %s", w.Name)
		}
		seen[w.Name] = true

		if w.ProcessorType == "" {
			return fmt.Errorf("watch %s: missing processor_type", w.Name)
		}
		if w.WatchFolder == "" || w.CompletedFolder == "" || w.ErrorFolder == "" {
			return fmt.Errorf("watch %s: watch, completed and error folders are required", w.Name)
		}
	}
	return nil
}
