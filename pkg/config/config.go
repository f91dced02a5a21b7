// Package config provides configuration loading for the engine from a YAML
// file. Every knob has a default, so a missing file yields a working
// single-node setup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/validation"
)

// Config represents the structure of the loom.yaml file.
type Config struct {
	LogLevel    string         `yaml:"log_level"`
	DatabaseURL string         `yaml:"database_url"`
	EventBus    string         `yaml:"event_bus"`
	Queue       QueueConfig    `yaml:"queue"`
	Retry       RetryConfig    `yaml:"retry"`
	Resources   ResourceConfig `yaml:"resources"`
	Rules       RulesConfig    `yaml:"rules"`
	Recovery    RecoveryConfig `yaml:"recovery"`
	Capacity    CapacityConfig `yaml:"capacity"`
}

// QueueConfig selects the deferred-task queue backend.
type QueueConfig struct {
	Provider string `yaml:"provider"` // memory or redis
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// RetryConfig holds the retry policy applied to tasks that carry none.
type RetryConfig struct {
	MaxRetries     int     `yaml:"max_retries"`
	Strategy       string  `yaml:"strategy"` // constant, linear or exponential
	InitialDelayMS int     `yaml:"initial_delay_ms"`
	MaxDelayMS     int     `yaml:"max_delay_ms"`
	Multiplier     float64 `yaml:"multiplier"`
}

// ResourceConfig carries the validation ceilings for declared resources.
type ResourceConfig struct {
	Limits validation.ResourceLimits `yaml:",inline"`
}

// RulesConfig tunes business rule evaluation.
type RulesConfig struct {
	Strictness string `yaml:"strictness"` // default, relaxed or strict
}

// RecoveryConfig bounds soft-delete recovery.
type RecoveryConfig struct {
	WindowDays    int    `yaml:"window_days"`
	SweepSchedule string `yaml:"sweep_schedule"` // Cron expression for the retention sweeper
}

// CapacityConfig bounds concurrent task execution.
type CapacityConfig struct {
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		LogLevel:    "info",
		DatabaseURL: "file://./data",
		EventBus:    "gochannel",
		Queue: QueueConfig{
			Provider: "memory",
			Addr:     "localhost:6379",
			Key:      "loom:tasks:deferred",
		},
		Retry: RetryConfig{
			MaxRetries:     2,
			Strategy:       string(models.BackoffExponential),
			InitialDelayMS: 100,
			MaxDelayMS:     30000,
			Multiplier:     2.0,
		},
		Resources: ResourceConfig{
			Limits: validation.DefaultResourceLimits(),
		},
		Rules: RulesConfig{
			Strictness: string(validation.StrictnessDefault),
		},
		Recovery: RecoveryConfig{
			WindowDays:    90,
			SweepSchedule: "0 3 * * *",
		},
		Capacity: CapacityConfig{
			MaxConcurrentTasks: 32,
		},
	}
}

// Load reads configuration from a YAML file. Keys absent from the file keep
// their defaults.
func Load(filepath string) (Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	config := Default()

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return config, nil
}

// LoadOrDefault attempts to load configuration from a file, falling back to
// the defaults if the file doesn't exist or fails to parse.
func LoadOrDefault(filepath string) Config {
	config, err := Load(filepath)
	if err != nil {
		return Default()
	}

	return config
}

// Validate checks the configuration for values the engine cannot run with.
func Validate(config Config) error {
	switch config.EventBus {
	case "gochannel", "kafka":
	default:
		return fmt.Errorf("unsupported event bus: %s", config.EventBus)
	}

	switch config.Queue.Provider {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported queue provider: %s", config.Queue.Provider)
	}

	if config.Queue.Provider == "redis" && config.Queue.Key == "" {
		return fmt.Errorf("queue key is required for the redis provider")
	}

	switch models.BackoffStrategy(config.Retry.Strategy) {
	case models.BackoffConstant, models.BackoffLinear, models.BackoffExponential:
	default:
		return fmt.Errorf("unsupported retry strategy: %s", config.Retry.Strategy)
	}

	if config.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry max_retries must not be negative")
	}

	switch validation.Strictness(config.Rules.Strictness) {
	case validation.StrictnessDefault, validation.StrictnessRelaxed, validation.StrictnessStrict:
	default:
		return fmt.Errorf("unsupported rule strictness: %s", config.Rules.Strictness)
	}

	if config.Recovery.WindowDays <= 0 {
		return fmt.Errorf("recovery window_days must be positive")
	}

	if config.Capacity.MaxConcurrentTasks <= 0 {
		return fmt.Errorf("capacity max_concurrent_tasks must be positive")
	}

	return nil
}

// RetryPolicy converts the retry section into the policy applied to tasks.
func (c Config) RetryPolicy() models.RetryPolicy {
	return models.RetryPolicy{
		MaxRetries:   c.Retry.MaxRetries,
		Strategy:     models.BackoffStrategy(c.Retry.Strategy),
		InitialDelay: time.Duration(c.Retry.InitialDelayMS) * time.Millisecond,
		MaxDelay:     time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
		Multiplier:   c.Retry.Multiplier,
	}
}

// ResourceLimits returns the validation ceilings from the resources section.
func (c Config) ResourceLimits() validation.ResourceLimits {
	return c.Resources.Limits
}

// Strictness returns the rule profile from the rules section.
func (c Config) Strictness() validation.Strictness {
	return validation.Strictness(c.Rules.Strictness)
}

// RecoveryWindow returns the soft-delete retention window as a duration.
func (c Config) RecoveryWindow() time.Duration {
	return time.Duration(c.Recovery.WindowDays) * 24 * time.Hour
}
