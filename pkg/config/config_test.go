package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/validation"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "gochannel", cfg.EventBus)
	assert.Equal(t, "memory", cfg.Queue.Provider)
	assert.Equal(t, 2, cfg.Retry.MaxRetries)
	assert.Equal(t, 90, cfg.Recovery.WindowDays)
	assert.InDelta(t, 4096, cfg.Resources.Limits.MaxActionMemoryMB, 0.001)
	assert.InDelta(t, 16384, cfg.Resources.Limits.MaxTotalMemoryMB, 0.001)

	require.NoError(t, config.Validate(cfg))
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
log_level: debug
retry:
  max_retries: 5
resources:
  max_action_memory_mb: 1024
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.InDelta(t, 1024, cfg.Resources.Limits.MaxActionMemoryMB, 0.001)

	// Everything the file doesn't mention stays at its default.
	assert.Equal(t, "gochannel", cfg.EventBus)
	assert.Equal(t, string(models.BackoffExponential), cfg.Retry.Strategy)
	assert.Equal(t, 90, cfg.Recovery.WindowDays)
	assert.InDelta(t, 32, cfg.Resources.Limits.MaxTotalCPUCores, 0.001)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "log_level: [unclosed")

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML config")
}

func TestLoadOrDefault_FallsBack(t *testing.T) {
	t.Parallel()

	cfg := config.LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Equal(t, config.Default(), cfg)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*config.Config)
		errorMsg string
	}{
		{
			name:   "default_config_is_valid",
			mutate: func(*config.Config) {},
		},
		{
			name:     "unsupported_event_bus",
			mutate:   func(c *config.Config) { c.EventBus = "rabbitmq" },
			errorMsg: "unsupported event bus: rabbitmq",
		},
		{
			name:     "unsupported_queue_provider",
			mutate:   func(c *config.Config) { c.Queue.Provider = "sqs" },
			errorMsg: "unsupported queue provider: sqs",
		},
		{
			name: "redis_queue_requires_key",
			mutate: func(c *config.Config) {
				c.Queue.Provider = "redis"
				c.Queue.Key = ""
			},
			errorMsg: "queue key is required",
		},
		{
			name:     "unsupported_retry_strategy",
			mutate:   func(c *config.Config) { c.Retry.Strategy = "fibonacci" },
			errorMsg: "unsupported retry strategy: fibonacci",
		},
		{
			name:     "negative_max_retries",
			mutate:   func(c *config.Config) { c.Retry.MaxRetries = -1 },
			errorMsg: "max_retries must not be negative",
		},
		{
			name:     "unsupported_strictness",
			mutate:   func(c *config.Config) { c.Rules.Strictness = "paranoid" },
			errorMsg: "unsupported rule strictness: paranoid",
		},
		{
			name:     "zero_recovery_window",
			mutate:   func(c *config.Config) { c.Recovery.WindowDays = 0 },
			errorMsg: "window_days must be positive",
		},
		{
			name:     "zero_capacity",
			mutate:   func(c *config.Config) { c.Capacity.MaxConcurrentTasks = 0 },
			errorMsg: "max_concurrent_tasks must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			tt.mutate(&cfg)

			err := config.Validate(cfg)

			if tt.errorMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestConfig_RetryPolicy(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Retry = config.RetryConfig{
		MaxRetries:     4,
		Strategy:       string(models.BackoffLinear),
		InitialDelayMS: 250,
		MaxDelayMS:     5000,
		Multiplier:     1.5,
	}

	policy := cfg.RetryPolicy()

	assert.Equal(t, 4, policy.MaxRetries)
	assert.Equal(t, models.BackoffLinear, policy.Strategy)
	assert.Equal(t, 250*time.Millisecond, policy.InitialDelay)
	assert.Equal(t, 5*time.Second, policy.MaxDelay)
	assert.InDelta(t, 1.5, policy.Multiplier, 0.001)
	assert.Equal(t, 5, policy.MaxAttempts())
}

func TestConfig_RecoveryWindow(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	assert.Equal(t, 90*24*time.Hour, cfg.RecoveryWindow())

	cfg.Recovery.WindowDays = 1
	assert.Equal(t, 24*time.Hour, cfg.RecoveryWindow())
}

func TestConfig_Strictness(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	assert.Equal(t, validation.StrictnessDefault, cfg.Strictness())

	cfg.Rules.Strictness = "strict"
	assert.Equal(t, validation.StrictnessStrict, cfg.Strictness())
}
