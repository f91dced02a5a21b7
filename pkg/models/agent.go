package models

import "time"

// AgentCapabilities declares what a worker agent can do. Boolean flags cover
// the capability families used by discovery scoring; numeric limits bound the
// agent's concurrency and supported payload kinds.
type AgentCapabilities struct {
	CanRead            bool     `json:"can_read"`
	CanWrite           bool     `json:"can_write"`
	CanExecute         bool     `json:"can_execute"`
	CanAnalyze         bool     `json:"can_analyze"`
	CanOrchestrate     bool     `json:"can_orchestrate"`
	MaxConcurrentTasks int      `json:"max_concurrent_tasks" validate:"gte=0"`
	SupportedDataTypes []string `json:"supported_data_types,omitempty"`
}

// Has reports whether the named capability flag is set. Unknown names are
// simply absent.
func (c AgentCapabilities) Has(flag string) bool {
	switch flag {
	case CapabilityRead:
		return c.CanRead
	case CapabilityWrite:
		return c.CanWrite
	case CapabilityExecute:
		return c.CanExecute
	case CapabilityAnalyze:
		return c.CanAnalyze
	case CapabilityOrchestrate:
		return c.CanOrchestrate
	default:
		return false
	}
}

// Capability flag names used in discovery requests.
const (
	CapabilityRead        = "read"
	CapabilityWrite       = "write"
	CapabilityExecute     = "execute"
	CapabilityAnalyze     = "analyze"
	CapabilityOrchestrate = "orchestrate"
)

// AgentStats accumulates execution history for an agent.
type AgentStats struct {
	TotalExecutions int64 `json:"total_executions"`
	Successes       int64 `json:"successes"`
	Failures        int64 `json:"failures"`
	TotalDurationMS int64 `json:"total_duration_ms"`
}

// Record folds one execution outcome into the stats.
func (s *AgentStats) Record(duration time.Duration, success bool) {
	s.TotalExecutions++
	s.TotalDurationMS += duration.Milliseconds()

	if success {
		s.Successes++
	} else {
		s.Failures++
	}
}

// SuccessRate returns successes over total executions, zero when idle.
func (s *AgentStats) SuccessRate() float64 {
	if s.TotalExecutions == 0 {
		return 0
	}

	return float64(s.Successes) / float64(s.TotalExecutions)
}

// AverageDurationMS returns the mean execution duration in milliseconds.
func (s *AgentStats) AverageDurationMS() int64 {
	if s.TotalExecutions == 0 {
		return 0
	}

	return s.TotalDurationMS / s.TotalExecutions
}

// Agent is a capability-tagged worker. Registered agents become discoverable,
// execute tasks, and may be isolated (disabled) after exhausting a retry
// policy until an operator re-enables them.
type Agent struct {
	ID           string            `json:"id"   validate:"required"`
	Name         string            `json:"name" validate:"required,min=1"`
	Kind         string            `json:"kind"` // Executor kind resolved through the registry
	Enabled      bool              `json:"enabled"`
	Capabilities AgentCapabilities `json:"capabilities"`
	Stats        AgentStats        `json:"stats"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
