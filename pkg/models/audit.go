package models

import "time"

// Audit action tags written after validated state transitions.
const (
	AuditAgentRegistered   = "agent.registered"
	AuditAgentDeregistered = "agent.deregistered"
	AuditAgentIsolated     = "agent.isolated"
	AuditAgentReenabled    = "agent.reenabled"
	AuditTaskExecuted      = "task.executed"
	AuditDiscoveryRun      = "discovery.run"
	AuditRecoveryAssessed  = "recovery.assessed"
	AuditModelPublished    = "model.published"
	AuditModelArchived     = "model.archived"
	AuditModelRecovered    = "model.recovered"
	AuditModelSoftDeleted  = "model.soft_deleted"
	AuditRetentionExpired  = "retention.expired"
)

// AuditEntry is one append-only compliance record.
type AuditEntry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"    validate:"required"`
	EntityID  string         `json:"entity_id" validate:"required"`
	Actor     string         `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}
