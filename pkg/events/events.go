// Package events defines event types and structures for orchestration lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const Topic = "loom.events" // All engine lifecycle events share one topic

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Agent lifecycle events.
	AgentRegisteredEvent   EventType = "agent.registered"
	AgentDeregisteredEvent EventType = "agent.deregistered"
	AgentIsolatedEvent     EventType = "agent.isolated"
	AgentReenabledEvent    EventType = "agent.reenabled"
	AgentsDiscoveredEvent  EventType = "agent.discovery.completed"

	// Task execution events.
	TaskCompletedEvent EventType = "task.completed"
	TaskFailedEvent    EventType = "task.failed"
	TaskRetryingEvent  EventType = "task.retrying"

	// Workflow run lifecycle events.
	RunStartedEvent        EventType = "run.started"
	RunStageCompletedEvent EventType = "run.stage.completed"
	RunCompletedEvent      EventType = "run.completed"
	RunFailedEvent         EventType = "run.failed"

	// Model lifecycle events.
	ModelPublishedEvent   EventType = "model.published"
	ModelArchivedEvent    EventType = "model.archived"
	ModelSoftDeletedEvent EventType = "model.soft_deleted"
	ModelUndeletedEvent   EventType = "model.undeleted"
	ModelRestoredEvent    EventType = "model.restored"

	// Recovery events.
	RecoveryRepairedEvent      EventType = "recovery.references.repaired"
	RecoveryWindowExpiredEvent EventType = "recovery.window.expired"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	EntityID  string         `json:"entity_id"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Agent lifecycle events

type AgentRegistered struct {
	BaseEvent

	AgentID      string   `json:"agent_id"`
	Name         string   `json:"name"`
	Kind         string   `json:"kind"`
	Capabilities []string `json:"capabilities,omitempty"`
}

func (a AgentRegistered) GetType() EventType {
	return AgentRegisteredEvent
}

type AgentDeregistered struct {
	BaseEvent

	AgentID string `json:"agent_id"`
	Reason  string `json:"reason,omitempty"`
}

func (a AgentDeregistered) GetType() EventType {
	return AgentDeregisteredEvent
}

// AgentIsolated is published when an agent is disabled after exhausting a
// task's retry policy.
type AgentIsolated struct {
	BaseEvent

	AgentID  string `json:"agent_id"`
	TaskID   string `json:"task_id"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

func (a AgentIsolated) GetType() EventType {
	return AgentIsolatedEvent
}

type AgentReenabled struct {
	BaseEvent

	AgentID   string `json:"agent_id"`
	EnabledBy string `json:"enabled_by"`
}

func (a AgentReenabled) GetType() EventType {
	return AgentReenabledEvent
}

type AgentsDiscovered struct {
	BaseEvent

	Capability string   `json:"capability"`
	DataType   string   `json:"data_type,omitempty"`
	AgentIDs   []string `json:"agent_ids"`
}

func (a AgentsDiscovered) GetType() EventType {
	return AgentsDiscoveredEvent
}

// Task execution events

type TaskCompleted struct {
	BaseEvent

	TaskID     string         `json:"task_id"`
	AgentID    string         `json:"agent_id"`
	Attempts   int            `json:"attempts"`
	Output     map[string]any `json:"output,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

func (t TaskCompleted) GetType() EventType {
	return TaskCompletedEvent
}

type TaskFailed struct {
	BaseEvent

	TaskID     string `json:"task_id"`
	AgentID    string `json:"agent_id"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error"`
	DurationMs int64  `json:"duration_ms"`
}

func (t TaskFailed) GetType() EventType {
	return TaskFailedEvent
}

// TaskRetrying is published after a failed attempt when the retry policy
// still allows another try. Attempt is the attempt that just failed.
type TaskRetrying struct {
	BaseEvent

	TaskID      string `json:"task_id"`
	AgentID     string `json:"agent_id"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	DelayMs     int64  `json:"delay_ms"`
	Error       string `json:"error"`
}

func (t TaskRetrying) GetType() EventType {
	return TaskRetryingEvent
}

// Workflow run lifecycle events

type RunStarted struct {
	BaseEvent

	RunID      string `json:"run_id"`
	ModelID    string `json:"model_id"`
	Mode       string `json:"mode"`
	StageCount int    `json:"stage_count"`
}

func (r RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunStageCompleted struct {
	BaseEvent

	RunID      string         `json:"run_id"`
	Stage      int            `json:"stage"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

func (r RunStageCompleted) GetType() EventType {
	return RunStageCompletedEvent
}

type RunCompleted struct {
	BaseEvent

	RunID          string         `json:"run_id"`
	StagesExecuted int            `json:"stages_executed"`
	Results        map[string]any `json:"results,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
}

func (r RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

// RunFailed names the stage that aborted the run; later stages never start.
type RunFailed struct {
	BaseEvent

	RunID          string         `json:"run_id"`
	FailedStage    int            `json:"failed_stage"`
	Error          string         `json:"error"`
	StagesExecuted int            `json:"stages_executed"`
	PartialResults map[string]any `json:"partial_results,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
}

func (r RunFailed) GetType() EventType {
	return RunFailedEvent
}

// Model lifecycle events

type ModelPublished struct {
	BaseEvent

	ModelID         string `json:"model_id"`
	Version         string `json:"version"`
	PreviousVersion string `json:"previous_version,omitempty"`
	PublishedBy     string `json:"published_by,omitempty"`
}

func (m ModelPublished) GetType() EventType {
	return ModelPublishedEvent
}

type ModelArchived struct {
	BaseEvent

	ModelID    string `json:"model_id"`
	Version    string `json:"version"`
	ArchivedBy string `json:"archived_by,omitempty"`
}

func (m ModelArchived) GetType() EventType {
	return ModelArchivedEvent
}

type ModelSoftDeleted struct {
	BaseEvent

	ModelID   string `json:"model_id"`
	DeletedBy string `json:"deleted_by,omitempty"`
}

func (m ModelSoftDeleted) GetType() EventType {
	return ModelSoftDeletedEvent
}

// ModelUndeleted reports the soft-delete markers were cleared. During a
// recovery it always precedes ModelRestored.
type ModelUndeleted struct {
	BaseEvent

	ModelID    string `json:"model_id"`
	RestoredBy string `json:"restored_by,omitempty"`
}

func (m ModelUndeleted) GetType() EventType {
	return ModelUndeletedEvent
}

// ModelRestored closes a recovery: the model is live again, optionally on a
// new restoration version with its references repaired.
type ModelRestored struct {
	BaseEvent

	ModelID            string   `json:"model_id"`
	Version            string   `json:"version"`
	RestoredBy         string   `json:"restored_by,omitempty"`
	RepairedReferences []string `json:"repaired_references,omitempty"`
	RestoredComponents []string `json:"restored_components,omitempty"`
}

func (m ModelRestored) GetType() EventType {
	return ModelRestoredEvent
}

// Recovery events

type RecoveryRepaired struct {
	BaseEvent

	ModelID  string   `json:"model_id"`
	Repaired []string `json:"repaired"`
}

func (r RecoveryRepaired) GetType() EventType {
	return RecoveryRepairedEvent
}

// RecoveryWindowExpired is emitted by the retention sweeper for soft-deleted
// models whose recovery window has closed.
type RecoveryWindowExpired struct {
	BaseEvent

	ModelID    string    `json:"model_id"`
	DeletedAt  time.Time `json:"deleted_at"`
	WindowDays int       `json:"window_days"`
}

func (r RecoveryWindowExpired) GetType() EventType {
	return RecoveryWindowExpiredEvent
}

func NewBaseEvent(eventType EventType, entityID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		EntityID:  entityID,
		Metadata:  make(map[string]any),
	}
}
