// Package orchestrator coordinates agent discovery, task execution, workflow
// runs and capacity decisions over the shared persistence and event bus.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomhq/loom/pkg/eventbus"
	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/registry"
)

const defaultMaxConcurrentTasks = 32

// Options tunes a Coordinator. Zero values fall back to defaults.
type Options struct {
	RetryPolicy        models.RetryPolicy
	MaxConcurrentTasks int
	Tracer             trace.Tracer
}

// Coordinator is the orchestration entry point. All public methods take a
// context scoped to the caller's request; cancelling one in-flight call
// never affects the others.
type Coordinator struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	registry    *registry.Registry
	search      protocol.SemanticSearchProvider
	taskQueue   protocol.TaskQueue
	validator   *validator.Validate
	tracer      trace.Tracer
	logger      *slog.Logger

	retryPolicy models.RetryPolicy
	maxTasks    int

	gate *resourceGate
	load *loadCounter
}

func NewCoordinator(
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	registry *registry.Registry,
	search protocol.SemanticSearchProvider,
	taskQueue protocol.TaskQueue,
	opts Options,
	logger *slog.Logger,
) *Coordinator {
	retryPolicy := opts.RetryPolicy
	if retryPolicy.MaxRetries == 0 && retryPolicy.InitialDelay == 0 {
		retryPolicy = models.DefaultRetryPolicy()
	}

	maxTasks := opts.MaxConcurrentTasks
	if maxTasks <= 0 {
		maxTasks = defaultMaxConcurrentTasks
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("loom-coordinator")
	}

	return &Coordinator{
		persistence: persistence,
		eventBus:    eventBus,
		registry:    registry,
		search:      search,
		taskQueue:   taskQueue,
		validator:   validator.New(),
		tracer:      tracer,
		logger:      logger.With("module", "coordinator"),
		retryPolicy: retryPolicy,
		maxTasks:    maxTasks,
		gate:        newResourceGate(),
		load:        &loadCounter{},
	}
}

// sagaStep is one stage of a multi-step lifecycle operation. When a later
// step fails, the compensations of completed steps run in reverse order.
type sagaStep struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context)
}

// RegisterAgent runs the registration lifecycle: validate, save, audit,
// announce. A failure in any step rolls the completed steps back and
// returns the original failure.
func (c *Coordinator) RegisterAgent(ctx context.Context, agent *models.Agent) error {
	if agent == nil {
		return fmt.Errorf("no agent provided for registration")
	}

	logger := c.logger.With("agent_id", agent.ID, "agent_name", agent.Name)

	steps := []sagaStep{
		{
			name: "validate",
			run: func(_ context.Context) error {
				return c.validator.Struct(agent)
			},
		},
		{
			name: "save",
			run: func(ctx context.Context) error {
				now := time.Now().UTC()
				if agent.CreatedAt.IsZero() {
					agent.CreatedAt = now
				}

				agent.UpdatedAt = now
				agent.Enabled = true

				return c.persistence.AgentRepository().Save(ctx, agent)
			},
			compensate: func(ctx context.Context) {
				err := c.persistence.AgentRepository().Delete(ctx, agent.ID)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to compensate agent save", "error", err)
				}
			},
		},
		{
			name: "audit",
			run: func(ctx context.Context) error {
				return c.writeAudit(ctx, models.AuditAgentRegistered, agent.ID, "coordinator", map[string]any{
					"name": agent.Name,
					"kind": agent.Kind,
				})
			},
			compensate: func(ctx context.Context) {
				c.audit(ctx, "agent.registration.compensated", agent.ID, "coordinator", map[string]any{
					"name": agent.Name,
				})
			},
		},
		{
			name: "announce",
			run: func(ctx context.Context) error {
				registered := events.AgentRegistered{
					BaseEvent:    events.NewBaseEvent(events.AgentRegisteredEvent, agent.ID),
					AgentID:      agent.ID,
					Name:         agent.Name,
					Kind:         agent.Kind,
					Capabilities: capabilityFlags(agent.Capabilities),
				}

				return c.eventBus.Publish(ctx, agent.ID, registered)
			},
		},
	}

	completed := 0

	for _, step := range steps {
		err := step.run(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Registration step failed, compensating", "step", step.name, "error", err)

			for i := completed - 1; i >= 0; i-- {
				if steps[i].compensate != nil {
					steps[i].compensate(ctx)
				}
			}

			return fmt.Errorf("registration step %s failed: %w", step.name, err)
		}

		completed++
	}

	logger.InfoContext(ctx, "Agent registered")

	return nil
}

// DeregisterAgent removes an agent and announces the departure.
func (c *Coordinator) DeregisterAgent(ctx context.Context, agentID, reason string) error {
	agent, err := c.persistence.AgentRepository().GetByID(ctx, agentID)
	if err != nil {
		return fmt.Errorf("failed to fetch agent %s: %w", agentID, err)
	}

	if agent == nil {
		return fmt.Errorf("agent %s not found", agentID)
	}

	err = c.persistence.AgentRepository().Delete(ctx, agentID)
	if err != nil {
		return fmt.Errorf("failed to delete agent %s: %w", agentID, err)
	}

	c.audit(ctx, models.AuditAgentDeregistered, agentID, "coordinator", map[string]any{"reason": reason})

	deregistered := events.AgentDeregistered{
		BaseEvent: events.NewBaseEvent(events.AgentDeregisteredEvent, agentID),
		AgentID:   agentID,
		Reason:    reason,
	}

	c.publish(ctx, agentID, deregistered)

	return nil
}

// ReenableAgent lifts the isolation of a disabled agent.
func (c *Coordinator) ReenableAgent(ctx context.Context, agentID, actor string) error {
	agent, err := c.persistence.AgentRepository().GetByID(ctx, agentID)
	if err != nil {
		return fmt.Errorf("failed to fetch agent %s: %w", agentID, err)
	}

	if agent == nil {
		return fmt.Errorf("agent %s not found", agentID)
	}

	err = c.persistence.AgentRepository().SetEnabled(ctx, agentID, true)
	if err != nil {
		return fmt.Errorf("failed to enable agent %s: %w", agentID, err)
	}

	c.audit(ctx, models.AuditAgentReenabled, agentID, actor, nil)

	reenabled := events.AgentReenabled{
		BaseEvent: events.NewBaseEvent(events.AgentReenabledEvent, agentID),
		AgentID:   agentID,
		EnabledBy: actor,
	}

	c.publish(ctx, agentID, reenabled)

	return nil
}

// writeAudit appends an audit entry, returning the repository error.
func (c *Coordinator) writeAudit(ctx context.Context, action, entityID, actor string, details map[string]any) error {
	entry := &models.AuditEntry{
		ID:        uuid.New().String(),
		Action:    action,
		EntityID:  entityID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}

	return c.persistence.AuditLogRepository().Save(ctx, entry)
}

// audit appends an audit entry, logging instead of failing the caller.
func (c *Coordinator) audit(ctx context.Context, action, entityID, actor string, details map[string]any) {
	err := c.writeAudit(ctx, action, entityID, actor, details)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to write audit entry", "action", action, "entity_id", entityID, "error", err)
	}
}

// publish sends an event, logging instead of failing the caller. Lifecycle
// outcomes hold even when the bus is briefly unavailable.
func (c *Coordinator) publish(ctx context.Context, key string, event eventbus.Event) {
	err := c.eventBus.Publish(ctx, key, event)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
	}
}

func capabilityFlags(capabilities models.AgentCapabilities) []string {
	flags := make([]string, 0, 5)

	for _, flag := range []string{
		models.CapabilityRead,
		models.CapabilityWrite,
		models.CapabilityExecute,
		models.CapabilityAnalyze,
		models.CapabilityOrchestrate,
	} {
		if capabilities.Has(flag) {
			flags = append(flags, flag)
		}
	}

	return flags
}
