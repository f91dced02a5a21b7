package orchestrator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/mocks"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/orchestrator"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/persistence/file"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/registry"
	"github.com/loomhq/loom/pkg/search"
	"github.com/loomhq/loom/pkg/taskqueue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// quickRetries keeps retry-path tests fast without changing attempt counts.
func quickRetries(maxRetries int) models.RetryPolicy {
	return models.RetryPolicy{
		MaxRetries:   maxRetries,
		Strategy:     models.BackoffConstant,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   1,
	}
}

type stubExecutor struct {
	kind string
	run  func(ctx context.Context, agent *models.Agent, task *models.Task) (map[string]any, error)
}

func (e *stubExecutor) Execute(ctx context.Context, agent *models.Agent, task *models.Task) (map[string]any, error) {
	return e.run(ctx, agent, task)
}

func (e *stubExecutor) Kind() string {
	return e.kind
}

type stubFactory struct {
	kind string
	run  func(ctx context.Context, agent *models.Agent, task *models.Task) (map[string]any, error)
}

func (f *stubFactory) Create(_ map[string]any, _ *slog.Logger) (protocol.AgentExecutor, error) {
	return &stubExecutor{kind: f.kind, run: f.run}, nil
}

func (f *stubFactory) Kind() string {
	return f.kind
}

type coordinatorEnv struct {
	coordinator *orchestrator.Coordinator
	bus         *mocks.MockEventBus
	store       persistence.Persistence
	queue       protocol.TaskQueue
}

// newCoordinatorEnv wires a coordinator over file persistence, a recording
// event bus and a single stub executor registered under kind "stub".
func newCoordinatorEnv(t *testing.T, opts orchestrator.Options, run func(ctx context.Context, agent *models.Agent, task *models.Task) (map[string]any, error)) *coordinatorEnv {
	t.Helper()

	logger := testLogger()
	store := file.NewPersistence(t.TempDir())

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	reg := registry.NewRegistry(logger)
	if run != nil {
		reg.RegisterExecutor(&stubFactory{kind: "stub", run: run})
	}

	queue := taskqueue.NewMemoryQueue()
	provider := search.NewLexicalProvider(logger, store)

	coordinator := orchestrator.NewCoordinator(store, bus, reg, provider, queue, opts, logger)

	return &coordinatorEnv{coordinator: coordinator, bus: bus, store: store, queue: queue}
}

func seedAgent(t *testing.T, store persistence.Persistence, id string, enabled bool) *models.Agent {
	t.Helper()

	now := time.Now().UTC()
	agent := &models.Agent{
		ID:      id,
		Name:    "Agent " + id,
		Kind:    "stub",
		Enabled: enabled,
		Capabilities: models.AgentCapabilities{
			CanExecute:         true,
			SupportedDataTypes: []string{"json"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, store.AgentRepository().Save(t.Context(), agent))

	return agent
}

func TestRegisterAgent_Lifecycle(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{}, nil)
	ctx := t.Context()

	agent := &models.Agent{
		ID:   "agent-etl-1",
		Name: "Invoice ETL",
		Kind: "stub",
		Capabilities: models.AgentCapabilities{
			CanRead:    true,
			CanExecute: true,
		},
	}

	require.NoError(t, env.coordinator.RegisterAgent(ctx, agent))

	saved, err := env.store.AgentRepository().GetByID(ctx, "agent-etl-1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.True(t, saved.Enabled)
	assert.False(t, saved.CreatedAt.IsZero())

	entries, err := env.store.AuditLogRepository().ListByAction(ctx, models.AuditAgentRegistered)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "agent-etl-1", entries[0].EntityID)

	published := env.bus.PublishedEvents(events.AgentRegisteredEvent)
	require.Len(t, published, 1)

	registered, ok := published[0].(events.AgentRegistered)
	require.True(t, ok)
	assert.Equal(t, "agent-etl-1", registered.AgentID)
	assert.Equal(t, []string{"read", "execute"}, registered.Capabilities)
}

func TestRegisterAgent_ValidationFailureSavesNothing(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{}, nil)
	ctx := t.Context()

	agent := &models.Agent{ID: "agent-bad", Name: ""}

	err := env.coordinator.RegisterAgent(ctx, agent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registration step validate failed")

	saved, err := env.store.AgentRepository().GetByID(ctx, "agent-bad")
	require.NoError(t, err)
	assert.Nil(t, saved)

	env.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterAgent_AnnounceFailureCompensates(t *testing.T) {
	logger := testLogger()
	store := file.NewPersistence(t.TempDir())

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	coordinator := orchestrator.NewCoordinator(
		store, bus, registry.NewRegistry(logger), search.NewLexicalProvider(logger, store),
		taskqueue.NewMemoryQueue(), orchestrator.Options{}, logger,
	)

	ctx := t.Context()
	agent := &models.Agent{ID: "agent-etl-2", Name: "Report Builder", Kind: "stub"}

	err := coordinator.RegisterAgent(ctx, agent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registration step announce failed")

	// The save step was rolled back.
	saved, err := store.AgentRepository().GetByID(ctx, "agent-etl-2")
	require.NoError(t, err)
	assert.Nil(t, saved)

	compensations, err := store.AuditLogRepository().ListByAction(ctx, "agent.registration.compensated")
	require.NoError(t, err)
	require.Len(t, compensations, 1)
	assert.Equal(t, "agent-etl-2", compensations[0].EntityID)
}

func TestDeregisterAgent(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{}, nil)
	ctx := t.Context()

	seedAgent(t, env.store, "agent-old", true)

	require.NoError(t, env.coordinator.DeregisterAgent(ctx, "agent-old", "decommissioned"))

	saved, err := env.store.AgentRepository().GetByID(ctx, "agent-old")
	require.NoError(t, err)
	assert.Nil(t, saved)

	published := env.bus.PublishedEvents(events.AgentDeregisteredEvent)
	require.Len(t, published, 1)

	deregistered, ok := published[0].(events.AgentDeregistered)
	require.True(t, ok)
	assert.Equal(t, "decommissioned", deregistered.Reason)
}

func TestDeregisterAgent_Unknown(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{}, nil)

	err := env.coordinator.DeregisterAgent(t.Context(), "agent-ghost", "cleanup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReenableAgent(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{}, nil)
	ctx := t.Context()

	seedAgent(t, env.store, "agent-frozen", false)

	require.NoError(t, env.coordinator.ReenableAgent(ctx, "agent-frozen", "operator"))

	saved, err := env.store.AgentRepository().GetByID(ctx, "agent-frozen")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.True(t, saved.Enabled)

	published := env.bus.PublishedEvents(events.AgentReenabledEvent)
	require.Len(t, published, 1)

	reenabled, ok := published[0].(events.AgentReenabled)
	require.True(t, ok)
	assert.Equal(t, "operator", reenabled.EnabledBy)
}
