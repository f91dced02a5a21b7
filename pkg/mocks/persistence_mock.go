package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
)

// MockModelRepository is a mock implementation of persistence.ModelRepository.
type MockModelRepository struct {
	mock.Mock
}

func (m *MockModelRepository) Save(ctx context.Context, model *models.Model) error {
	args := m.Called(ctx, model)

	return args.Error(0)
}

func (m *MockModelRepository) GetByID(ctx context.Context, id string) (*models.Model, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Model), args.Error(1)
}

func (m *MockModelRepository) GetDeleted(ctx context.Context, id string) (*models.Model, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Model), args.Error(1)
}

func (m *MockModelRepository) List(ctx context.Context) ([]*models.Model, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Model), args.Error(1)
}

func (m *MockModelRepository) ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]*models.Model, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Model), args.Error(1)
}

func (m *MockModelRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockModelRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)

	return args.Bool(0), args.Error(1)
}

// MockAgentRepository is a mock implementation of persistence.AgentRepository.
type MockAgentRepository struct {
	mock.Mock
}

func (m *MockAgentRepository) Save(ctx context.Context, agent *models.Agent) error {
	args := m.Called(ctx, agent)

	return args.Error(0)
}

func (m *MockAgentRepository) SaveAll(ctx context.Context, agents []*models.Agent) error {
	args := m.Called(ctx, agents)

	return args.Error(0)
}

func (m *MockAgentRepository) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) List(ctx context.Context) ([]*models.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) ListEnabled(ctx context.Context) ([]*models.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) FindByCapability(ctx context.Context, capability string) ([]*models.Agent, error) {
	args := m.Called(ctx, capability)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) FindBySupportedDataType(ctx context.Context, dataType string) ([]*models.Agent, error) {
	args := m.Called(ctx, dataType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	args := m.Called(ctx, id, enabled)

	return args.Error(0)
}

func (m *MockAgentRepository) RecordExecution(ctx context.Context, id string, duration time.Duration, success bool) error {
	args := m.Called(ctx, id, duration, success)

	return args.Error(0)
}

func (m *MockAgentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockAgentRepository) DeleteAll(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockAgentRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)

	return args.Bool(0), args.Error(1)
}

// MockLinkRepository is a mock implementation of persistence.LinkRepository.
type MockLinkRepository struct {
	mock.Mock
}

func (m *MockLinkRepository) Save(ctx context.Context, link *models.NodeLink) error {
	args := m.Called(ctx, link)

	return args.Error(0)
}

func (m *MockLinkRepository) GetByID(ctx context.Context, id string) (*models.NodeLink, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.NodeLink), args.Error(1)
}

func (m *MockLinkRepository) List(ctx context.Context) ([]*models.NodeLink, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.NodeLink), args.Error(1)
}

func (m *MockLinkRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.NodeLink, error) {
	args := m.Called(ctx, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.NodeLink), args.Error(1)
}

func (m *MockLinkRepository) ListByType(ctx context.Context, linkType models.LinkType) ([]*models.NodeLink, error) {
	args := m.Called(ctx, linkType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.NodeLink), args.Error(1)
}

func (m *MockLinkRepository) ListStrong(ctx context.Context) ([]*models.NodeLink, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.NodeLink), args.Error(1)
}

func (m *MockLinkRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockAuditLogRepository is a mock implementation of persistence.AuditLogRepository.
type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Save(ctx context.Context, entry *models.AuditEntry) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}

func (m *MockAuditLogRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.AuditEntry, error) {
	args := m.Called(ctx, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AuditEntry), args.Error(1)
}

func (m *MockAuditLogRepository) ListByAction(ctx context.Context, action string) ([]*models.AuditEntry, error) {
	args := m.Called(ctx, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AuditEntry), args.Error(1)
}

// MockPersistence aggregates the repository mocks behind the
// persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Models   *MockModelRepository
	Agents   *MockAgentRepository
	Links    *MockLinkRepository
	AuditLog *MockAuditLogRepository
}

// NewMockPersistence returns a MockPersistence with every repository mock
// initialized.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Models:   &MockModelRepository{},
		Agents:   &MockAgentRepository{},
		Links:    &MockLinkRepository{},
		AuditLog: &MockAuditLogRepository{},
	}
}

func (m *MockPersistence) ModelRepository() persistence.ModelRepository {
	return m.Models
}

func (m *MockPersistence) AgentRepository() persistence.AgentRepository {
	return m.Agents
}

func (m *MockPersistence) LinkRepository() persistence.LinkRepository {
	return m.Links
}

func (m *MockPersistence) AuditLogRepository() persistence.AuditLogRepository {
	return m.AuditLog
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
