package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// MockSemanticSearchProvider is a mock implementation of
// protocol.SemanticSearchProvider.
type MockSemanticSearchProvider struct {
	mock.Mock
}

func (m *MockSemanticSearchProvider) Search(ctx context.Context, query protocol.SearchQuery) ([]protocol.SearchResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]protocol.SearchResult), args.Error(1)
}

// MockDependencyService is a mock implementation of protocol.DependencyService.
type MockDependencyService struct {
	mock.Mock
}

func (m *MockDependencyService) ValidateDependencyIntegrity(ctx context.Context, modelID string) (*models.IntegrityReport, error) {
	args := m.Called(ctx, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.IntegrityReport), args.Error(1)
}

func (m *MockDependencyService) RepairBrokenReferences(ctx context.Context, modelID string, plan *models.RepairPlan) ([]string, error) {
	args := m.Called(ctx, modelID, plan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]string), args.Error(1)
}

// MockVersionService is a mock implementation of protocol.VersionService.
type MockVersionService struct {
	mock.Mock
}

func (m *MockVersionService) ValidateVersionCompatibility(ctx context.Context, model *models.Model) (*models.CompatibilityReport, error) {
	args := m.Called(ctx, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.CompatibilityReport), args.Error(1)
}

func (m *MockVersionService) ResolveVersionDependencies(ctx context.Context, modelID string, conflicts []models.VersionConflict) error {
	args := m.Called(ctx, modelID, conflicts)

	return args.Error(0)
}
