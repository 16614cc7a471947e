package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	Workflows   *MockWorkflowRepository
	Executions  *MockExecutionRepository
	Credentials *MockCredentialRepository
	Steps       *MockStepRepository
}

// NewMockPersistence wires fresh repository mocks into a MockPersistence.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Workflows:   &MockWorkflowRepository{},
		Executions:  &MockExecutionRepository{},
		Credentials: &MockCredentialRepository{},
		Steps:       &MockStepRepository{},
	}
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.Workflows
}

func (m *MockPersistence) ExecutionRepository() persistence.ExecutionRepository {
	return m.Executions
}

func (m *MockPersistence) CredentialRepository() persistence.CredentialRepository {
	return m.Credentials
}

func (m *MockPersistence) StepRepository() persistence.StepRepository {
	return m.Steps
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) ListByOwner(ctx context.Context, userID string) ([]*models.Workflow, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository interface.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) Create(ctx context.Context, execution *models.Execution) (*models.Execution, bool, error) {
	args := m.Called(ctx, execution)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}

	return args.Get(0).(*models.Execution), args.Bool(1), args.Error(2)
}

func (m *MockExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) Complete(ctx context.Context, workflowID, eventID string, output map[string]any, completedAt time.Time) error {
	args := m.Called(ctx, workflowID, eventID, output, completedAt)

	return args.Error(0)
}

func (m *MockExecutionRepository) Fail(ctx context.Context, eventID, message, stack string, completedAt time.Time) error {
	args := m.Called(ctx, eventID, message, stack, completedAt)

	return args.Error(0)
}

// MockCredentialRepository is a mock implementation of persistence.CredentialRepository interface.
// It also satisfies protocol.CredentialReader.
type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) ListByOwner(ctx context.Context, userID string, credentialType models.CredentialType) ([]*models.Credential, error) {
	args := m.Called(ctx, userID, credentialType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Credential), args.Error(1)
}

func (m *MockCredentialRepository) GetByIDAndOwner(ctx context.Context, id, userID string) (*models.Credential, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Credential), args.Error(1)
}

func (m *MockCredentialRepository) Save(ctx context.Context, credential *models.Credential) error {
	args := m.Called(ctx, credential)

	return args.Error(0)
}

func (m *MockCredentialRepository) Delete(ctx context.Context, id, userID string) error {
	args := m.Called(ctx, id, userID)

	return args.Error(0)
}

// MockStepRepository is a mock implementation of persistence.StepRepository interface.
type MockStepRepository struct {
	mock.Mock
}

func (m *MockStepRepository) Load(ctx context.Context, runID, name string) (json.RawMessage, bool, error) {
	args := m.Called(ctx, runID, name)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}

	return args.Get(0).(json.RawMessage), args.Bool(1), args.Error(2)
}

func (m *MockStepRepository) Save(ctx context.Context, runID, name string, result json.RawMessage) error {
	args := m.Called(ctx, runID, name, result)

	return args.Error(0)
}
