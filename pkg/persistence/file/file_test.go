package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
)

func TestPersistence_HealthCheck(t *testing.T) {
	root := t.TempDir()

	assert.NoError(t, NewPersistence("file://"+root).HealthCheck(context.Background()))
	assert.Error(t, NewPersistence(root+"/missing").HealthCheck(context.Background()))
}

func TestWorkflowRepository_SaveGetDelete(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())
	ctx := t.Context()

	workflow := &models.Workflow{
		Name:   "Order sync",
		UserID: "user-1",
		Nodes: []*models.Node{
			{ID: "n1", Type: models.NodeTypeManualTrigger, Data: map[string]any{}},
			{ID: "n2", Type: models.NodeTypeHTTPRequest, Data: map[string]any{"endpoint": "https://example.com"}},
		},
		Connections: []*models.Connection{{ID: "c1", Source: "n1", Target: "n2"}},
	}

	require.NoError(t, repo.Save(ctx, workflow))
	assert.NotEmpty(t, workflow.ID)
	assert.False(t, workflow.CreatedAt.IsZero())

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Order sync", loaded.Name)
	assert.Len(t, loaded.Nodes, 2)
	assert.Equal(t, "https://example.com", loaded.Nodes[1].Data["endpoint"])
	assert.Equal(t, "n2", loaded.Connections[0].Target)

	require.NoError(t, repo.Delete(ctx, workflow.ID))

	_, err = repo.GetByID(ctx, workflow.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
	assert.True(t, persistence.IsWorkflowNotFound(repo.Delete(ctx, workflow.ID)))
}

func TestWorkflowRepository_ListByOwner(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())
	ctx := t.Context()

	empty, err := repo.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.Save(ctx, &models.Workflow{Name: "first", UserID: "user-1"}))
	require.NoError(t, repo.Save(ctx, &models.Workflow{Name: "other", UserID: "user-2"}))
	time.Sleep(time.Millisecond)
	require.NoError(t, repo.Save(ctx, &models.Workflow{Name: "second", UserID: "user-1"}))

	workflows, err := repo.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, "second", workflows[0].Name)
}

func TestWorkflowRepository_RejectsPathTraversal(t *testing.T) {
	repo := NewWorkflowRepository(t.TempDir())

	_, err := repo.GetByID(t.Context(), "../etc/passwd")
	require.ErrorIs(t, err, persistence.ErrInvalidID)
}

func TestExecutionRepository_CreateIsIdempotent(t *testing.T) {
	repo := NewExecutionRepository(t.TempDir())
	ctx := t.Context()

	first, created, err := repo.Create(ctx, &models.Execution{WorkflowID: "wf-1", EventID: "event-1"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.ExecutionStatusRunning, first.Status)

	second, created, err := repo.Create(ctx, &models.Execution{WorkflowID: "wf-1", EventID: "event-1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	executions, err := repo.ListByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestExecutionRepository_Complete(t *testing.T) {
	repo := NewExecutionRepository(t.TempDir())
	ctx := t.Context()

	execution, _, err := repo.Create(ctx, &models.Execution{WorkflowID: "wf-1", EventID: "event-1"})
	require.NoError(t, err)

	completedAt := time.Now().UTC()
	require.NoError(t, repo.Complete(ctx, "wf-1", "event-1", map[string]any{"call": "ok"}, completedAt))

	loaded, err := repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, loaded.Status)
	assert.Equal(t, map[string]any{"call": "ok"}, loaded.Output)
	require.NotNil(t, loaded.CompletedAt)

	err = repo.Complete(ctx, "wf-1", "event-missing", nil, completedAt)
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionRepository_Fail(t *testing.T) {
	repo := NewExecutionRepository(t.TempDir())
	ctx := t.Context()

	execution, _, err := repo.Create(ctx, &models.Execution{WorkflowID: "wf-1", EventID: "event-1"})
	require.NoError(t, err)

	require.NoError(t, repo.Fail(ctx, "event-1", "boom", "boom\nstack", time.Now().UTC()))

	loaded, err := repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, loaded.Status)
	assert.Equal(t, "boom", loaded.Error)
	assert.Equal(t, "boom\nstack", loaded.ErrorStack)

	err = repo.Fail(ctx, "event-1", "again", "", time.Now().UTC())
	assert.True(t, persistence.IsExecutionNotFound(err), "terminal records are not failed twice")

	err = repo.Fail(ctx, "event-unknown", "boom", "", time.Now().UTC())
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestCredentialRepository_OwnerScoping(t *testing.T) {
	repo := NewCredentialRepository(t.TempDir())
	ctx := t.Context()

	credential := &models.Credential{Name: "OpenAI", Type: models.CredentialTypeOpenAI, Value: "sk-1", UserID: "user-1"}
	require.NoError(t, repo.Save(ctx, credential))
	require.NoError(t, repo.Save(ctx, &models.Credential{Name: "Gemini", Type: models.CredentialTypeGemini, Value: "g-1", UserID: "user-1"}))

	loaded, err := repo.GetByIDAndOwner(ctx, credential.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "sk-1", loaded.Value)

	_, err = repo.GetByIDAndOwner(ctx, credential.ID, "user-2")
	assert.True(t, persistence.IsCredentialNotFound(err))

	all, err := repo.ListByOwner(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	openai, err := repo.ListByOwner(ctx, "user-1", models.CredentialTypeOpenAI)
	require.NoError(t, err)
	require.Len(t, openai, 1)
	assert.Equal(t, "OpenAI", openai[0].Name)

	assert.True(t, persistence.IsCredentialNotFound(repo.Delete(ctx, credential.ID, "user-2")))
	require.NoError(t, repo.Delete(ctx, credential.ID, "user-1"))

	_, err = repo.GetByIDAndOwner(ctx, credential.ID, "user-1")
	assert.True(t, persistence.IsCredentialNotFound(err))
}

func TestStepRepository(t *testing.T) {
	repo := NewStepRepository(t.TempDir())
	ctx := t.Context()

	_, ok, err := repo.Load(ctx, "event-1", "create-execution")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Save(ctx, "event-1", "create-execution", []byte(`{"id":"a"}`)))
	require.NoError(t, repo.Save(ctx, "event-1", "create-execution", []byte(`{"id":"b"}`)))
	require.NoError(t, repo.Save(ctx, "event-1", "prepare-workflow", []byte(`[]`)))

	result, ok, err := repo.Load(ctx, "event-1", "create-execution")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":"a"}`, string(result))
}
