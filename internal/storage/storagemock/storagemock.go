package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/stagegate/stagegate/internal/model"
)

// MockProjectStore is a mock implementation of storage.ProjectStore.
type MockProjectStore struct {
	mock.Mock
}

func (m *MockProjectStore) CreateStageTemplate(ctx context.Context, t model.StageTemplate) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockProjectStore) GetStageTemplate(ctx context.Context, id string) (*model.StageTemplate, error) {
	args := m.Called(ctx, id)
	if t := args.Get(0); t != nil {
		return t.(*model.StageTemplate), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectStore) GetStageTemplateByName(ctx context.Context, name string) (*model.StageTemplate, error) {
	args := m.Called(ctx, name)
	if t := args.Get(0); t != nil {
		return t.(*model.StageTemplate), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectStore) ListStageTemplates(ctx context.Context) ([]model.StageTemplate, error) {
	args := m.Called(ctx)
	if ts := args.Get(0); ts != nil {
		return ts.([]model.StageTemplate), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectStore) UpdateStageTemplate(ctx context.Context, t model.StageTemplate) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockProjectStore) CreateTask(ctx context.Context, t model.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockProjectStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	args := m.Called(ctx, id)
	if t := args.Get(0); t != nil {
		return t.(*model.Task), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectStore) ListTasks(ctx context.Context, includeArchived bool) ([]model.Task, error) {
	args := m.Called(ctx, includeArchived)
	if ts := args.Get(0); ts != nil {
		return ts.([]model.Task), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectStore) UpdateTask(ctx context.Context, t model.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockProjectStore) SetTaskStages(ctx context.Context, taskID string, stageIDs []string) error {
	args := m.Called(ctx, taskID, stageIDs)
	return args.Error(0)
}

func (m *MockProjectStore) ListTaskStages(ctx context.Context, taskID string) ([]model.TaskStage, error) {
	args := m.Called(ctx, taskID)
	if ts := args.Get(0); ts != nil {
		return ts.([]model.TaskStage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectStore) CreateExecution(ctx context.Context, e model.StageExecution) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockProjectStore) GetExecution(ctx context.Context, id string) (*model.StageExecution, error) {
	args := m.Called(ctx, id)
	if e := args.Get(0); e != nil {
		return e.(*model.StageExecution), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectStore) UpdateExecution(ctx context.Context, e model.StageExecution) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockProjectStore) ListExecutions(ctx context.Context, taskID string) ([]model.StageExecution, error) {
	args := m.Called(ctx, taskID)
	if es := args.Get(0); es != nil {
		return es.([]model.StageExecution), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectStore) LatestExecution(ctx context.Context, taskID, stageID string) (*model.StageExecution, error) {
	args := m.Called(ctx, taskID, stageID)
	if e := args.Get(0); e != nil {
		return e.(*model.StageExecution), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectStore) CreatePRReviewFixes(ctx context.Context, fixes []model.PRReviewFix) error {
	args := m.Called(ctx, fixes)
	return args.Error(0)
}

func (m *MockProjectStore) ListPRReviewFixes(ctx context.Context, taskID string) ([]model.PRReviewFix, error) {
	args := m.Called(ctx, taskID)
	if fs := args.Get(0); fs != nil {
		return fs.([]model.PRReviewFix), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectStore) UpdatePRReviewFix(ctx context.Context, f model.PRReviewFix) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockProjectStore) GetSetting(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockProjectStore) SetSetting(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

// MockProjectRepository is a mock implementation of storage.ProjectRepository.
type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) CreateProject(ctx context.Context, p model.Project) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProjectRepository) GetProject(ctx context.Context, id string) (*model.Project, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*model.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectRepository) GetProjectByName(ctx context.Context, name string) (*model.Project, error) {
	args := m.Called(ctx, name)
	if p := args.Get(0); p != nil {
		return p.(*model.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectRepository) ListProjects(ctx context.Context, includeArchived bool) ([]model.Project, error) {
	args := m.Called(ctx, includeArchived)
	if ps := args.Get(0); ps != nil {
		return ps.([]model.Project), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProjectRepository) UpdateProject(ctx context.Context, p model.Project) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
