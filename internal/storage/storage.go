package storage

import (
	"context"

	"github.com/stagegate/stagegate/internal/model"
)

// ProjectRepository is the interface for project persistence. Projects live
// in the app-wide store; each project's pipeline data lives in its own store.
type ProjectRepository interface {
	CreateProject(ctx context.Context, p model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetProjectByName(ctx context.Context, name string) (*model.Project, error)
	ListProjects(ctx context.Context, includeArchived bool) ([]model.Project, error)
	UpdateProject(ctx context.Context, p model.Project) error
}

// SettingsRepository is the interface for key/value settings persistence.
type SettingsRepository interface {
	// GetSetting returns the value for a key, model.ErrNotFound if unset.
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// TemplateRepository is the interface for stage template persistence.
// Templates are never deleted by normal operation.
type TemplateRepository interface {
	CreateStageTemplate(ctx context.Context, t model.StageTemplate) error
	GetStageTemplate(ctx context.Context, id string) (*model.StageTemplate, error)
	GetStageTemplateByName(ctx context.Context, name string) (*model.StageTemplate, error)
	// ListStageTemplates returns every template ordered by ascending sort order.
	ListStageTemplates(ctx context.Context) ([]model.StageTemplate, error)
	UpdateStageTemplate(ctx context.Context, t model.StageTemplate) error
}

// TaskRepository is the interface for task persistence. Tasks are archived,
// never hard-deleted, to preserve execution history.
type TaskRepository interface {
	CreateTask(ctx context.Context, t model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, includeArchived bool) ([]model.Task, error)
	UpdateTask(ctx context.Context, t model.Task) error

	// SetTaskStages replaces the task's concrete ordered stage list.
	SetTaskStages(ctx context.Context, taskID string, stageIDs []string) error
	ListTaskStages(ctx context.Context, taskID string) ([]model.TaskStage, error)
}

// ExecutionRepository is the interface for stage execution persistence.
// Executions are append-and-update only: the audit trail is never deleted.
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, e model.StageExecution) error
	GetExecution(ctx context.Context, id string) (*model.StageExecution, error)
	UpdateExecution(ctx context.Context, e model.StageExecution) error
	ListExecutions(ctx context.Context, taskID string) ([]model.StageExecution, error)
	// LatestExecution returns the highest-attempt execution for the pair,
	// model.ErrNotFound when no attempt exists yet.
	LatestExecution(ctx context.Context, taskID, stageID string) (*model.StageExecution, error)
}

// PRReviewFixRepository is the interface for per-comment PR review fix tracking.
type PRReviewFixRepository interface {
	CreatePRReviewFixes(ctx context.Context, fixes []model.PRReviewFix) error
	ListPRReviewFixes(ctx context.Context, taskID string) ([]model.PRReviewFix, error)
	UpdatePRReviewFix(ctx context.Context, f model.PRReviewFix) error
}

// ProjectStore groups the repositories backed by one project's store.
type ProjectStore interface {
	TemplateRepository
	TaskRepository
	ExecutionRepository
	PRReviewFixRepository
	SettingsRepository
}
