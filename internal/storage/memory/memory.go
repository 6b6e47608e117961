package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.ProjectStore. It is
// used in tests and by the embedded library mode.
type Repository struct {
	templates  map[string]model.StageTemplate
	tasks      map[string]model.Task
	taskStages map[string][]model.TaskStage
	executions map[string]model.StageExecution
	fixes      map[string]model.PRReviewFix
	settings   map[string]string
	mu         sync.RWMutex
	logger     log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		templates:  make(map[string]model.StageTemplate),
		tasks:      make(map[string]model.Task),
		taskStages: make(map[string][]model.TaskStage),
		executions: make(map[string]model.StageExecution),
		fixes:      make(map[string]model.PRReviewFix),
		settings:   make(map[string]string),
		logger:     cfg.Logger,
	}, nil
}

// CreateStageTemplate creates a new stage template in the repository.
func (r *Repository) CreateStageTemplate(ctx context.Context, t model.StageTemplate) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid stage template: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[t.ID]; ok {
		return fmt.Errorf("stage template with id %s: %w", t.ID, model.ErrAlreadyExists)
	}
	for _, existing := range r.templates {
		if existing.Name == t.Name {
			return fmt.Errorf("stage template with name %s: %w", t.Name, model.ErrAlreadyExists)
		}
	}

	r.templates[t.ID] = t
	r.logger.Debugf("Created stage template in repository: %s", t.ID)

	return nil
}

// GetStageTemplate retrieves a stage template by ID.
func (r *Repository) GetStageTemplate(ctx context.Context, id string) (*model.StageTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("stage template %s: %w", id, model.ErrNotFound)
	}

	tCopy := t
	return &tCopy, nil
}

// GetStageTemplateByName retrieves a stage template by name.
func (r *Repository) GetStageTemplateByName(ctx context.Context, name string) (*model.StageTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.templates {
		if t.Name == name {
			tCopy := t
			return &tCopy, nil
		}
	}

	return nil, fmt.Errorf("stage template with name %s: %w", name, model.ErrNotFound)
}

// ListStageTemplates returns all stage templates ordered by sort order.
func (r *Repository) ListStageTemplates(ctx context.Context) ([]model.StageTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	templates := make([]model.StageTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].SortOrder < templates[j].SortOrder })

	return templates, nil
}

// UpdateStageTemplate updates an existing stage template.
func (r *Repository) UpdateStageTemplate(ctx context.Context, t model.StageTemplate) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid stage template: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[t.ID]; !ok {
		return fmt.Errorf("stage template %s: %w", t.ID, model.ErrNotFound)
	}

	r.templates[t.ID] = t
	r.logger.Debugf("Updated stage template in repository: %s", t.ID)

	return nil
}

// CreateTask creates a new task in the repository.
func (r *Repository) CreateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return fmt.Errorf("task with id %s: %w", t.ID, model.ErrAlreadyExists)
	}

	r.tasks[t.ID] = t
	r.logger.Debugf("Created task in repository: %s", t.ID)

	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	tCopy := t
	return &tCopy, nil
}

// ListTasks returns all tasks ordered by creation, newest first.
func (r *Repository) ListTasks(ctx context.Context, includeArchived bool) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if t.Archived && !includeArchived {
			continue
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })

	return tasks, nil
}

// UpdateTask updates an existing task.
func (r *Repository) UpdateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; !ok {
		return fmt.Errorf("task %s: %w", t.ID, model.ErrNotFound)
	}

	r.tasks[t.ID] = t
	r.logger.Debugf("Updated task in repository: %s", t.ID)

	return nil
}

// SetTaskStages replaces the ordered stage list of a task.
func (r *Repository) SetTaskStages(ctx context.Context, taskID string, stageIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[taskID]; !ok {
		return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}

	stages := make([]model.TaskStage, 0, len(stageIDs))
	for i, stageID := range stageIDs {
		stages = append(stages, model.TaskStage{TaskID: taskID, StageID: stageID, Position: i})
	}
	r.taskStages[taskID] = stages

	return nil
}

// ListTaskStages returns the ordered stage list of a task.
func (r *Repository) ListTaskStages(ctx context.Context, taskID string) ([]model.TaskStage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stages := make([]model.TaskStage, len(r.taskStages[taskID]))
	copy(stages, r.taskStages[taskID])

	return stages, nil
}

// CreateExecution creates a new stage execution in the repository.
func (r *Repository) CreateExecution(ctx context.Context, e model.StageExecution) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid execution: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executions[e.ID]; ok {
		return fmt.Errorf("execution with id %s: %w", e.ID, model.ErrAlreadyExists)
	}
	for _, existing := range r.executions {
		if existing.TaskID == e.TaskID && existing.StageID == e.StageID && existing.Attempt == e.Attempt {
			return fmt.Errorf("execution attempt %d for task %s stage %s: %w", e.Attempt, e.TaskID, e.StageID, model.ErrAlreadyExists)
		}
	}

	r.executions[e.ID] = e
	r.logger.Debugf("Created execution in repository: %s", e.ID)

	return nil
}

// GetExecution retrieves a stage execution by ID.
func (r *Repository) GetExecution(ctx context.Context, id string) (*model.StageExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution %s: %w", id, model.ErrNotFound)
	}

	eCopy := e
	return &eCopy, nil
}

// UpdateExecution updates an existing stage execution.
func (r *Repository) UpdateExecution(ctx context.Context, e model.StageExecution) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid execution: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executions[e.ID]; !ok {
		return fmt.Errorf("execution %s: %w", e.ID, model.ErrNotFound)
	}

	r.executions[e.ID] = e
	r.logger.Debugf("Updated execution in repository: %s", e.ID)

	return nil
}

// ListExecutions returns all executions of a task ordered by creation.
func (r *Repository) ListExecutions(ctx context.Context, taskID string) ([]model.StageExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executions := make([]model.StageExecution, 0)
	for _, e := range r.executions {
		if e.TaskID == taskID {
			executions = append(executions, e)
		}
	}
	sort.Slice(executions, func(i, j int) bool {
		if executions[i].CreatedAt.Equal(executions[j].CreatedAt) {
			return executions[i].Attempt < executions[j].Attempt
		}
		return executions[i].CreatedAt.Before(executions[j].CreatedAt)
	})

	return executions, nil
}

// LatestExecution returns the highest-attempt execution of a (task, stage) pair.
func (r *Repository) LatestExecution(ctx context.Context, taskID, stageID string) (*model.StageExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.StageExecution
	for _, e := range r.executions {
		if e.TaskID != taskID || e.StageID != stageID {
			continue
		}
		if latest == nil || e.Attempt > latest.Attempt {
			eCopy := e
			latest = &eCopy
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("execution for task %s stage %s: %w", taskID, stageID, model.ErrNotFound)
	}

	return latest, nil
}

// CreatePRReviewFixes creates a batch of PR review fixes.
func (r *Repository) CreatePRReviewFixes(ctx context.Context, fixes []model.PRReviewFix) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range fixes {
		if _, ok := r.fixes[f.ID]; ok {
			return fmt.Errorf("pr review fix with id %s: %w", f.ID, model.ErrAlreadyExists)
		}
	}
	for _, f := range fixes {
		r.fixes[f.ID] = f
	}

	return nil
}

// ListPRReviewFixes returns all PR review fixes of a task.
func (r *Repository) ListPRReviewFixes(ctx context.Context, taskID string) ([]model.PRReviewFix, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fixes := make([]model.PRReviewFix, 0)
	for _, f := range r.fixes {
		if f.TaskID == taskID {
			fixes = append(fixes, f)
		}
	}
	sort.Slice(fixes, func(i, j int) bool { return fixes[i].ID < fixes[j].ID })

	return fixes, nil
}

// UpdatePRReviewFix updates an existing PR review fix.
func (r *Repository) UpdatePRReviewFix(ctx context.Context, f model.PRReviewFix) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.fixes[f.ID]; !ok {
		return fmt.Errorf("pr review fix %s: %w", f.ID, model.ErrNotFound)
	}

	r.fixes[f.ID] = f

	return nil
}

// GetSetting returns the value of a setting.
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.settings[key]
	if !ok {
		return "", fmt.Errorf("setting %s: %w", key, model.ErrNotFound)
	}

	return v, nil
}

// SetSetting sets a setting, overwriting any previous value.
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings[key] = value

	return nil
}
