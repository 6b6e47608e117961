package taskcreate

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/model"
	"github.com/stagegate/stagegate/internal/storage"
)

// ServiceConfig is the configuration for the task create service.
type ServiceConfig struct {
	Repository storage.ProjectStore
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TaskCreate"})
	return nil
}

// Service handles task creation business logic.
type Service struct {
	repo   storage.ProjectStore
	logger log.Logger
}

// NewService creates a new task create service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// CreateOptions are the options for creating a task.
type CreateOptions struct {
	Title       string
	Description string
}

// Create creates a pending task whose concrete stage list is every mandatory
// template of the project, in pipeline order.
func (s *Service) Create(ctx context.Context, opts CreateOptions) (*model.Task, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("title is required: %w", model.ErrNotValid)
	}

	now := time.Now().UTC()
	task := model.Task{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Title:       opts.Title,
		Description: opts.Description,
		Status:      model.TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("could not save task: %w", err)
	}

	templates, err := s.repo.ListStageTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list stage templates: %w", err)
	}
	var stageIDs []string
	for _, t := range templates {
		if !t.Optional {
			stageIDs = append(stageIDs, t.ID)
		}
	}
	if err := s.repo.SetTaskStages(ctx, task.ID, stageIDs); err != nil {
		return nil, fmt.Errorf("could not set task stages: %w", err)
	}

	s.logger.Infof("Created task: %s (%s)", task.Title, task.ID)

	return &task, nil
}
