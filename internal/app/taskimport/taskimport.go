package taskimport

import (
	"context"
	"fmt"

	"github.com/stagegate/stagegate/internal/app/taskcreate"
	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/model"
	"github.com/stagegate/stagegate/internal/tracker"
)

// ServiceConfig is the configuration for the task import service.
type ServiceConfig struct {
	// Tracker should already carry the retry policy (tracker.Retry).
	Tracker tracker.Client
	Creator *taskcreate.Service
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Tracker == nil {
		return fmt.Errorf("tracker is required")
	}
	if c.Creator == nil {
		return fmt.Errorf("creator is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.TaskImport"})
	return nil
}

// Service imports issue-tracker issues as tasks.
type Service struct {
	tracker tracker.Client
	creator *taskcreate.Service
	logger  log.Logger
}

// NewService creates a new task import service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		tracker: cfg.Tracker,
		creator: cfg.Creator,
		logger:  cfg.Logger,
	}, nil
}

// AssignedIssues lists the issues available for import.
func (s *Service) AssignedIssues(ctx context.Context) ([]tracker.Issue, error) {
	issues, err := s.tracker.AssignedIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list assigned issues: %w", err)
	}
	return issues, nil
}

// Import creates a task from one tracker issue.
func (s *Service) Import(ctx context.Context, key string) (*model.Task, error) {
	issue, err := s.tracker.Issue(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("could not get issue %s: %w", key, err)
	}

	description := issue.Description
	if issue.URL != "" {
		description += "\n\nImported from " + issue.URL
	}
	task, err := s.creator.Create(ctx, taskcreate.CreateOptions{
		Title:       issue.Title,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create task: %w", err)
	}

	s.logger.Infof("Imported issue %s as task %s", key, task.ID)

	return task, nil
}
