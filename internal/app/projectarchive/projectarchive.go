package projectarchive

import (
	"context"
	"fmt"
	"time"

	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/storage"
	"github.com/stagegate/stagegate/internal/vcs"
)

// ServiceConfig is the configuration for the project archive service.
type ServiceConfig struct {
	Repository storage.ProjectRepository
	// VCS cleans up worktree state on archive. Optional.
	VCS vcs.Client
	// CleanupTimeout bounds the background VCS cleanup.
	CleanupTimeout time.Duration
	Logger         log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.CleanupTimeout == 0 {
		c.CleanupTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.ProjectArchive"})
	return nil
}

// Service archives projects. Archiving hides the project and best-effort
// removes its VCS worktree state; the data itself is never deleted.
type Service struct {
	repo           storage.ProjectRepository
	vcs            vcs.Client
	cleanupTimeout time.Duration
	logger         log.Logger
}

// NewService creates a new project archive service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:           cfg.Repository,
		vcs:            cfg.VCS,
		cleanupTimeout: cfg.CleanupTimeout,
		logger:         cfg.Logger,
	}, nil
}

// Archive marks the project archived. Worktree cleanup runs in the
// background: its failure is logged, never propagated.
func (s *Service) Archive(ctx context.Context, projectID string) error {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("could not get project: %w", err)
	}
	if project.Archived {
		return nil
	}

	project.Archived = true
	if err := s.repo.UpdateProject(ctx, *project); err != nil {
		return fmt.Errorf("could not update project: %w", err)
	}

	if s.vcs != nil && project.Path != "" {
		path := project.Path
		go func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
			defer cancel()
			if err := s.vcs.RemoveWorktree(cleanupCtx, path); err != nil {
				s.logger.Warningf("Could not remove worktree for %s: %v", path, err)
			}
		}()
	}

	s.logger.Infof("Archived project: %s", projectID)

	return nil
}
