package projectcreate

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stagegate/stagegate/internal/catalog"
	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/model"
	"github.com/stagegate/stagegate/internal/storage"
)

// ProjectStores resolves the per-project store of a project, opening and
// migrating it on first use.
type ProjectStores interface {
	ProjectStore(ctx context.Context, projectID string) (storage.ProjectStore, error)
}

// ServiceConfig is the configuration for the project create service.
type ServiceConfig struct {
	Repository storage.ProjectRepository
	Stores     ProjectStores
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Stores == nil {
		return fmt.Errorf("stores is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.ProjectCreate"})
	return nil
}

// Service handles project creation: the catalog row plus the seeded
// per-project store.
type Service struct {
	repo   storage.ProjectRepository
	stores ProjectStores
	logger log.Logger
}

// NewService creates a new project create service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		stores: cfg.Stores,
		logger: cfg.Logger,
	}, nil
}

// CreateOptions are the options for creating a project.
type CreateOptions struct {
	Name string
	Path string
}

// Create creates a new project and seeds its store with the default stage
// pipeline. Seeding only happens on brand-new stores; existing templates are
// left untouched.
func (s *Service) Create(ctx context.Context, opts CreateOptions) (*model.Project, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("name is required: %w", model.ErrNotValid)
	}

	_, err := s.repo.GetProjectByName(ctx, opts.Name)
	if err == nil {
		return nil, fmt.Errorf("project with name %q already exists: %w", opts.Name, model.ErrAlreadyExists)
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("could not check name uniqueness: %w", err)
	}

	project := model.Project{
		ID:        newID(),
		Name:      opts.Name,
		Path:      opts.Path,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("could not save project: %w", err)
	}

	// Opening the store runs its migrations as a hard precondition.
	store, err := s.stores.ProjectStore(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("could not open project store: %w", err)
	}
	if err := s.seed(ctx, store); err != nil {
		return nil, fmt.Errorf("could not seed project store: %w", err)
	}

	s.logger.Infof("Created project: %s (%s)", project.Name, project.ID)

	return &project, nil
}

func (s *Service) seed(ctx context.Context, store storage.ProjectStore) error {
	existing, err := store.ListStageTemplates(ctx)
	if err != nil {
		return fmt.Errorf("could not list stage templates: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for _, tpl := range catalog.DefaultTemplates() {
		tpl.ID = newID()
		if err := store.CreateStageTemplate(ctx, tpl); err != nil {
			return fmt.Errorf("could not create stage template %q: %w", tpl.Name, err)
		}
	}

	return nil
}

func newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
