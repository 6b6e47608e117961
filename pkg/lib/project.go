package lib

import (
	"context"
	"fmt"

	"github.com/stagegate/stagegate/internal/app/projectarchive"
	"github.com/stagegate/stagegate/internal/app/projectcreate"
	"github.com/stagegate/stagegate/internal/storage"
)

// CreateProjectOpts configures project creation.
type CreateProjectOpts struct {
	// Name is the project name (required). Must be unique.
	Name string
	// Path is the working directory of the project repository.
	Path string
}

// CreateProject creates a new project seeded with the default stage pipeline.
//
// Returns [ErrAlreadyExists] if a project with the same name exists.
func (c *Client) CreateProject(ctx context.Context, opts CreateProjectOpts) (*Project, error) {
	svc, err := projectcreate.NewService(projectcreate.ServiceConfig{
		Repository: c.reg.App(),
		Stores:     clientStores{c: c},
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	p, err := svc.Create(ctx, projectcreate.CreateOptions{
		Name: opts.Name,
		Path: opts.Path,
	})
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalProject(*p)
	return &result, nil
}

// ListProjects lists projects. Archived projects are included only when
// includeArchived is true.
func (c *Client) ListProjects(ctx context.Context, includeArchived bool) ([]Project, error) {
	ps, err := c.reg.App().ListProjects(ctx, includeArchived)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalProjectList(ps), nil
}

// GetProject retrieves a project by ID.
//
// Returns [ErrNotFound] if the project does not exist.
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	p, err := c.reg.App().GetProject(ctx, projectID)
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalProject(*p)
	return &result, nil
}

// GetProjectByName retrieves a project by name.
//
// Returns [ErrNotFound] if the project does not exist.
func (c *Client) GetProjectByName(ctx context.Context, name string) (*Project, error) {
	p, err := c.reg.App().GetProjectByName(ctx, name)
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalProject(*p)
	return &result, nil
}

// ArchiveProject archives a project. The project's data is kept; only its
// visibility changes. Worktree cleanup runs best effort in the background.
//
// Returns [ErrNotFound] if the project does not exist.
func (c *Client) ArchiveProject(ctx context.Context, projectID string) error {
	svc, err := projectarchive.NewService(projectarchive.ServiceConfig{
		Repository: c.reg.App(),
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if err := svc.Archive(ctx, projectID); err != nil {
		return mapError(err)
	}

	return nil
}

// clientStores adapts the client's registry to the project create service
// store opener contract.
type clientStores struct {
	c *Client
}

func (s clientStores) ProjectStore(ctx context.Context, projectID string) (storage.ProjectStore, error) {
	return s.c.reg.ProjectStore(ctx, projectID)
}
