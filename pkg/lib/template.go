package lib

import (
	"context"
	"fmt"
	"io"

	"github.com/stagegate/stagegate/internal/app/templatesync"
)

// ListStageTemplates lists the project's stage templates in pipeline order.
func (c *Client) ListStageTemplates(ctx context.Context, projectID string) ([]StageTemplate, error) {
	_, store, err := c.projectStore(ctx, projectID)
	if err != nil {
		return nil, mapError(err)
	}

	templates, err := store.ListStageTemplates(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalTemplateList(templates), nil
}

// ExportTemplates writes the project's stage templates as YAML.
func (c *Client) ExportTemplates(ctx context.Context, projectID string, w io.Writer) error {
	_, store, err := c.projectStore(ctx, projectID)
	if err != nil {
		return mapError(err)
	}

	svc, err := templatesync.NewService(templatesync.ServiceConfig{
		Repository: store,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if err := svc.Export(ctx, w); err != nil {
		return mapError(err)
	}

	return nil
}

// ImportTemplates reads stage templates as YAML and upserts them by name.
// It returns the number of imported templates.
func (c *Client) ImportTemplates(ctx context.Context, projectID string, r io.Reader) (int, error) {
	_, store, err := c.projectStore(ctx, projectID)
	if err != nil {
		return 0, mapError(err)
	}

	svc, err := templatesync.NewService(templatesync.ServiceConfig{
		Repository: store,
		Logger:     c.logger,
	})
	if err != nil {
		return 0, fmt.Errorf("could not create service: %w", err)
	}

	n, err := svc.Import(ctx, r)
	if err != nil {
		return 0, mapError(err)
	}

	return n, nil
}
