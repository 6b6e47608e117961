package lib

import (
	"context"
	"fmt"

	"github.com/stagegate/stagegate/internal/app/taskcreate"
	"github.com/stagegate/stagegate/internal/app/taskimport"
)

// CreateTaskOpts configures task creation.
type CreateTaskOpts struct {
	// Title is the task title (required).
	Title string
	// Description is the long-form description of the work.
	Description string
}

// CreateTask creates a pending task whose stage list is every mandatory
// stage of the project, in pipeline order.
//
// Returns [ErrNotFound] if the project does not exist, [ErrNotValid] when
// the title is missing.
func (c *Client) CreateTask(ctx context.Context, projectID string, opts CreateTaskOpts) (*Task, error) {
	_, store, err := c.projectStore(ctx, projectID)
	if err != nil {
		return nil, mapError(err)
	}

	svc, err := taskcreate.NewService(taskcreate.ServiceConfig{
		Repository: store,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	task, err := svc.Create(ctx, taskcreate.CreateOptions{
		Title:       opts.Title,
		Description: opts.Description,
	})
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalTask(*task)
	return &result, nil
}

// ListTasks lists the project's tasks, newest first. Archived tasks are
// included only when includeArchived is true.
func (c *Client) ListTasks(ctx context.Context, projectID string, includeArchived bool) ([]Task, error) {
	_, store, err := c.projectStore(ctx, projectID)
	if err != nil {
		return nil, mapError(err)
	}

	tasks, err := store.ListTasks(ctx, includeArchived)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalTaskList(tasks), nil
}

// GetTask retrieves a task by ID.
//
// Returns [ErrNotFound] if the task does not exist.
func (c *Client) GetTask(ctx context.Context, projectID, taskID string) (*Task, error) {
	_, store, err := c.projectStore(ctx, projectID)
	if err != nil {
		return nil, mapError(err)
	}

	task, err := store.GetTask(ctx, taskID)
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalTask(*task)
	return &result, nil
}

// ListExecutions lists every stage execution of a task, oldest first.
func (c *Client) ListExecutions(ctx context.Context, projectID, taskID string) ([]StageExecution, error) {
	_, store, err := c.projectStore(ctx, projectID)
	if err != nil {
		return nil, mapError(err)
	}

	executions, err := store.ListExecutions(ctx, taskID)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalExecutionList(executions), nil
}

// AssignedIssues lists the tracker issues available for import.
func (c *Client) AssignedIssues(ctx context.Context) ([]Issue, error) {
	tc, err := c.newTracker()
	if err != nil {
		return nil, err
	}

	issues, err := tc.AssignedIssues(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	result := make([]Issue, len(issues))
	for i, issue := range issues {
		result[i] = Issue{
			Key:         issue.Key,
			Title:       issue.Title,
			Description: issue.Description,
			URL:         issue.URL,
		}
	}
	return result, nil
}

// ImportIssue creates a task from a tracker issue.
//
// Returns [ErrNotFound] if the project or issue does not exist.
func (c *Client) ImportIssue(ctx context.Context, projectID, key string) (*Task, error) {
	_, store, err := c.projectStore(ctx, projectID)
	if err != nil {
		return nil, mapError(err)
	}

	tc, err := c.newTracker()
	if err != nil {
		return nil, err
	}

	creator, err := taskcreate.NewService(taskcreate.ServiceConfig{
		Repository: store,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create task service: %w", err)
	}

	svc, err := taskimport.NewService(taskimport.ServiceConfig{
		Tracker: tc,
		Creator: creator,
		Logger:  c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	task, err := svc.Import(ctx, key)
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalTask(*task)
	return &result, nil
}
