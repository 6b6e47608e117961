package lib

import (
	"context"

	"github.com/stagegate/stagegate/internal/model"
)

// RunStage runs the task's current stage with the configured agent.
//
// Pending tasks are started first. The returned execution is either approved
// (the task advanced), awaiting_user (a decision is needed) or failed.
// userInput is optional extra guidance folded into the stage prompt.
//
// Returns [ErrStageActive] if the stage already has a running or awaiting
// attempt.
func (c *Client) RunStage(ctx context.Context, projectID, taskID, userInput string) (*StageExecution, error) {
	eng, store, err := c.newEngine(ctx, projectID)
	if err != nil {
		return nil, mapError(err)
	}

	task, err := store.GetTask(ctx, taskID)
	if err != nil {
		return nil, mapError(err)
	}
	if task.Status == model.TaskStatusPending {
		if _, err := eng.StartTask(ctx, task.ID); err != nil {
			return nil, mapError(err)
		}
	}

	exec, err := eng.RunStage(ctx, taskID, userInput)
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalExecution(*exec)
	return &result, nil
}

// Approve accepts an awaiting stage execution with the given decision and
// applies the stage's side effects: context folding, stage selection, task
// splitting, commits and PRs, then advances the task.
//
// Returns [ErrGateNotSatisfied] when the decision violates the stage's gate
// rule; the execution keeps awaiting in that case.
func (c *Client) Approve(ctx context.Context, projectID, executionID string, decision Decision) error {
	eng, _, err := c.newEngine(ctx, projectID)
	if err != nil {
		return mapError(err)
	}

	internal := toInternalDecision(decision)
	internal.Approved = true
	if err := eng.Approve(ctx, executionID, internal); err != nil {
		return mapError(err)
	}

	return nil
}

// Reject fails an awaiting stage execution. The decision's Notes carry the
// reason and its SelectedIndices mark the items of the output to keep; both
// are shown to the agent on the next attempt, the kept items verbatim.
// The stage can be retried afterwards with [Client.RetryStage].
func (c *Client) Reject(ctx context.Context, projectID, executionID string, decision Decision) error {
	eng, _, err := c.newEngine(ctx, projectID)
	if err != nil {
		return mapError(err)
	}

	if err := eng.Reject(ctx, executionID, toInternalDecision(decision)); err != nil {
		return mapError(err)
	}

	return nil
}

// RetryStage prepares a new attempt of the task's failed stage. Run it with
// [Client.RunStage].
func (c *Client) RetryStage(ctx context.Context, projectID, taskID string) (*StageExecution, error) {
	eng, _, err := c.newEngine(ctx, projectID)
	if err != nil {
		return nil, mapError(err)
	}

	exec, err := eng.Retry(ctx, taskID)
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalExecution(*exec)
	return &result, nil
}
