// Package engine implements the stage execution state machine: it renders
// prompts, dispatches the agent, gates results on human decisions and folds
// approved outputs into the task context.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stagegate/stagegate/internal/agent"
	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/model"
	"github.com/stagegate/stagegate/internal/notify"
	"github.com/stagegate/stagegate/internal/prompt"
	"github.com/stagegate/stagegate/internal/storage"
	"github.com/stagegate/stagegate/internal/vcs"
)

// ServiceConfig is the configuration for the engine.
type ServiceConfig struct {
	Repository storage.ProjectStore
	Runner     agent.Runner
	// VCS executes commit and PR side effects. Optional: when nil the side
	// effects are skipped with a warning.
	VCS      vcs.Client
	Notifier *notify.Broadcaster
	// ProjectName and ProjectPath identify the project the engine operates on.
	ProjectName string
	ProjectPath string
	Logger      log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Notifier == nil {
		n, err := notify.NewBroadcaster(notify.BroadcasterConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create notifier: %w", err)
		}
		c.Notifier = n
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "engine.Engine"})
	return nil
}

// Engine drives tasks through their stage pipeline.
type Engine struct {
	repo        storage.ProjectStore
	runner      agent.Runner
	vcs         vcs.Client
	notifier    *notify.Broadcaster
	projectName string
	projectPath string
	logger      log.Logger
}

// NewEngine creates a new engine.
func NewEngine(cfg ServiceConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		repo:        cfg.Repository,
		runner:      cfg.Runner,
		vcs:         cfg.VCS,
		notifier:    cfg.Notifier,
		projectName: cfg.ProjectName,
		projectPath: cfg.ProjectPath,
		logger:      cfg.Logger,
	}, nil
}

// StartTask moves a pending task onto its first stage and creates the first
// pending execution attempt.
func (e *Engine) StartTask(ctx context.Context, taskID string) (*model.StageExecution, error) {
	task, err := e.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}
	if task.Status != model.TaskStatusPending {
		return nil, fmt.Errorf("task %s is %s, only pending tasks can start: %w", taskID, task.Status, model.ErrNotValid)
	}

	stages, err := e.repo.ListTaskStages(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not list task stages: %w", err)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("task %s has no stages: %w", taskID, model.ErrNotValid)
	}

	exec := model.StageExecution{
		ID:        newID(),
		TaskID:    taskID,
		StageID:   stages[0].StageID,
		Attempt:   1,
		Status:    model.ExecutionStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.repo.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("could not create execution: %w", err)
	}

	task.CurrentStageID = stages[0].StageID
	task.Status = model.TaskStatusInProgress
	task.UpdatedAt = time.Now().UTC()
	if err := e.repo.UpdateTask(ctx, *task); err != nil {
		return nil, fmt.Errorf("could not update task: %w", err)
	}

	e.notifier.TaskStatusChanged(task.ID, task.Status)
	e.notifier.StageStatusChanged(task.ID, exec.StageID, exec.ID, exec.Status)
	e.logger.Infof("Task %s started on stage %s", task.ID, exec.StageID)

	return &exec, nil
}

// RunStage dispatches the pending attempt of the task's current stage to the
// agent and applies the resulting transition: awaiting_user when the gate
// needs a human, approved when no gating is required, failed on agent error.
func (e *Engine) RunStage(ctx context.Context, taskID, userInput string) (*model.StageExecution, error) {
	task, err := e.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}
	if task.Status != model.TaskStatusInProgress || task.CurrentStageID == "" {
		return nil, fmt.Errorf("task %s is %s, nothing to run: %w", taskID, task.Status, model.ErrNotValid)
	}

	exec, err := e.repo.LatestExecution(ctx, taskID, task.CurrentStageID)
	if err != nil {
		return nil, fmt.Errorf("could not get latest execution: %w", err)
	}
	switch exec.Status {
	case model.ExecutionStatusPending:
	case model.ExecutionStatusRunning, model.ExecutionStatusAwaitingUser:
		return nil, fmt.Errorf("stage %s has an active attempt: %w", task.CurrentStageID, model.ErrStageActive)
	default:
		return nil, fmt.Errorf("attempt %d is %s, a new attempt is needed: %w", exec.Attempt, exec.Status, model.ErrNotValid)
	}

	tpl, err := e.repo.GetStageTemplate(ctx, task.CurrentStageID)
	if err != nil {
		return nil, fmt.Errorf("could not get stage template: %w", err)
	}

	rendered, err := e.renderPrompt(ctx, task, tpl, exec, userInput)
	if err != nil {
		return nil, fmt.Errorf("could not render prompt: %w", err)
	}

	now := time.Now().UTC()
	exec.Status = model.ExecutionStatusRunning
	exec.InputPrompt = rendered
	exec.UserInput = userInput
	exec.StartedAt = &now
	if err := e.repo.UpdateExecution(ctx, *exec); err != nil {
		return nil, fmt.Errorf("could not update execution: %w", err)
	}
	e.notifier.StageStatusChanged(task.ID, exec.StageID, exec.ID, exec.Status)

	result, runErr := e.runner.Run(ctx, agent.Request{
		Prompt:       rendered,
		AllowedTools: tpl.AllowedTools,
		Format:       tpl.OutputFormat,
	})
	finished := time.Now().UTC()
	exec.FinishedAt = &finished

	if runErr != nil {
		exec.Status = model.ExecutionStatusFailed
		exec.ErrorMessage = runErr.Error()
		if err := e.repo.UpdateExecution(ctx, *exec); err != nil {
			return nil, fmt.Errorf("could not update execution: %w", err)
		}
		e.notifier.StageStatusChanged(task.ID, exec.StageID, exec.ID, exec.Status)
		e.logger.Errorf("Stage %s attempt %d failed: %v", exec.StageID, exec.Attempt, runErr)
		return exec, nil
	}

	exec.RawOutput = result.Raw
	exec.ParsedOutput = result.Parsed
	exec.Telemetry = result.Telemetry

	rule := tpl.GateRule()
	if rule.Kind == model.GateKindApproval && !tpl.RequiresUserInput {
		// No gating required, the stage approves itself.
		if err := e.repo.UpdateExecution(ctx, *exec); err != nil {
			return nil, fmt.Errorf("could not update execution: %w", err)
		}
		if err := e.applyApproval(ctx, task, tpl, exec, model.UserDecision{Approved: true}); err != nil {
			return nil, err
		}
		return exec, nil
	}

	exec.Status = model.ExecutionStatusAwaitingUser
	if err := e.repo.UpdateExecution(ctx, *exec); err != nil {
		return nil, fmt.Errorf("could not update execution: %w", err)
	}
	e.notifier.StageStatusChanged(task.ID, exec.StageID, exec.ID, exec.Status)

	return exec, nil
}

// Approve evaluates the gate rule of an awaiting execution against the user
// decision. A violated rule surfaces synchronously as ErrGateNotSatisfied; a
// satisfied rule fires the stage's side effects and advances the task.
func (e *Engine) Approve(ctx context.Context, executionID string, decision model.UserDecision) error {
	exec, err := e.repo.GetExecution(ctx, executionID)
	if err != nil {
		return fmt.Errorf("could not get execution: %w", err)
	}
	if exec.Status != model.ExecutionStatusAwaitingUser {
		return fmt.Errorf("execution %s is %s, not awaiting the user: %w", executionID, exec.Status, model.ErrNotValid)
	}

	task, err := e.repo.GetTask(ctx, exec.TaskID)
	if err != nil {
		return fmt.Errorf("could not get task: %w", err)
	}
	tpl, err := e.repo.GetStageTemplate(ctx, exec.StageID)
	if err != nil {
		return fmt.Errorf("could not get stage template: %w", err)
	}

	if err := tpl.GateRule().Evaluate(exec.ParsedOutput, decision); err != nil {
		return err
	}

	return e.applyApproval(ctx, task, tpl, exec, decision)
}

// Reject moves an awaiting execution to failed. The decision records why
// (Notes) and which items of the output the user wants carried into the next
// attempt (SelectedIndices), so a retry can keep the surviving part of the
// rejected output. The task stays in progress so the stage can be retried.
func (e *Engine) Reject(ctx context.Context, executionID string, decision model.UserDecision) error {
	exec, err := e.repo.GetExecution(ctx, executionID)
	if err != nil {
		return fmt.Errorf("could not get execution: %w", err)
	}
	if exec.Status != model.ExecutionStatusAwaitingUser {
		return fmt.Errorf("execution %s is %s, not awaiting the user: %w", executionID, exec.Status, model.ErrNotValid)
	}

	decision.Approved = false
	now := time.Now().UTC()
	exec.Status = model.ExecutionStatusFailed
	exec.ErrorMessage = decision.Notes
	exec.UserDecision = marshalDecision(decision)
	exec.FinishedAt = &now
	if err := e.repo.UpdateExecution(ctx, *exec); err != nil {
		return fmt.Errorf("could not update execution: %w", err)
	}

	e.notifier.StageStatusChanged(exec.TaskID, exec.StageID, exec.ID, exec.Status)
	e.logger.Infof("Execution %s rejected: %s", exec.ID, decision.Notes)

	return nil
}

// Retry creates a fresh pending attempt for the task's current stage after a
// failed one. The new attempt's prompt carries the prior attempt's surviving
// output so the agent sees what was rejected.
func (e *Engine) Retry(ctx context.Context, taskID string) (*model.StageExecution, error) {
	task, err := e.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}
	if task.Status != model.TaskStatusInProgress || task.CurrentStageID == "" {
		return nil, fmt.Errorf("task %s is %s, nothing to retry: %w", taskID, task.Status, model.ErrNotValid)
	}

	latest, err := e.repo.LatestExecution(ctx, taskID, task.CurrentStageID)
	if err != nil {
		return nil, fmt.Errorf("could not get latest execution: %w", err)
	}
	if latest.Status != model.ExecutionStatusFailed {
		return nil, fmt.Errorf("attempt %d is %s, only failed attempts can be retried: %w", latest.Attempt, latest.Status, model.ErrNotValid)
	}

	exec := model.StageExecution{
		ID:        newID(),
		TaskID:    taskID,
		StageID:   task.CurrentStageID,
		Attempt:   latest.Attempt + 1,
		Status:    model.ExecutionStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.repo.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("could not create execution: %w", err)
	}

	e.notifier.StageStatusChanged(taskID, exec.StageID, exec.ID, exec.Status)
	e.logger.Infof("Stage %s attempt %d created", exec.StageID, exec.Attempt)

	return &exec, nil
}

// FailRunning records an externally cancelled run as failed.
func (e *Engine) FailRunning(ctx context.Context, executionID string, cause error) error {
	exec, err := e.repo.GetExecution(ctx, executionID)
	if err != nil {
		return fmt.Errorf("could not get execution: %w", err)
	}
	if exec.Status != model.ExecutionStatusRunning {
		return fmt.Errorf("execution %s is %s, not running: %w", executionID, exec.Status, model.ErrNotValid)
	}

	now := time.Now().UTC()
	exec.Status = model.ExecutionStatusFailed
	if cause != nil {
		exec.ErrorMessage = cause.Error()
	}
	exec.FinishedAt = &now
	if err := e.repo.UpdateExecution(ctx, *exec); err != nil {
		return fmt.Errorf("could not update execution: %w", err)
	}

	e.notifier.StageStatusChanged(exec.TaskID, exec.StageID, exec.ID, exec.Status)

	return nil
}

// Events returns the channel of pipeline events for a new subscriber.
func (e *Engine) Events() <-chan notify.Event { return e.notifier.Subscribe() }

// Unsubscribe releases an event subscription.
func (e *Engine) Unsubscribe(ch <-chan notify.Event) { e.notifier.Unsubscribe(ch) }

// applyApproval marks the execution approved, fires the template's side
// effects in order and advances or finishes the task.
func (e *Engine) applyApproval(ctx context.Context, task *model.Task, tpl *model.StageTemplate, exec *model.StageExecution, decision model.UserDecision) error {
	now := time.Now().UTC()
	exec.Status = model.ExecutionStatusApproved
	exec.UserDecision = marshalDecision(decision)
	if exec.FinishedAt == nil {
		exec.FinishedAt = &now
	}
	if err := e.repo.UpdateExecution(ctx, *exec); err != nil {
		return fmt.Errorf("could not update execution: %w", err)
	}
	e.notifier.StageStatusChanged(task.ID, exec.StageID, exec.ID, exec.Status)

	if tpl.CommitsChanges {
		if err := e.commit(ctx, task, tpl); err != nil {
			return err
		}
	}
	if tpl.CreatesPR {
		if err := e.openPR(ctx, exec); err != nil {
			return err
		}
	}
	if tpl.TriggersStageSelection {
		if err := e.applyStageSelection(ctx, task, exec, decision); err != nil {
			return err
		}
	}
	if tpl.OutputFormat == model.OutputFormatPRReview {
		if err := e.recordReviewFixes(ctx, task, exec, decision); err != nil {
			return err
		}
	}
	if tpl.OutputFormat == model.OutputFormatTaskSplitting {
		return e.splitTask(ctx, task, exec, decision)
	}

	composed := outputText(exec.ParsedOutput, decision, exec.RawOutput)
	switch tpl.ResultMode {
	case model.ResultModeAppend:
		task.Context = strings.TrimSpace(task.Context + "\n\n### " + tpl.Name + "\n" + composed)
	default:
		task.Context = composed
	}

	if tpl.IsTerminal {
		return e.finishTask(ctx, task, model.TaskStatusCompleted)
	}
	return e.advanceTask(ctx, task)
}

func (e *Engine) commit(ctx context.Context, task *model.Task, tpl *model.StageTemplate) error {
	if e.vcs == nil {
		e.logger.Warningf("No VCS client configured, skipping commit for stage %s", tpl.Name)
		return nil
	}
	if err := e.vcs.Commit(ctx, e.projectPath, tpl.CommitPrefix, task.Title); err != nil {
		return fmt.Errorf("could not commit changes: %w", err)
	}
	return nil
}

func (e *Engine) openPR(ctx context.Context, exec *model.StageExecution) error {
	if e.vcs == nil {
		e.logger.Warningf("No VCS client configured, skipping PR creation")
		return nil
	}
	fields := map[string]string{}
	if exec.ParsedOutput != nil {
		fields = exec.ParsedOutput.Fields
	}
	url, err := e.vcs.OpenPR(ctx, e.projectPath, vcs.PR{
		Title:       fields["title"],
		Description: fields["description"],
		Branch:      fields["branch"],
	})
	if err != nil {
		return fmt.Errorf("could not open PR: %w", err)
	}
	e.logger.Infof("Opened PR: %s", url)
	return nil
}

// applyStageSelection rebuilds the task's concrete stage list: every
// mandatory template plus the selected optional ones, in ascending sort
// order. The user's selection wins over the agent's suggestion.
func (e *Engine) applyStageSelection(ctx context.Context, task *model.Task, exec *model.StageExecution, decision model.UserDecision) error {
	selected := decision.SelectedStages
	if len(selected) == 0 && exec.ParsedOutput != nil {
		selected = exec.ParsedOutput.SuggestedStages
	}
	wanted := map[string]bool{}
	for _, name := range selected {
		wanted[name] = true
	}

	templates, err := e.repo.ListStageTemplates(ctx)
	if err != nil {
		return fmt.Errorf("could not list stage templates: %w", err)
	}

	var stageIDs []string
	for _, t := range templates {
		if !t.Optional || wanted[t.Name] {
			stageIDs = append(stageIDs, t.ID)
		}
	}
	if err := e.repo.SetTaskStages(ctx, task.ID, stageIDs); err != nil {
		return fmt.Errorf("could not set task stages: %w", err)
	}

	e.logger.Infof("Task %s stage list rebuilt with %d stages", task.ID, len(stageIDs))
	return nil
}

// recordReviewFixes persists one fix-tracking row per review comment, marking
// the user-selected ones.
func (e *Engine) recordReviewFixes(ctx context.Context, task *model.Task, exec *model.StageExecution, decision model.UserDecision) error {
	if exec.ParsedOutput == nil || len(exec.ParsedOutput.Findings) == 0 {
		return nil
	}

	selected := map[int]bool{}
	for _, i := range decision.SelectedIndices {
		selected[i] = true
	}

	now := time.Now().UTC()
	fixes := make([]model.PRReviewFix, 0, len(exec.ParsedOutput.Findings))
	for i, f := range exec.ParsedOutput.Findings {
		fixes = append(fixes, model.PRReviewFix{
			ID:          newID(),
			TaskID:      task.ID,
			ExecutionID: exec.ID,
			CommentID:   fmt.Sprintf("%s/%d", exec.ID, i),
			Description: f.Title,
			Selected:    selected[i],
			CreatedAt:   now,
		})
	}
	if err := e.repo.CreatePRReviewFixes(ctx, fixes); err != nil {
		return fmt.Errorf("could not create PR review fixes: %w", err)
	}
	return nil
}

// splitTask creates one child task per selected subtask and marks the parent
// split. Children get the default mandatory pipeline.
func (e *Engine) splitTask(ctx context.Context, task *model.Task, exec *model.StageExecution, decision model.UserDecision) error {
	if exec.ParsedOutput == nil {
		return fmt.Errorf("task splitting output is missing: %w", model.ErrNotValid)
	}

	templates, err := e.repo.ListStageTemplates(ctx)
	if err != nil {
		return fmt.Errorf("could not list stage templates: %w", err)
	}
	var mandatory []string
	for _, t := range templates {
		if !t.Optional {
			mandatory = append(mandatory, t.ID)
		}
	}

	now := time.Now().UTC()
	for _, i := range decision.SelectedIndices {
		if i < 0 || i >= len(exec.ParsedOutput.Subtasks) {
			continue
		}
		sub := exec.ParsedOutput.Subtasks[i]
		child := model.Task{
			ID:           newID(),
			ParentTaskID: task.ID,
			Title:        sub.Title,
			Description:  sub.Description,
			Status:       model.TaskStatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := e.repo.CreateTask(ctx, child); err != nil {
			return fmt.Errorf("could not create child task: %w", err)
		}
		if err := e.repo.SetTaskStages(ctx, child.ID, mandatory); err != nil {
			return fmt.Errorf("could not set child task stages: %w", err)
		}
		e.logger.Infof("Created child task %s (%s)", child.ID, child.Title)
	}

	return e.finishTask(ctx, task, model.TaskStatusSplit)
}

func (e *Engine) finishTask(ctx context.Context, task *model.Task, status model.TaskStatus) error {
	task.Status = status
	task.CurrentStageID = ""
	task.UpdatedAt = time.Now().UTC()
	if err := e.repo.UpdateTask(ctx, *task); err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	e.notifier.TaskStatusChanged(task.ID, task.Status)
	e.logger.Infof("Task %s finished as %s", task.ID, status)
	return nil
}

// advanceTask moves the task to the next stage of its concrete stage list,
// creating the next pending attempt. A task past its last stage completes.
func (e *Engine) advanceTask(ctx context.Context, task *model.Task) error {
	stages, err := e.repo.ListTaskStages(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("could not list task stages: %w", err)
	}

	next := ""
	for i, ts := range stages {
		if ts.StageID == task.CurrentStageID && i+1 < len(stages) {
			next = stages[i+1].StageID
			break
		}
	}
	if next == "" {
		return e.finishTask(ctx, task, model.TaskStatusCompleted)
	}

	attempt := 1
	if latest, err := e.repo.LatestExecution(ctx, task.ID, next); err == nil {
		attempt = latest.Attempt + 1
	}
	exec := model.StageExecution{
		ID:        newID(),
		TaskID:    task.ID,
		StageID:   next,
		Attempt:   attempt,
		Status:    model.ExecutionStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.repo.CreateExecution(ctx, exec); err != nil {
		return fmt.Errorf("could not create execution: %w", err)
	}

	task.CurrentStageID = next
	task.UpdatedAt = time.Now().UTC()
	if err := e.repo.UpdateTask(ctx, *task); err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	e.notifier.StageStatusChanged(task.ID, exec.StageID, exec.ID, exec.Status)
	e.logger.Infof("Task %s advanced to stage %s", task.ID, next)
	return nil
}

// renderPrompt builds the prompt context per the template's input source and
// renders the stored template.
func (e *Engine) renderPrompt(ctx context.Context, task *model.Task, tpl *model.StageTemplate, exec *model.StageExecution, userInput string) (string, error) {
	pctx := prompt.Context{
		ProjectName:        e.projectName,
		TaskTitle:          task.Title,
		TaskDescription:    task.Description,
		OutputInstructions: outputInstructions(tpl.OutputFormat),
	}
	if tpl.InputSource != model.InputSourceUser {
		pctx.PreviousOutput = task.Context
	}
	if tpl.InputSource != model.InputSourcePreviousStage {
		pctx.UserInput = userInput
	}

	executions, err := e.repo.ListExecutions(ctx, task.ID)
	if err != nil {
		return "", fmt.Errorf("could not list executions: %w", err)
	}

	templates, err := e.repo.ListStageTemplates(ctx)
	if err != nil {
		return "", fmt.Errorf("could not list stage templates: %w", err)
	}
	names := map[string]string{}
	for _, t := range templates {
		names[t.ID] = t.Name
	}

	var summaries []string
	for i := range executions {
		prev := &executions[i]
		if prev.Status != model.ExecutionStatusApproved {
			continue
		}
		d := unmarshalDecision(prev.UserDecision)
		summaries = append(summaries, "### "+names[prev.StageID]+"\n"+outputText(prev.ParsedOutput, d, prev.RawOutput))
		if d.Notes != "" {
			pctx.UserDecision = d.Notes
		}
	}
	pctx.StageSummaries = strings.Join(summaries, "\n\n")

	if tpl.TriggersStageSelection {
		var available []string
		for _, t := range templates {
			if t.Optional {
				available = append(available, "- "+t.Name+": "+t.Description)
			}
		}
		pctx.AvailableStages = strings.Join(available, "\n")
	}

	if exec.Attempt > 1 {
		for i := range executions {
			prev := &executions[i]
			if prev.StageID == exec.StageID && prev.Attempt == exec.Attempt-1 {
				d := unmarshalDecision(prev.UserDecision)
				pctx.PriorAttemptOutput = outputText(prev.ParsedOutput, d, prev.RawOutput)
				if pctx.PriorAttemptOutput == "" {
					pctx.PriorAttemptOutput = prev.ErrorMessage
				}
				if d.Notes != "" {
					pctx.UserDecision = d.Notes
				}
				break
			}
		}
	}

	return prompt.Render(tpl.PromptTemplate, pctx), nil
}

// outputText flattens a parsed output into the text that survives the gate.
// For partially selected formats only the user-selected items survive.
func outputText(out *model.ParsedOutput, d model.UserDecision, raw string) string {
	if out == nil {
		return raw
	}

	switch out.Format {
	case model.OutputFormatOptions:
		var lines []string
		for _, i := range d.SelectedIndices {
			if i >= 0 && i < len(out.Options) {
				lines = append(lines, out.Options[i])
			}
		}
		return strings.Join(lines, "\n")

	case model.OutputFormatFindings, model.OutputFormatPRReview:
		var lines []string
		for _, i := range d.SelectedIndices {
			if i < 0 || i >= len(out.Findings) {
				continue
			}
			f := out.Findings[i]
			line := "- " + f.Title
			if f.Detail != "" {
				line += ": " + f.Detail
			}
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n")

	case model.OutputFormatChecklist:
		var lines []string
		for _, item := range out.ChecklistItems {
			lines = append(lines, "- [x] "+item.Text)
		}
		return strings.Join(lines, "\n")

	case model.OutputFormatStructured, model.OutputFormatPRPreparation:
		keys := make([]string, 0, len(out.Fields))
		for k := range out.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var lines []string
		for _, k := range keys {
			lines = append(lines, k+": "+out.Fields[k])
		}
		return strings.Join(lines, "\n")

	case model.OutputFormatTaskSplitting:
		var lines []string
		for _, i := range d.SelectedIndices {
			if i >= 0 && i < len(out.Subtasks) {
				lines = append(lines, "- "+out.Subtasks[i].Title)
			}
		}
		return strings.Join(lines, "\n")
	}

	if out.Text != "" {
		return out.Text
	}
	return raw
}

func outputInstructions(f model.OutputFormat) string {
	switch f {
	case model.OutputFormatOptions:
		return "Present the result as a numbered list of mutually exclusive options."
	case model.OutputFormatChecklist:
		return "Present the result as a checklist of verifiable items."
	case model.OutputFormatStructured, model.OutputFormatPRPreparation:
		return "Present the result as named fields, one per line."
	case model.OutputFormatFindings, model.OutputFormatPRReview:
		return "Present each finding as a separate item with a short title."
	case model.OutputFormatTaskSplitting:
		return "Present each proposed subtask with a title and description."
	}
	return ""
}

func marshalDecision(d model.UserDecision) string {
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}

func unmarshalDecision(s string) model.UserDecision {
	var d model.UserDecision
	if s == "" {
		return d
	}
	_ = json.Unmarshal([]byte(s), &d)
	return d
}

func newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
