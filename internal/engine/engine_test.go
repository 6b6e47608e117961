package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stagegate/stagegate/internal/agent"
	"github.com/stagegate/stagegate/internal/agent/agentmock"
	"github.com/stagegate/stagegate/internal/catalog"
	"github.com/stagegate/stagegate/internal/engine"
	"github.com/stagegate/stagegate/internal/model"
	"github.com/stagegate/stagegate/internal/storage/memory"
	"github.com/stagegate/stagegate/internal/vcs"
	"github.com/stagegate/stagegate/internal/vcs/vcsmock"
)

type testEnv struct {
	repo   *memory.Repository
	runner *agentmock.MockRunner
	vcs    *vcsmock.MockClient
	engine *engine.Engine
	// byName maps canonical stage names to the seeded template IDs.
	byName map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	byName := map[string]string{}
	for i, tpl := range catalog.DefaultTemplates() {
		tpl.ID = fmt.Sprintf("tpl-%d", i)
		require.NoError(t, repo.CreateStageTemplate(context.Background(), tpl))
		byName[tpl.Name] = tpl.ID
	}

	runner := &agentmock.MockRunner{}
	vcsClient := &vcsmock.MockClient{}

	eng, err := engine.NewEngine(engine.ServiceConfig{
		Repository:  repo,
		Runner:      runner,
		VCS:         vcsClient,
		ProjectName: "demo",
		ProjectPath: "/tmp/demo",
	})
	require.NoError(t, err)

	return &testEnv{repo: repo, runner: runner, vcs: vcsClient, engine: eng, byName: byName}
}

// newTask creates a pending task whose stage list holds the given canonical
// stage names in order.
func (env *testEnv) newTask(t *testing.T, id string, stageNames ...string) *model.Task {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	task := model.Task{
		ID:        id,
		Title:     "Add login endpoint",
		Status:    model.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, env.repo.CreateTask(ctx, task))

	ids := make([]string, 0, len(stageNames))
	for _, name := range stageNames {
		ids = append(ids, env.byName[name])
	}
	require.NoError(t, env.repo.SetTaskStages(ctx, id, ids))

	return &task
}

func textResult(text string) *agent.Result {
	return &agent.Result{
		Raw:       text,
		Parsed:    &model.ParsedOutput{Format: model.OutputFormatText, Text: text},
		Telemetry: model.Telemetry{InputTokens: 10, OutputTokens: 5},
	}
}

func TestStartTask(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StageResearch, catalog.StagePlanning)

	exec, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)
	assert.Equal(env.byName[catalog.StageResearch], exec.StageID)
	assert.Equal(1, exec.Attempt)
	assert.Equal(model.ExecutionStatusPending, exec.Status)

	task, err := env.repo.GetTask(ctx, "task-1")
	require.NoError(err)
	assert.Equal(model.TaskStatusInProgress, task.Status)
	assert.Equal(exec.StageID, task.CurrentStageID)

	// A task can only start once.
	_, err = env.engine.StartTask(ctx, "task-1")
	assert.Error(err)
}

func TestStartTaskWithoutStages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, env.repo.CreateTask(ctx, model.Task{
		ID: "task-1", Title: "Empty", Status: model.TaskStatusPending,
		CreatedAt: now, UpdatedAt: now,
	}))

	_, err := env.engine.StartTask(ctx, "task-1")
	assert.Error(t, err)
}

func TestRunStageAutoApproves(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StageResearch, catalog.StagePlanning)

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	// Research has an approval gate and no required user input, so the run
	// approves itself and the task advances to Planning.
	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(&agent.Result{
		Raw:    "research notes",
		Parsed: &model.ParsedOutput{Format: model.OutputFormatResearch, Text: "research notes"},
	}, nil)

	exec, err := env.engine.RunStage(ctx, "task-1", "focus on the API layer")
	require.NoError(err)
	assert.Equal(model.ExecutionStatusApproved, exec.Status)
	assert.Contains(exec.InputPrompt, "Add login endpoint")
	assert.Contains(exec.InputPrompt, "focus on the API layer")

	task, err := env.repo.GetTask(ctx, "task-1")
	require.NoError(err)
	assert.Equal(env.byName[catalog.StagePlanning], task.CurrentStageID)
	assert.Equal("research notes", task.Context)

	next, err := env.repo.LatestExecution(ctx, "task-1", task.CurrentStageID)
	require.NoError(err)
	assert.Equal(model.ExecutionStatusPending, next.Status)
	env.runner.AssertExpectations(t)
}

func TestRunStageAwaitsUser(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StageCodeReview)

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(&agent.Result{
		Raw: "review",
		Parsed: &model.ParsedOutput{
			Format:   model.OutputFormatFindings,
			Findings: []model.Finding{{Title: "Missing nil check"}, {Title: "Typo in error"}},
		},
	}, nil)

	exec, err := env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)
	assert.Equal(model.ExecutionStatusAwaitingUser, exec.Status)

	// The active attempt blocks a second run.
	_, err = env.engine.RunStage(ctx, "task-1", "")
	assert.True(errors.Is(err, model.ErrStageActive))
}

func TestRunStageRunnerError(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StageResearch)

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(nil, errors.New("agent crashed"))

	exec, err := env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)
	assert.Equal(model.ExecutionStatusFailed, exec.Status)
	assert.Equal("agent crashed", exec.ErrorMessage)

	// The task survives a failed attempt.
	task, err := env.repo.GetTask(ctx, "task-1")
	require.NoError(err)
	assert.Equal(model.TaskStatusInProgress, task.Status)
}

func TestApproveGateViolation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StageTaskSplitting)

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(&agent.Result{
		Raw: "split",
		Parsed: &model.ParsedOutput{
			Format:   model.OutputFormatTaskSplitting,
			Subtasks: []model.ProposedSubtask{{Title: "Part one"}, {Title: "Part two"}},
		},
	}, nil)

	exec, err := env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)

	// Task splitting requires at least one selected subtask.
	err = env.engine.Approve(ctx, exec.ID, model.UserDecision{})
	assert.True(errors.Is(err, model.ErrGateNotSatisfied))

	// The violation left the execution awaiting the user.
	got, err := env.repo.GetExecution(ctx, exec.ID)
	require.NoError(err)
	assert.Equal(model.ExecutionStatusAwaitingUser, got.Status)
}

func TestApproveFindingsAppendsContext(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	task := env.newTask(t, "task-1", catalog.StageCodeReview, catalog.StageMerge)
	task.Context = "implementation summary"
	task.Status = model.TaskStatusPending
	require.NoError(env.repo.UpdateTask(ctx, *task))

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(&agent.Result{
		Raw: "review",
		Parsed: &model.ParsedOutput{
			Format: model.OutputFormatFindings,
			Findings: []model.Finding{
				{Title: "Missing nil check", Detail: "dereference before validation"},
				{Title: "Typo in error"},
			},
		},
	}, nil)

	exec, err := env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)

	err = env.engine.Approve(ctx, exec.ID, model.UserDecision{SelectedIndices: []int{0}})
	require.NoError(err)

	// Append mode keeps the prior context and adds the selected findings.
	got, err := env.repo.GetTask(ctx, "task-1")
	require.NoError(err)
	assert.Contains(got.Context, "implementation summary")
	assert.Contains(got.Context, "### Code Review")
	assert.Contains(got.Context, "Missing nil check: dereference before validation")
	assert.NotContains(got.Context, "Typo in error")
	assert.Equal(env.byName[catalog.StageMerge], got.CurrentStageID)
}

func TestApproveCommitsChanges(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StageImplementation, catalog.StageMerge)

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(textResult("implemented"), nil)
	env.vcs.On("Commit", mock.Anything, "/tmp/demo", "feat: ", "Add login endpoint").Once().Return(nil)

	// Implementation is a text stage: it auto-approves and commits.
	_, err = env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)

	env.vcs.AssertExpectations(t)
}

func TestApproveOpensPR(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StagePRPreparation, catalog.StageMerge)

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(&agent.Result{
		Raw: "pr",
		Parsed: &model.ParsedOutput{
			Format: model.OutputFormatPRPreparation,
			Fields: map[string]string{
				"title":       "Add login endpoint",
				"description": "Adds the POST /login endpoint.",
				"branch":      "login-endpoint",
			},
		},
	}, nil)

	exec, err := env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)
	assert.Equal(model.ExecutionStatusAwaitingUser, exec.Status)

	env.vcs.On("OpenPR", mock.Anything, "/tmp/demo", vcs.PR{
		Title:       "Add login endpoint",
		Description: "Adds the POST /login endpoint.",
		Branch:      "login-endpoint",
	}).Once().Return("https://example.com/pr/1", nil)

	err = env.engine.Approve(ctx, exec.ID, model.UserDecision{Approved: true})
	require.NoError(err)
	env.vcs.AssertExpectations(t)
}

func TestApproveStageSelection(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1",
		catalog.StageResearch, catalog.StagePlanning, catalog.StageImplementation,
		catalog.StageCodeReview, catalog.StageMerge)

	// Jump the task straight onto Planning.
	task, err := env.repo.GetTask(ctx, "task-1")
	require.NoError(err)
	task.Status = model.TaskStatusInProgress
	task.CurrentStageID = env.byName[catalog.StagePlanning]
	require.NoError(env.repo.UpdateTask(ctx, *task))
	require.NoError(env.repo.CreateExecution(ctx, model.StageExecution{
		ID: "exec-plan", TaskID: "task-1", StageID: task.CurrentStageID, Attempt: 1,
		Status: model.ExecutionStatusPending, CreatedAt: time.Now().UTC(),
	}))

	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(&agent.Result{
		Raw: "plan",
		Parsed: &model.ParsedOutput{
			Format:          model.OutputFormatPlan,
			Text:            "the plan",
			SuggestedStages: []string{catalog.StageDocumentation},
		},
	}, nil)

	exec, err := env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)
	assert.Contains(exec.InputPrompt, catalog.StageDocumentation)

	// The user overrides the suggestion with PR Preparation.
	err = env.engine.Approve(ctx, exec.ID, model.UserDecision{
		Approved:       true,
		SelectedStages: []string{catalog.StagePRPreparation},
	})
	require.NoError(err)

	stages, err := env.repo.ListTaskStages(ctx, "task-1")
	require.NoError(err)

	var names []string
	for _, ts := range stages {
		tpl, err := env.repo.GetStageTemplate(ctx, ts.StageID)
		require.NoError(err)
		names = append(names, tpl.Name)
	}
	assert.Equal([]string{
		catalog.StageResearch, catalog.StagePlanning, catalog.StageImplementation,
		catalog.StageCodeReview, catalog.StagePRPreparation, catalog.StageMerge,
	}, names)
}

func TestApproveTaskSplitting(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StageTaskSplitting)

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(&agent.Result{
		Raw: "split",
		Parsed: &model.ParsedOutput{
			Format: model.OutputFormatTaskSplitting,
			Subtasks: []model.ProposedSubtask{
				{Title: "Backend endpoint", Description: "The API half."},
				{Title: "Frontend form", Description: "The UI half."},
				{Title: "Docs", Description: "Not wanted."},
			},
		},
	}, nil)

	exec, err := env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)

	err = env.engine.Approve(ctx, exec.ID, model.UserDecision{SelectedIndices: []int{0, 1}})
	require.NoError(err)

	parent, err := env.repo.GetTask(ctx, "task-1")
	require.NoError(err)
	assert.Equal(model.TaskStatusSplit, parent.Status)
	assert.Empty(parent.CurrentStageID)

	tasks, err := env.repo.ListTasks(ctx, false)
	require.NoError(err)
	require.Len(tasks, 3)

	children := 0
	for _, child := range tasks {
		if child.ParentTaskID != "task-1" {
			continue
		}
		children++
		assert.Equal(model.TaskStatusPending, child.Status)

		stages, err := env.repo.ListTaskStages(ctx, child.ID)
		require.NoError(err)
		assert.NotEmpty(stages)
	}
	assert.Equal(2, children)
}

func TestApprovePRReviewRecordsFixes(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StagePRReview, catalog.StageMerge)

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(&agent.Result{
		Raw: "comments",
		Parsed: &model.ParsedOutput{
			Format: model.OutputFormatPRReview,
			Findings: []model.Finding{
				{Title: "Rename the handler"},
				{Title: "Split the function"},
			},
		},
	}, nil)

	exec, err := env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)

	err = env.engine.Approve(ctx, exec.ID, model.UserDecision{SelectedIndices: []int{1}})
	require.NoError(err)

	fixes, err := env.repo.ListPRReviewFixes(ctx, "task-1")
	require.NoError(err)
	require.Len(fixes, 2)

	selected := 0
	for _, f := range fixes {
		assert.Equal(exec.ID, f.ExecutionID)
		if f.Selected {
			selected++
			assert.Equal("Split the function", f.Description)
		}
	}
	assert.Equal(1, selected)
}

func TestRejectAndRetry(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StageCodeReview, catalog.StageMerge)

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(&agent.Result{
		Raw: "review",
		Parsed: &model.ParsedOutput{
			Format:   model.OutputFormatFindings,
			Findings: []model.Finding{{Title: "Superficial review"}},
		},
	}, nil)

	exec, err := env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)

	err = env.engine.Reject(ctx, exec.ID, model.UserDecision{Notes: "review missed the concurrency bug"})
	require.NoError(err)

	got, err := env.repo.GetExecution(ctx, exec.ID)
	require.NoError(err)
	assert.Equal(model.ExecutionStatusFailed, got.Status)
	assert.Equal("review missed the concurrency bug", got.ErrorMessage)

	retried, err := env.engine.Retry(ctx, "task-1")
	require.NoError(err)
	assert.Equal(2, retried.Attempt)
	assert.Equal(model.ExecutionStatusPending, retried.Status)

	// Nothing was kept from the rejected output, so the retried run's prompt
	// falls back to the rejection reason.
	var captured agent.Request
	env.runner.On("Run", mock.Anything, mock.Anything).Once().Run(func(args mock.Arguments) {
		captured = args.Get(1).(agent.Request)
	}).Return(&agent.Result{
		Raw: "review 2",
		Parsed: &model.ParsedOutput{
			Format:   model.OutputFormatFindings,
			Findings: []model.Finding{{Title: "Race on the counter"}},
		},
	}, nil)

	second, err := env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)
	assert.Equal(model.ExecutionStatusAwaitingUser, second.Status)
	assert.Contains(captured.Prompt, "review missed the concurrency bug")

	// Only failed attempts can be retried.
	_, err = env.engine.Retry(ctx, "task-1")
	assert.Error(err)
}

func TestRetryCarriesSelectedFindings(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StageCodeReview, catalog.StageMerge)

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(&agent.Result{
		Raw: "review",
		Parsed: &model.ParsedOutput{
			Format: model.OutputFormatFindings,
			Findings: []model.Finding{
				{Title: "Missing nil check", Detail: "dereference before validation"},
				{Title: "Stale cache entry"},
				{Title: "Race on the counter", Detail: "unsynchronized increment"},
			},
		},
	}, nil)

	exec, err := env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)
	require.Equal(model.ExecutionStatusAwaitingUser, exec.Status)

	// The user keeps the first and third finding but wants a deeper review.
	err = env.engine.Reject(ctx, exec.ID, model.UserDecision{
		SelectedIndices: []int{0, 2},
		Notes:           "review missed the storage layer",
	})
	require.NoError(err)

	_, err = env.engine.Retry(ctx, "task-1")
	require.NoError(err)

	var captured agent.Request
	env.runner.On("Run", mock.Anything, mock.Anything).Once().Run(func(args mock.Arguments) {
		captured = args.Get(1).(agent.Request)
	}).Return(&agent.Result{
		Raw: "review 2",
		Parsed: &model.ParsedOutput{
			Format: model.OutputFormatFindings,
			Findings: []model.Finding{
				{Title: "Missing nil check", Detail: "dereference before validation"},
				{Title: "Race on the counter", Detail: "unsynchronized increment"},
				{Title: "Unbounded retry loop"},
			},
		},
	}, nil)

	second, err := env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)
	require.Equal(model.ExecutionStatusAwaitingUser, second.Status)
	assert.Equal(2, second.Attempt)

	// The kept findings appear verbatim in the retry prompt, the dropped one
	// does not.
	assert.Contains(captured.Prompt, "- Missing nil check: dereference before validation")
	assert.Contains(captured.Prompt, "- Race on the counter: unsynchronized increment")
	assert.NotContains(captured.Prompt, "Stale cache entry")

	// Approving the second attempt folds its selected findings into the task
	// context in append mode.
	err = env.engine.Approve(ctx, second.ID, model.UserDecision{SelectedIndices: []int{0, 1}})
	require.NoError(err)

	task, err := env.repo.GetTask(ctx, "task-1")
	require.NoError(err)
	assert.Contains(task.Context, "### Code Review")
	assert.Contains(task.Context, "- Missing nil check: dereference before validation")
	assert.Contains(task.Context, "- Race on the counter: unsynchronized increment")
	assert.NotContains(task.Context, "Unbounded retry loop")
}

func TestRetryAfterRunnerError(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StageImplementation, catalog.StageMerge)

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	// First implementation attempt fails on an agent error.
	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(nil, errors.New("agent crashed"))
	_, err = env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)

	_, err = env.engine.Retry(ctx, "task-1")
	require.NoError(err)

	var captured agent.Request
	env.runner.On("Run", mock.Anything, mock.Anything).Once().Run(func(args mock.Arguments) {
		captured = args.Get(1).(agent.Request)
	}).Return(textResult("implemented"), nil)

	_, err = env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)

	// The implementation prompt renders the prior attempt block with the
	// agent error, the only thing the attempt produced.
	assert.Contains(captured.Prompt, "A previous attempt was rejected")
	assert.Contains(captured.Prompt, "agent crashed")
}

func TestTerminalStageCompletesTask(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StageMerge)

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	env.runner.On("Run", mock.Anything, mock.Anything).Once().Return(&agent.Result{
		Raw:    "merged",
		Parsed: &model.ParsedOutput{Format: model.OutputFormatMerge, Text: "merged"},
	}, nil)

	// Merge has no gating: the run approves itself and finishes the task.
	exec, err := env.engine.RunStage(ctx, "task-1", "")
	require.NoError(err)
	assert.Equal(model.ExecutionStatusApproved, exec.Status)

	task, err := env.repo.GetTask(ctx, "task-1")
	require.NoError(err)
	assert.Equal(model.TaskStatusCompleted, task.Status)
	assert.Empty(task.CurrentStageID)
}

func TestFailRunning(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StageResearch)

	require.NoError(env.repo.CreateExecution(ctx, model.StageExecution{
		ID: "exec-1", TaskID: "task-1", StageID: env.byName[catalog.StageResearch], Attempt: 1,
		Status: model.ExecutionStatusRunning, CreatedAt: time.Now().UTC(),
	}))

	err := env.engine.FailRunning(ctx, "exec-1", errors.New("process killed"))
	require.NoError(err)

	got, err := env.repo.GetExecution(ctx, "exec-1")
	require.NoError(err)
	assert.Equal(model.ExecutionStatusFailed, got.Status)
	assert.Equal("process killed", got.ErrorMessage)

	// Only running executions can be failed this way.
	err = env.engine.FailRunning(ctx, "exec-1", nil)
	assert.Error(err)
}

func TestEngineEvents(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	env := newTestEnv(t)
	env.newTask(t, "task-1", catalog.StageResearch, catalog.StagePlanning)

	ch := env.engine.Events()
	defer env.engine.Unsubscribe(ch)

	_, err := env.engine.StartTask(ctx, "task-1")
	require.NoError(err)

	var kinds []string
	for len(ch) > 0 {
		e := <-ch
		kinds = append(kinds, string(e.Kind))
	}
	assert.Contains(strings.Join(kinds, ","), "task_status_changed")
	assert.Contains(strings.Join(kinds, ","), "stage_status_changed")
}
