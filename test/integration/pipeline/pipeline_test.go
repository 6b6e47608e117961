package pipeline_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagegate/stagegate/pkg/lib"
)

func newClient(t *testing.T) *lib.Client {
	t.Helper()

	client, err := lib.New(context.Background(), lib.Config{
		DataDir: t.TempDir(),
		Agent:   lib.AgentFake,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

// runUntilAwaiting runs stages until one waits for the user or the task ends.
func runUntilAwaiting(ctx context.Context, t *testing.T, client *lib.Client, projectID, taskID string) *lib.StageExecution {
	t.Helper()

	for i := 0; i < 20; i++ {
		task, err := client.GetTask(ctx, projectID, taskID)
		require.NoError(t, err)
		if task.Status != lib.TaskStatusPending && task.Status != lib.TaskStatusInProgress {
			return nil
		}

		exec, err := client.RunStage(ctx, projectID, taskID, "")
		require.NoError(t, err)
		if exec.Status == lib.ExecutionStatusAwaitingUser {
			return exec
		}
	}

	t.Fatal("pipeline did not reach an awaiting stage nor a terminal status")
	return nil
}

func TestTaskSplittingFlow(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := newClient(t)

	project, err := client.CreateProject(ctx, lib.CreateProjectOpts{Name: "split-demo"})
	require.NoError(err)
	task, err := client.CreateTask(ctx, project.ID, lib.CreateTaskOpts{Title: "Rework storage layer"})
	require.NoError(err)

	// Planning awaits first; pick the task splitting stage.
	exec := runUntilAwaiting(ctx, t, client, project.ID, task.ID)
	require.NotNil(exec)
	require.NoError(client.Approve(ctx, project.ID, exec.ID, lib.Decision{
		SelectedStages: []string{"Task Splitting"},
	}))

	// Next gate is the code review findings.
	exec = runUntilAwaiting(ctx, t, client, project.ID, task.ID)
	require.NotNil(exec)
	require.NotEmpty(exec.Parsed.Findings)
	require.NoError(client.Approve(ctx, project.ID, exec.ID, lib.Decision{SelectedIndices: []int{0}}))

	// Then the split proposal; keep both subtasks.
	exec = runUntilAwaiting(ctx, t, client, project.ID, task.ID)
	require.NotNil(exec)
	require.Len(exec.Parsed.Subtasks, 2)
	require.NoError(client.Approve(ctx, project.ID, exec.ID, lib.Decision{SelectedIndices: []int{0, 1}}))

	// The parent is replaced by two pending subtasks.
	parent, err := client.GetTask(ctx, project.ID, task.ID)
	require.NoError(err)
	assert.Equal(lib.TaskStatusSplit, parent.Status)

	tasks, err := client.ListTasks(ctx, project.ID, false)
	require.NoError(err)
	children := 0
	for _, child := range tasks {
		if child.ParentTaskID == task.ID {
			children++
			assert.Equal(lib.TaskStatusPending, child.Status)
		}
	}
	assert.Equal(2, children)
}

func TestSubtaskRunsItsOwnPipeline(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := newClient(t)

	project, err := client.CreateProject(ctx, lib.CreateProjectOpts{Name: "split-demo"})
	require.NoError(err)
	task, err := client.CreateTask(ctx, project.ID, lib.CreateTaskOpts{Title: "Rework storage layer"})
	require.NoError(err)

	exec := runUntilAwaiting(ctx, t, client, project.ID, task.ID)
	require.NotNil(exec)
	require.NoError(client.Approve(ctx, project.ID, exec.ID, lib.Decision{
		SelectedStages: []string{"Task Splitting"},
	}))
	exec = runUntilAwaiting(ctx, t, client, project.ID, task.ID)
	require.NotNil(exec)
	require.NoError(client.Approve(ctx, project.ID, exec.ID, lib.Decision{SelectedIndices: []int{0}}))
	exec = runUntilAwaiting(ctx, t, client, project.ID, task.ID)
	require.NotNil(exec)
	require.NoError(client.Approve(ctx, project.ID, exec.ID, lib.Decision{SelectedIndices: []int{0}}))

	tasks, err := client.ListTasks(ctx, project.ID, false)
	require.NoError(err)
	var child *lib.Task
	for i, candidate := range tasks {
		if candidate.ParentTaskID == task.ID {
			child = &tasks[i]
			break
		}
	}
	require.NotNil(child)

	// Drive the subtask to completion through its own mandatory pipeline.
	for {
		current, err := client.GetTask(ctx, project.ID, child.ID)
		require.NoError(err)
		if current.Status == lib.TaskStatusCompleted {
			break
		}
		require.Contains([]lib.TaskStatus{lib.TaskStatusPending, lib.TaskStatusInProgress}, current.Status)

		exec, err := client.RunStage(ctx, project.ID, child.ID, "")
		require.NoError(err)
		if exec.Status == lib.ExecutionStatusAwaitingUser {
			require.NoError(client.Approve(ctx, project.ID, exec.ID, lib.Decision{SelectedIndices: []int{0}}))
		}
	}

	completed, err := client.GetTask(ctx, project.ID, child.ID)
	require.NoError(err)
	assert.Equal(lib.TaskStatusCompleted, completed.Status)
}

func TestPRPreparationFlow(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := newClient(t)

	project, err := client.CreateProject(ctx, lib.CreateProjectOpts{Name: "pr-demo"})
	require.NoError(err)
	task, err := client.CreateTask(ctx, project.ID, lib.CreateTaskOpts{Title: "Add login endpoint"})
	require.NoError(err)

	// Planning: pick the PR preparation stage.
	exec := runUntilAwaiting(ctx, t, client, project.ID, task.ID)
	require.NotNil(exec)
	require.NoError(client.Approve(ctx, project.ID, exec.ID, lib.Decision{
		SelectedStages: []string{"PR Preparation"},
	}))

	// Code review findings.
	exec = runUntilAwaiting(ctx, t, client, project.ID, task.ID)
	require.NotNil(exec)
	require.NoError(client.Approve(ctx, project.ID, exec.ID, lib.Decision{SelectedIndices: []int{0}}))

	// PR preparation gates on the title/description/branch fields of the output.
	exec = runUntilAwaiting(ctx, t, client, project.ID, task.ID)
	require.NotNil(exec)
	require.NotNil(exec.Parsed)
	assert.NotEmpty(exec.Parsed.Fields["title"])
	assert.NotEmpty(exec.Parsed.Fields["branch"])
	require.NoError(client.Approve(ctx, project.ID, exec.ID, lib.Decision{}))

	// The remaining stages run through and the task completes.
	exec = runUntilAwaiting(ctx, t, client, project.ID, task.ID)
	require.Nil(exec)

	done, err := client.GetTask(ctx, project.ID, task.ID)
	require.NoError(err)
	assert.Equal(lib.TaskStatusCompleted, done.Status)
}

func TestTemplateSyncAcrossProjects(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := newClient(t)

	source, err := client.CreateProject(ctx, lib.CreateProjectOpts{Name: "source"})
	require.NoError(err)
	target, err := client.CreateProject(ctx, lib.CreateProjectOpts{Name: "target"})
	require.NoError(err)

	var buf bytes.Buffer
	require.NoError(client.ExportTemplates(ctx, source.ID, &buf))

	n, err := client.ImportTemplates(ctx, target.ID, &buf)
	require.NoError(err)
	assert.Equal(9, n)

	// Imported templates keep the target's pipeline consistent by name.
	sourceTemplates, err := client.ListStageTemplates(ctx, source.ID)
	require.NoError(err)
	targetTemplates, err := client.ListStageTemplates(ctx, target.ID)
	require.NoError(err)
	require.Equal(len(sourceTemplates), len(targetTemplates))
	for i := range sourceTemplates {
		assert.Equal(sourceTemplates[i].Name, targetTemplates[i].Name)
		assert.Equal(sourceTemplates[i].SortOrder, targetTemplates[i].SortOrder)
	}
}
