package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/stagegate/stagegate/internal/agent"
	agentfake "github.com/stagegate/stagegate/internal/agent/fake"
	"github.com/stagegate/stagegate/internal/engine"
	"github.com/stagegate/stagegate/internal/model"
	"github.com/stagegate/stagegate/internal/storage"
)

type StageRunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID    string
	input     string
	agentType string
}

// NewStageRunCommand returns the stage run command.
func NewStageRunCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *StageRunCommand {
	c := &StageRunCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("run", "Run the task's current stage.")
	c.Cmd.Arg("task-id", "ID of the task.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("input", "Extra user input for the stage prompt.").Short('i').StringVar(&c.input)
	c.Cmd.Flag("agent", "Agent type (fake).").Default("fake").EnumVar(&c.agentType, "fake")

	return c
}

func (c StageRunCommand) Name() string { return c.Cmd.FullCommand() }

func (c StageRunCommand) Run(ctx context.Context) error {
	reg, err := newRegistry(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	project, store, err := currentProject(ctx, reg, c.rootCmd)
	if err != nil {
		return err
	}

	eng, err := newEngine(c.rootCmd, project, store, c.agentType)
	if err != nil {
		return err
	}

	// Pending tasks start their pipeline on the first run.
	task, err := store.GetTask(ctx, c.taskID)
	if err != nil {
		return fmt.Errorf("could not get task: %w", err)
	}
	if task.Status == model.TaskStatusPending {
		if _, err := eng.StartTask(ctx, task.ID); err != nil {
			return fmt.Errorf("could not start task: %w", err)
		}
	}

	exec, err := eng.RunStage(ctx, c.taskID, c.input)
	if err != nil {
		return fmt.Errorf("could not run stage: %w", err)
	}

	tpl, err := store.GetStageTemplate(ctx, exec.StageID)
	if err != nil {
		return fmt.Errorf("could not get stage template: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Stage:   %s (attempt %d)\n", tpl.Name, exec.Attempt)
	fmt.Fprintf(c.rootCmd.Stdout, "Status:  %s\n", exec.Status)
	switch exec.Status {
	case model.ExecutionStatusAwaitingUser:
		fmt.Fprintf(c.rootCmd.Stdout, "\n%s\n", exec.RawOutput)
		fmt.Fprintf(c.rootCmd.Stdout, "\nReview the output and decide with 'stage approve %s' or 'stage reject %s'\n", exec.ID, exec.ID)
	case model.ExecutionStatusFailed:
		fmt.Fprintf(c.rootCmd.Stdout, "Error:   %s\n", exec.ErrorMessage)
		fmt.Fprintf(c.rootCmd.Stdout, "\nRetry with 'stage retry %s'\n", c.taskID)
	}

	return nil
}

// newEngine builds the pipeline engine for a project. The VCS client is left
// unset: commit and PR side effects are logged and skipped.
func newEngine(rootCmd *RootCommand, project *model.Project, store storage.ProjectStore, agentType string) (*engine.Engine, error) {
	var runner agent.Runner
	var err error
	switch agentType {
	case "fake":
		runner, err = agentfake.NewRunner(agentfake.RunnerConfig{Logger: rootCmd.Logger})
	}
	if err != nil {
		return nil, fmt.Errorf("could not create agent runner: %w", err)
	}

	eng, err := engine.NewEngine(engine.ServiceConfig{
		Repository:  store,
		Runner:      runner,
		ProjectName: project.Name,
		ProjectPath: project.Path,
		Logger:      rootCmd.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	return eng, nil
}
