package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type StageRetryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID string
}

// NewStageRetryCommand returns the stage retry command.
func NewStageRetryCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *StageRetryCommand {
	c := &StageRetryCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("retry", "Prepare a new attempt of the task's failed stage.")
	c.Cmd.Arg("task-id", "ID of the task.").Required().StringVar(&c.taskID)

	return c
}

func (c StageRetryCommand) Name() string { return c.Cmd.FullCommand() }

func (c StageRetryCommand) Run(ctx context.Context) error {
	reg, err := newRegistry(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	project, store, err := currentProject(ctx, reg, c.rootCmd)
	if err != nil {
		return err
	}

	eng, err := newEngine(c.rootCmd, project, store, "fake")
	if err != nil {
		return err
	}

	exec, err := eng.Retry(ctx, c.taskID)
	if err != nil {
		return fmt.Errorf("could not retry stage: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Attempt %d prepared\n", exec.Attempt)
	fmt.Fprintf(c.rootCmd.Stdout, "Run it with 'stage run %s'\n", c.taskID)

	return nil
}
