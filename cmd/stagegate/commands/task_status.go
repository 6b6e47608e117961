package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type TaskStatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID string
	format string
}

// NewTaskStatusCommand returns the task status command.
func NewTaskStatusCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *TaskStatusCommand {
	c := &TaskStatusCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("status", "Show a task and its stage execution history.")
	c.Cmd.Arg("task-id", "ID of the task.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c TaskStatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskStatusCommand) Run(ctx context.Context) error {
	reg, err := newRegistry(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	_, store, err := currentProject(ctx, reg, c.rootCmd)
	if err != nil {
		return err
	}

	task, err := store.GetTask(ctx, c.taskID)
	if err != nil {
		return fmt.Errorf("could not get task: %w", err)
	}

	executions, err := store.ListExecutions(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("could not list executions: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if err := p.PrintTaskStatus(*task, executions); err != nil {
		return fmt.Errorf("could not print task status: %w", err)
	}

	return nil
}
