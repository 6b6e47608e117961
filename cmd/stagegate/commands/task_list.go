package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type TaskListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	all    bool
	format string
}

// NewTaskListCommand returns the task list command.
func NewTaskListCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *TaskListCommand {
	c := &TaskListCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("list", "List tasks.")
	c.Cmd.Flag("all", "Include archived tasks.").BoolVar(&c.all)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c TaskListCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskListCommand) Run(ctx context.Context) error {
	reg, err := newRegistry(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	_, store, err := currentProject(ctx, reg, c.rootCmd)
	if err != nil {
		return err
	}

	tasks, err := store.ListTasks(ctx, c.all)
	if err != nil {
		return fmt.Errorf("could not list tasks: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if err := p.PrintTaskList(tasks); err != nil {
		return fmt.Errorf("could not print tasks: %w", err)
	}

	return nil
}
