package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/stagegate/stagegate/internal/app/taskcreate"
)

type TaskCreateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	title       string
	description string
}

// NewTaskCreateCommand returns the task create command.
func NewTaskCreateCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *TaskCreateCommand {
	c := &TaskCreateCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("create", "Create a new task with the mandatory stage pipeline.")
	c.Cmd.Flag("title", "Title for the task.").Short('t').Required().StringVar(&c.title)
	c.Cmd.Flag("description", "Description of the work.").Short('d').StringVar(&c.description)

	return c
}

func (c TaskCreateCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskCreateCommand) Run(ctx context.Context) error {
	reg, err := newRegistry(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	_, store, err := currentProject(ctx, reg, c.rootCmd)
	if err != nil {
		return err
	}

	svc, err := taskcreate.NewService(taskcreate.ServiceConfig{
		Repository: store,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	task, err := svc.Create(ctx, taskcreate.CreateOptions{
		Title:       c.title,
		Description: c.description,
	})
	if err != nil {
		return fmt.Errorf("could not create task: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Task created successfully!\n")
	fmt.Fprintf(c.rootCmd.Stdout, "  ID:     %s\n", task.ID)
	fmt.Fprintf(c.rootCmd.Stdout, "  Title:  %s\n", task.Title)
	fmt.Fprintf(c.rootCmd.Stdout, "  Status: %s\n", task.Status)

	return nil
}
