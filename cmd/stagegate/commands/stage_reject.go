package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/stagegate/stagegate/internal/model"
)

type StageRejectCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	executionID string
	reason      string
	selected    []int
}

// NewStageRejectCommand returns the stage reject command.
func NewStageRejectCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *StageRejectCommand {
	c := &StageRejectCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("reject", "Reject a stage execution that awaits the user.")
	c.Cmd.Arg("execution-id", "ID of the stage execution.").Required().StringVar(&c.executionID)
	c.Cmd.Flag("reason", "Why the output was rejected.").Short('r').Required().StringVar(&c.reason)
	c.Cmd.Flag("select", "Index of an item to keep for the next attempt (repeatable).").IntsVar(&c.selected)

	return c
}

func (c StageRejectCommand) Name() string { return c.Cmd.FullCommand() }

func (c StageRejectCommand) Run(ctx context.Context) error {
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

	err = eng.Reject(ctx, c.executionID, model.UserDecision{
		SelectedIndices: c.selected,
		Notes:           c.reason,
	})
	if err != nil {
		return fmt.Errorf("could not reject execution: %w", err)
	}

	exec, err := store.GetExecution(ctx, c.executionID)
	if err != nil {
		return fmt.Errorf("could not get execution: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Execution rejected\n")
	fmt.Fprintf(c.rootCmd.Stdout, "Retry the stage with 'stage retry %s'\n", exec.TaskID)

	return nil
}
