package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/stagegate/stagegate/internal/model"
)

type StageApproveCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	executionID string
	selected    []int
	checked     []int
	stages      []string
	notes       string
}

// NewStageApproveCommand returns the stage approve command.
func NewStageApproveCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *StageApproveCommand {
	c := &StageApproveCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("approve", "Approve a stage execution that awaits the user.")
	c.Cmd.Arg("execution-id", "ID of the stage execution.").Required().StringVar(&c.executionID)
	c.Cmd.Flag("select", "Index of a selected item (repeatable).").IntsVar(&c.selected)
	c.Cmd.Flag("check", "Index of a checked checklist item (repeatable).").IntsVar(&c.checked)
	c.Cmd.Flag("stage", "Stage name overriding the suggested stages (repeatable).").StringsVar(&c.stages)
	c.Cmd.Flag("notes", "Free-form notes passed to the next stage.").StringVar(&c.notes)

	return c
}

func (c StageApproveCommand) Name() string { return c.Cmd.FullCommand() }

func (c StageApproveCommand) Run(ctx context.Context) error {
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

	err = eng.Approve(ctx, c.executionID, model.UserDecision{
		Approved:        true,
		SelectedIndices: c.selected,
		CheckedIndices:  c.checked,
		SelectedStages:  c.stages,
		Notes:           c.notes,
	})
	if err != nil {
		return fmt.Errorf("could not approve execution: %w", err)
	}

	exec, err := store.GetExecution(ctx, c.executionID)
	if err != nil {
		return fmt.Errorf("could not get execution: %w", err)
	}
	task, err := store.GetTask(ctx, exec.TaskID)
	if err != nil {
		return fmt.Errorf("could not get task: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Execution approved\n")
	if task.Status == model.TaskStatusCompleted {
		fmt.Fprintf(c.rootCmd.Stdout, "Task completed!\n")
		return nil
	}
	if task.Status == model.TaskStatusSplit {
		fmt.Fprintf(c.rootCmd.Stdout, "Task split into subtasks, see 'task list'\n")
		return nil
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Continue with 'stage run %s'\n", task.ID)

	return nil
}
