package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/alecthomas/kingpin/v2"

	"github.com/stagegate/stagegate/internal/app/taskcreate"
	"github.com/stagegate/stagegate/internal/app/taskimport"
	"github.com/stagegate/stagegate/internal/tracker"
	trackerfake "github.com/stagegate/stagegate/internal/tracker/fake"
)

type TaskImportCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	key         string
	trackerType string
}

// NewTaskImportCommand returns the task import command.
func NewTaskImportCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *TaskImportCommand {
	c := &TaskImportCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("import", "Import an issue-tracker issue as a task. Without a key, lists the assigned issues.")
	c.Cmd.Arg("key", "Key of the issue to import.").StringVar(&c.key)
	c.Cmd.Flag("tracker", "Tracker type (fake).").Default("fake").EnumVar(&c.trackerType, "fake")

	return c
}

func (c TaskImportCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskImportCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	reg, err := newRegistry(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	_, store, err := currentProject(ctx, reg, c.rootCmd)
	if err != nil {
		return err
	}

	// Initialize tracker client based on config.
	var client tracker.Client
	switch c.trackerType {
	case "fake":
		client, err = trackerfake.NewClient(trackerfake.ClientConfig{Logger: logger})
	}
	if err != nil {
		return fmt.Errorf("could not create tracker client: %w", err)
	}

	retry, err := tracker.NewRetry(tracker.RetryConfig{
		Client: client,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create tracker retry: %w", err)
	}

	creator, err := taskcreate.NewService(taskcreate.ServiceConfig{
		Repository: store,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create task service: %w", err)
	}

	svc, err := taskimport.NewService(taskimport.ServiceConfig{
		Tracker: retry,
		Creator: creator,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if c.key == "" {
		issues, err := svc.AssignedIssues(ctx)
		if err != nil {
			return fmt.Errorf("could not list assigned issues: %w", err)
		}

		tw := tabwriter.NewWriter(c.rootCmd.Stdout, 0, 0, 2, ' ', 0)
		defer tw.Flush()
		fmt.Fprintln(tw, "KEY\tTITLE\tURL")
		for _, issue := range issues {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", issue.Key, issue.Title, issue.URL)
		}
		return nil
	}

	task, err := svc.Import(ctx, c.key)
	if err != nil {
		return fmt.Errorf("could not import issue: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Task imported successfully!\n")
	fmt.Fprintf(c.rootCmd.Stdout, "  ID:    %s\n", task.ID)
	fmt.Fprintf(c.rootCmd.Stdout, "  Title: %s\n", task.Title)

	return nil
}
