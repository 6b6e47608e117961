package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/stagegate/stagegate/internal/app/projectarchive"
)

type ProjectArchiveCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name string
}

// NewProjectArchiveCommand returns the project archive command.
func NewProjectArchiveCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ProjectArchiveCommand {
	c := &ProjectArchiveCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("archive", "Archive a project (data is kept).")
	c.Cmd.Arg("name", "Name of the project to archive.").Required().StringVar(&c.name)

	return c
}

func (c ProjectArchiveCommand) Name() string { return c.Cmd.FullCommand() }

func (c ProjectArchiveCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	reg, err := newRegistry(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	project, err := reg.App().GetProjectByName(ctx, c.name)
	if err != nil {
		return fmt.Errorf("could not get project %q: %w", c.name, err)
	}

	svc, err := projectarchive.NewService(projectarchive.ServiceConfig{
		Repository: reg.App(),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if err := svc.Archive(ctx, project.ID); err != nil {
		return fmt.Errorf("could not archive project: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Project %q archived\n", c.name)

	return nil
}
