package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/stagegate/stagegate/internal/app/projectcreate"
)

type ProjectCreateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name string
	path string
}

// NewProjectCreateCommand returns the project create command.
func NewProjectCreateCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ProjectCreateCommand {
	c := &ProjectCreateCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("create", "Create a new project with the default stage pipeline.")
	c.Cmd.Flag("name", "Name for the project.").Short('n').Required().StringVar(&c.name)
	c.Cmd.Flag("path", "Filesystem path of the project worktree.").StringVar(&c.path)

	return c
}

func (c ProjectCreateCommand) Name() string { return c.Cmd.FullCommand() }

func (c ProjectCreateCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	reg, err := newRegistry(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	svc, err := projectcreate.NewService(projectcreate.ServiceConfig{
		Repository: reg.App(),
		Stores:     registryStores{reg: reg},
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	project, err := svc.Create(ctx, projectcreate.CreateOptions{
		Name: c.name,
		Path: c.path,
	})
	if err != nil {
		return fmt.Errorf("could not create project: %w", err)
	}

	// New projects become the current project.
	if err := reg.App().SetSetting(ctx, settingCurrentProject, project.ID); err != nil {
		return fmt.Errorf("could not set current project: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Project created successfully!\n")
	fmt.Fprintf(c.rootCmd.Stdout, "  ID:   %s\n", project.ID)
	fmt.Fprintf(c.rootCmd.Stdout, "  Name: %s\n", project.Name)
	if project.Path != "" {
		fmt.Fprintf(c.rootCmd.Stdout, "  Path: %s\n", project.Path)
	}

	return nil
}
