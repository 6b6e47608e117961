package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type ProjectListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	all    bool
	format string
}

// NewProjectListCommand returns the project list command.
func NewProjectListCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ProjectListCommand {
	c := &ProjectListCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("list", "List projects.")
	c.Cmd.Flag("all", "Include archived projects.").BoolVar(&c.all)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c ProjectListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ProjectListCommand) Run(ctx context.Context) error {
	reg, err := newRegistry(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	projects, err := reg.App().ListProjects(ctx, c.all)
	if err != nil {
		return fmt.Errorf("could not list projects: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if err := p.PrintProjectList(projects); err != nil {
		return fmt.Errorf("could not print projects: %w", err)
	}

	return nil
}
