package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type TemplateListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewTemplateListCommand returns the template list command.
func NewTemplateListCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *TemplateListCommand {
	c := &TemplateListCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("list", "List the project's stage templates in pipeline order.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c TemplateListCommand) Name() string { return c.Cmd.FullCommand() }

func (c TemplateListCommand) Run(ctx context.Context) error {
	reg, err := newRegistry(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	_, store, err := currentProject(ctx, reg, c.rootCmd)
	if err != nil {
		return err
	}

	templates, err := store.ListStageTemplates(ctx)
	if err != nil {
		return fmt.Errorf("could not list stage templates: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if err := p.PrintTemplateList(templates); err != nil {
		return fmt.Errorf("could not print stage templates: %w", err)
	}

	return nil
}
