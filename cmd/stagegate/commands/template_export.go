package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/stagegate/stagegate/internal/app/templatesync"
)

type TemplateExportCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	output string
}

// NewTemplateExportCommand returns the template export command.
func NewTemplateExportCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *TemplateExportCommand {
	c := &TemplateExportCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("export", "Export the project's stage templates as YAML.")
	c.Cmd.Flag("output", "File to write to (defaults to stdout).").Short('o').StringVar(&c.output)

	return c
}

func (c TemplateExportCommand) Name() string { return c.Cmd.FullCommand() }

func (c TemplateExportCommand) Run(ctx context.Context) error {
	reg, err := newRegistry(ctx, c.rootCmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	_, store, err := currentProject(ctx, reg, c.rootCmd)
	if err != nil {
		return err
	}

	svc, err := templatesync.NewService(templatesync.ServiceConfig{
		Repository: store,
		Logger:     c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	var w io.Writer = c.rootCmd.Stdout
	if c.output != "" {
		f, err := os.Create(c.output)
		if err != nil {
			return fmt.Errorf("could not create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := svc.Export(ctx, w); err != nil {
		return fmt.Errorf("could not export templates: %w", err)
	}

	return nil
}
