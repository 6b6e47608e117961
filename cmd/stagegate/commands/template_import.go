package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/stagegate/stagegate/internal/app/templatesync"
)

type TemplateImportCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file string
}

// NewTemplateImportCommand returns the template import command.
func NewTemplateImportCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *TemplateImportCommand {
	c := &TemplateImportCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("import", "Import stage templates from YAML, upserting by name.")
	c.Cmd.Flag("file", "File to read from (defaults to stdin).").Short('f').StringVar(&c.file)

	return c
}

func (c TemplateImportCommand) Name() string { return c.Cmd.FullCommand() }

func (c TemplateImportCommand) Run(ctx context.Context) error {
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

	var r io.Reader = c.rootCmd.Stdin
	if c.file != "" {
		f, err := os.Open(c.file)
		if err != nil {
			return fmt.Errorf("could not open input file: %w", err)
		}
		defer f.Close()
		r = f
	}

	n, err := svc.Import(ctx, r)
	if err != nil {
		return fmt.Errorf("could not import templates: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Imported %d stage templates\n", n)

	return nil
}
