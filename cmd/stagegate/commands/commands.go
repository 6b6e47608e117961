package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/model"
	"github.com/stagegate/stagegate/internal/printer"
	"github.com/stagegate/stagegate/internal/storage"
	"github.com/stagegate/stagegate/internal/storage/sqlite"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// settingCurrentProject is the app-wide setting holding the ID of the project
// commands operate on when --project is not given.
const settingCurrentProject = "current_project"

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	DataDir    string
	Project    string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDataDir := filepath.Join(homedir.HomeDir(), ".stagegate")
	app.Flag("data-dir", "Directory holding the application databases.").Envar("STAGEGATE_DATA_DIR").Default(defaultDataDir).StringVar(&c.DataDir)
	app.Flag("project", "Project to operate on (defaults to the current project).").Envar("STAGEGATE_PROJECT").StringVar(&c.Project)

	return c
}

// newRegistry opens the store registry for the configured data dir.
func newRegistry(ctx context.Context, rootCmd *RootCommand) (*sqlite.Registry, error) {
	reg, err := sqlite.NewRegistry(ctx, sqlite.RegistryConfig{
		DataDir: rootCmd.DataDir,
		Logger:  rootCmd.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open registry: %w", err)
	}

	return reg, nil
}

// currentProject resolves the project a command operates on: the --project
// flag when given, the current-project setting otherwise. It also opens the
// project's store.
func currentProject(ctx context.Context, reg *sqlite.Registry, rootCmd *RootCommand) (*model.Project, storage.ProjectStore, error) {
	app := reg.App()

	var project *model.Project
	if rootCmd.Project != "" {
		p, err := app.GetProjectByName(ctx, rootCmd.Project)
		if err != nil {
			return nil, nil, fmt.Errorf("could not get project %q: %w", rootCmd.Project, err)
		}
		project = p
	} else {
		id, err := app.GetSetting(ctx, settingCurrentProject)
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil, fmt.Errorf("no project selected, use --project or create one with 'project create'")
		}
		if err != nil {
			return nil, nil, fmt.Errorf("could not get current project setting: %w", err)
		}
		project, err = app.GetProject(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("could not get current project: %w", err)
		}
	}

	if project.Archived {
		return nil, nil, fmt.Errorf("project %q is archived", project.Name)
	}

	store, err := reg.ProjectStore(ctx, project.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open project store: %w", err)
	}

	return project, store, nil
}

// newPrinter returns the printer for an output format flag value.
func newPrinter(format string, w io.Writer) printer.Printer {
	switch format {
	case "json":
		return printer.NewJSONPrinter(w)
	default: // table
		return printer.NewTablePrinter(w)
	}
}

// registryStores adapts the registry to the project create service store
// opener contract.
type registryStores struct {
	reg *sqlite.Registry
}

func (r registryStores) ProjectStore(ctx context.Context, projectID string) (storage.ProjectStore, error) {
	return r.reg.ProjectStore(ctx, projectID)
}
