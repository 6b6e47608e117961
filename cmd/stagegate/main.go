package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/stagegate/stagegate/cmd/stagegate/commands"
	"github.com/stagegate/stagegate/internal/log"
	loglogrus "github.com/stagegate/stagegate/internal/log/logrus"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	app := kingpin.New("stagegate", "Human-gated AI pipeline coordinator.")
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	// Project subcommands share a parent command.
	projectCmd := app.Command("project", "Manage projects.")
	projectCreateCmd := commands.NewProjectCreateCommand(rootCmd, projectCmd)
	projectListCmd := commands.NewProjectListCommand(rootCmd, projectCmd)
	projectArchiveCmd := commands.NewProjectArchiveCommand(rootCmd, projectCmd)

	// Template subcommands share a parent command.
	templateCmd := app.Command("template", "Manage stage templates.")
	templateListCmd := commands.NewTemplateListCommand(rootCmd, templateCmd)
	templateExportCmd := commands.NewTemplateExportCommand(rootCmd, templateCmd)
	templateImportCmd := commands.NewTemplateImportCommand(rootCmd, templateCmd)

	// Task subcommands share a parent command.
	taskCmd := app.Command("task", "Manage tasks.")
	taskCreateCmd := commands.NewTaskCreateCommand(rootCmd, taskCmd)
	taskListCmd := commands.NewTaskListCommand(rootCmd, taskCmd)
	taskStatusCmd := commands.NewTaskStatusCommand(rootCmd, taskCmd)
	taskImportCmd := commands.NewTaskImportCommand(rootCmd, taskCmd)

	// Stage subcommands share a parent command.
	stageCmd := app.Command("stage", "Drive stage executions.")
	stageRunCmd := commands.NewStageRunCommand(rootCmd, stageCmd)
	stageApproveCmd := commands.NewStageApproveCommand(rootCmd, stageCmd)
	stageRejectCmd := commands.NewStageRejectCommand(rootCmd, stageCmd)
	stageRetryCmd := commands.NewStageRetryCommand(rootCmd, stageCmd)

	cmds := map[string]commands.Command{
		projectCreateCmd.Name():  projectCreateCmd,
		projectListCmd.Name():    projectListCmd,
		projectArchiveCmd.Name(): projectArchiveCmd,
		templateListCmd.Name():   templateListCmd,
		templateExportCmd.Name(): templateExportCmd,
		templateImportCmd.Name(): templateImportCmd,
		taskCreateCmd.Name():     taskCreateCmd,
		taskListCmd.Name():       taskListCmd,
		taskStatusCmd.Name():     taskStatusCmd,
		taskImportCmd.Name():     taskImportCmd,
		stageRunCmd.Name():       stageRunCmd,
		stageApproveCmd.Name():   stageApproveCmd,
		stageRejectCmd.Name():    stageRejectCmd,
		stageRetryCmd.Name():     stageRetryCmd,
	}

	// Parse command.
	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Set standard input/output.
	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Auto-suppress logging for commands that produce structured output (table/JSON)
	// to prevent log noise from mixing with printer output in the terminal.
	// Users can still enable logging with --debug.
	printerCommands := map[string]bool{
		"project list":    true,
		"template list":   true,
		"template export": true,
		"task list":       true,
		"task status":     true,
		"task import":     true,
	}
	if printerCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}

	// Set logger.
	rootCmd.Logger = getLogger(ctx, *rootCmd)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				rootCmd.Logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				err := cmds[cmdName].Run(ctx)
				if err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger.
func getLogger(ctx context.Context, config commands.RootCommand) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	// If logger not disabled use logrus logger.
	logrusLog := logrus.New()
	logrusLog.Out = config.Stderr // By default logger goes to stderr (so it can split stdout prints).
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	// Log format.
	switch config.LoggerType {
	case commands.LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor,
			DisableColors: config.NoColor,
		})
	case commands.LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
