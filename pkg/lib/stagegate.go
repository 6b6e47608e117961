package lib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stagegate/stagegate/internal/agent"
	agentfake "github.com/stagegate/stagegate/internal/agent/fake"
	"github.com/stagegate/stagegate/internal/engine"
	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/model"
	"github.com/stagegate/stagegate/internal/notify"
	"github.com/stagegate/stagegate/internal/storage"
	"github.com/stagegate/stagegate/internal/storage/sqlite"
	"github.com/stagegate/stagegate/internal/tracker"
	trackerfake "github.com/stagegate/stagegate/internal/tracker/fake"
)

const defaultDataDir = ".stagegate"

// SDK sentinel errors. All methods return errors that can be inspected
// with [errors.Is].
var (
	// ErrNotFound means the resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists means a resource with the same identity already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid means the input or operation is invalid.
	ErrNotValid = errors.New("not valid")
	// ErrGateNotSatisfied means the user decision violates the stage's gate rule.
	ErrGateNotSatisfied = errors.New("gate not satisfied")
	// ErrStageActive means the stage already has a running or awaiting attempt.
	ErrStageActive = errors.New("stage already active")
)

// AgentType identifies the agent runner implementation.
type AgentType string

const (
	// AgentFake produces deterministic canned output (no real agent).
	// Use this for testing and for driving pipelines without an AI backend.
	AgentFake AgentType = "fake"
)

// TrackerType identifies the issue tracker client implementation.
type TrackerType string

const (
	// TrackerFake serves canned issues (no real tracker).
	TrackerFake TrackerType = "fake"
)

// Config configures the SDK client.
//
// All fields are optional and have sensible defaults. At minimum, an empty
// Config{} will use ~/.stagegate for storage and the fake agent.
type Config struct {
	// DataDir is the base directory holding the app database and one
	// database per project.
	// Default: ~/.stagegate.
	DataDir string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger

	// Agent selects the agent runner used by stage executions.
	// Default: [AgentFake].
	Agent AgentType

	// Tracker selects the issue tracker client used by issue import.
	// Default: [TrackerFake].
	Tracker TrackerType
}

func (c *Config) defaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, defaultDataDir)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	if c.Agent == "" {
		c.Agent = AgentFake
	}

	if c.Tracker == "" {
		c.Tracker = TrackerFake
	}

	return nil
}

// Client is the main SDK entry point for driving gated pipelines
// programmatically.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	reg         *sqlite.Registry
	notifier    *notify.Broadcaster
	logger      log.Logger
	agentType   AgentType
	trackerType TrackerType
}

// New creates a new SDK client backed by SQLite databases under the data dir.
//
// The caller must call [Client.Close] when done to release the database
// connections. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	reg, err := sqlite.NewRegistry(ctx, sqlite.RegistryConfig{
		DataDir: cfg.DataDir,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open registry: %w", err)
	}

	notifier, err := notify.NewBroadcaster(notify.BroadcasterConfig{Logger: cfg.Logger})
	if err != nil {
		_ = reg.Close()
		return nil, fmt.Errorf("could not create notifier: %w", err)
	}

	return &Client{
		reg:         reg,
		notifier:    notifier,
		logger:      cfg.Logger,
		agentType:   cfg.Agent,
		trackerType: cfg.Tracker,
	}, nil
}

// Close releases resources held by the client, including the database
// connections. After Close returns, the client must not be used.
func (c *Client) Close() error {
	return c.reg.Close()
}

// projectStore resolves a project and opens its store.
func (c *Client) projectStore(ctx context.Context, projectID string) (*model.Project, storage.ProjectStore, error) {
	p, err := c.reg.App().GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	store, err := c.reg.ProjectStore(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}

	return p, store, nil
}

// newEngine builds the pipeline engine for a project. Engines are created
// per-operation; the event broadcaster is shared so subscriptions outlive
// single operations.
func (c *Client) newEngine(ctx context.Context, projectID string) (*engine.Engine, storage.ProjectStore, error) {
	p, store, err := c.projectStore(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	runner, err := c.newRunner()
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.NewEngine(engine.ServiceConfig{
		Repository:  store,
		Runner:      runner,
		Notifier:    c.notifier,
		ProjectName: p.Name,
		ProjectPath: p.Path,
		Logger:      c.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create engine: %w", err)
	}

	return eng, store, nil
}

// newRunner creates the agent runner for stage executions.
func (c *Client) newRunner() (agent.Runner, error) {
	switch c.agentType {
	case AgentFake:
		return agentfake.NewRunner(agentfake.RunnerConfig{Logger: c.logger})
	default:
		return nil, fmt.Errorf("unsupported agent type: %s: %w", c.agentType, ErrNotValid)
	}
}

// newTracker creates the issue tracker client, wrapped with the retry policy.
func (c *Client) newTracker() (tracker.Client, error) {
	var client tracker.Client
	var err error
	switch c.trackerType {
	case TrackerFake:
		client, err = trackerfake.NewClient(trackerfake.ClientConfig{Logger: c.logger})
	default:
		return nil, fmt.Errorf("unsupported tracker type: %s: %w", c.trackerType, ErrNotValid)
	}
	if err != nil {
		return nil, fmt.Errorf("could not create tracker client: %w", err)
	}

	retry, err := tracker.NewRetry(tracker.RetryConfig{
		Client: client,
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create tracker retry: %w", err)
	}

	return retry, nil
}
