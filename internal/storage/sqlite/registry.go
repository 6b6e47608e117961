package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/stagegate/stagegate/internal/log"
)

// RegistryConfig is the configuration for the store registry.
type RegistryConfig struct {
	// DataDir is the root directory holding the app store and every
	// project store.
	DataDir string
	Logger  log.Logger
}

func (c *RegistryConfig) defaults() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	return nil
}

// Registry owns every open database handle: the app-wide store plus one
// project store per project, each with its own serialization gate. It is
// constructed once at process start and passed by reference to all callers;
// there is no ambient global state.
type Registry struct {
	dataDir string
	logger  log.Logger

	app *AppStore

	mu       sync.Mutex
	projects map[string]*Store
}

// NewRegistry creates the registry and opens the app-wide store.
func NewRegistry(ctx context.Context, cfg RegistryConfig) (*Registry, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app, err := OpenAppStore(ctx, AppStoreConfig{
		DBPath: filepath.Join(cfg.DataDir, "stagegate.db"),
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open app store: %w", err)
	}

	return &Registry{
		dataDir:  cfg.DataDir,
		logger:   cfg.Logger,
		app:      app,
		projects: map[string]*Store{},
	}, nil
}

// App returns the app-wide store.
func (r *Registry) App() *AppStore { return r.app }

// ProjectStore returns the store of a project, opening (and migrating) it on
// first use. Handles are cached: all callers of the same project share one
// serialization gate.
func (r *Registry) ProjectStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.projects[projectID]; ok {
		return store, nil
	}

	store, err := OpenStore(ctx, StoreConfig{
		DBPath: r.ProjectDBPath(projectID),
		Logger: r.logger.WithValues(log.Kv{"project": projectID}),
	})
	if err != nil {
		return nil, fmt.Errorf("could not open project store: %w", err)
	}

	r.projects[projectID] = store
	return store, nil
}

// ProjectDBPath returns the database file path of a project.
func (r *Registry) ProjectDBPath(projectID string) string {
	return filepath.Join(r.dataDir, "projects", projectID+".db")
}

// Close closes every open store.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, store := range r.projects {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("could not close project store %s: %w", id, err)
		}
		delete(r.projects, id)
	}
	if err := r.app.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("could not close app store: %w", err)
	}

	return firstErr
}
