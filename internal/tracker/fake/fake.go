package fake

import (
	"context"
	"fmt"

	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/model"
	"github.com/stagegate/stagegate/internal/tracker"
)

// ClientConfig is the configuration for the fake tracker client.
type ClientConfig struct {
	// Issues are the canned issues served by the client. When empty a small
	// default set is used.
	Issues []tracker.Issue
	Logger log.Logger
}

func (c *ClientConfig) defaults() error {
	if len(c.Issues) == 0 {
		c.Issues = []tracker.Issue{
			{Key: "DEMO-1", Title: "Add login endpoint", Description: "Expose POST /login on the API.", URL: "https://tracker.example.com/DEMO-1"},
			{Key: "DEMO-2", Title: "Fix pagination off by one", Description: "The last page repeats the first item.", URL: "https://tracker.example.com/DEMO-2"},
		}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "tracker.Fake"})
	return nil
}

// Client is a fake implementation of tracker.Client serving canned issues,
// so issue import can be driven without a real tracker.
type Client struct {
	issues []tracker.Issue
	logger log.Logger
}

// NewClient creates a new fake tracker client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{issues: cfg.Issues, logger: cfg.Logger}, nil
}

// AssignedIssues returns every canned issue.
func (c *Client) AssignedIssues(ctx context.Context) ([]tracker.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	issues := make([]tracker.Issue, len(c.issues))
	copy(issues, c.issues)
	return issues, nil
}

// Issue returns the canned issue with the given key.
func (c *Client) Issue(ctx context.Context, key string) (*tracker.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, issue := range c.issues {
		if issue.Key == key {
			i := issue
			return &i, nil
		}
	}

	return nil, fmt.Errorf("issue %q: %w", key, model.ErrNotFound)
}
