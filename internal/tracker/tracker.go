package tracker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/stagegate/stagegate/internal/log"
)

// Issue is one issue of an external tracker assigned to the user.
type Issue struct {
	Key         string
	Title       string
	Description string
	URL         string
}

// StatusError is a tracker API error carrying the HTTP status code.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tracker returned status %d: %s", e.StatusCode, e.Message)
}

// Client is the interface for issue tracker access. Implementations live
// outside this repository.
type Client interface {
	// AssignedIssues returns the issues assigned to the authenticated user.
	AssignedIssues(ctx context.Context) ([]Issue, error)
	// Issue returns one issue by key.
	Issue(ctx context.Context, key string) (*Issue, error)
}

// RetryConfig is the configuration for the retry decorator.
type RetryConfig struct {
	Client Client
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseBackoff is the backoff of the first retry, doubled each retry.
	BaseBackoff time.Duration
	// MaxBackoff caps the backoff growth.
	MaxBackoff time.Duration
	Logger     log.Logger
}

func (c *RetryConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BaseBackoff == 0 {
		c.BaseBackoff = 250 * time.Millisecond
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "tracker.Retry"})
	return nil
}

// Retry decorates a Client with bounded exponential backoff. Network errors,
// rate limits (429) and server errors (5xx) are retried; auth failures (401)
// and other client errors are not.
type Retry struct {
	client      Client
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logger      log.Logger
}

// NewRetry creates a new retry decorator.
func NewRetry(cfg RetryConfig) (*Retry, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Retry{
		client:      cfg.Client,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		maxBackoff:  cfg.MaxBackoff,
		logger:      cfg.Logger,
	}, nil
}

// AssignedIssues satisfies the Client interface.
func (r *Retry) AssignedIssues(ctx context.Context) ([]Issue, error) {
	var issues []Issue
	err := r.do(ctx, func() error {
		var err error
		issues, err = r.client.AssignedIssues(ctx)
		return err
	})
	return issues, err
}

// Issue satisfies the Client interface.
func (r *Retry) Issue(ctx context.Context, key string) (*Issue, error) {
	var issue *Issue
	err := r.do(ctx, func() error {
		var err error
		issue, err = r.client.Issue(ctx, key)
		return err
	})
	return issue, err
}

func (r *Retry) do(ctx context.Context, fn func() error) error {
	backoff := r.baseBackoff
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !retryable(err) || attempt >= r.maxRetries {
			return err
		}

		r.logger.Warningf("Tracker call failed (attempt %d), retrying in %s: %v", attempt+1, backoff, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}
}

func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 429 || statusErr.StatusCode >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
