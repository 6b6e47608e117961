package agent

import (
	"context"

	"github.com/stagegate/stagegate/internal/model"
)

// Request is one stage execution request sent to the agent.
type Request struct {
	// Prompt is the fully rendered prompt text.
	Prompt string
	// AllowedTools restricts the tools the agent may use. Empty means all.
	AllowedTools []string
	// SessionID resumes a previous agent session when not empty.
	SessionID string
	// Format is the output format the agent is instructed to produce.
	Format model.OutputFormat
}

// Result is the outcome of one agent run.
type Result struct {
	Raw       string
	Parsed    *model.ParsedOutput
	Telemetry model.Telemetry
}

// Runner is the interface for executing one stage prompt against an AI agent.
// Implementations live outside this repository; tests and examples use the
// fake runner.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}
