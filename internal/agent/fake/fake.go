package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/stagegate/stagegate/internal/agent"
	"github.com/stagegate/stagegate/internal/log"
	"github.com/stagegate/stagegate/internal/model"
)

// RunnerConfig is the configuration for the fake runner.
type RunnerConfig struct {
	Logger log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "agent.Fake"})
	return nil
}

// Runner is a fake implementation of agent.Runner. It produces deterministic
// canned output per format without calling a real agent, so pipelines can be
// driven end to end in tests and examples.
type Runner struct {
	mu     sync.Mutex
	runs   int
	err    error
	logger log.Logger
}

// NewRunner creates a new fake runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{logger: cfg.Logger}, nil
}

// SetError makes every subsequent Run fail with the given error. Passing nil
// restores normal behavior.
func (r *Runner) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Runs returns how many times Run has been called.
func (r *Runner) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

// Run executes the request and returns a canned result for its format.
func (r *Runner) Run(ctx context.Context, req agent.Request) (*agent.Result, error) {
	r.mu.Lock()
	r.runs++
	n := r.runs
	err := r.err
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.logger.Debugf("Fake run %d (format %s)", n, req.Format)

	parsed := cannedOutput(req.Format, n)
	return &agent.Result{
		Raw:    fmt.Sprintf("fake agent output for run %d", n),
		Parsed: parsed,
		Telemetry: model.Telemetry{
			InputTokens:  100 * n,
			OutputTokens: 50 * n,
			CostUSD:      0.01 * float64(n),
			DurationMS:   1500,
			Turns:        2,
		},
	}, nil
}

func cannedOutput(format model.OutputFormat, n int) *model.ParsedOutput {
	out := &model.ParsedOutput{Format: format}

	switch format {
	case model.OutputFormatOptions:
		out.Options = []string{"Option A", "Option B", "Option C"}
	case model.OutputFormatChecklist:
		out.ChecklistItems = []model.ChecklistItem{
			{Text: "First step", Checked: true},
			{Text: "Second step", Checked: true},
		}
	case model.OutputFormatStructured:
		out.Fields = map[string]string{"summary": fmt.Sprintf("structured result %d", n)}
	case model.OutputFormatPRPreparation:
		out.Fields = map[string]string{
			"title":       fmt.Sprintf("Change %d", n),
			"description": "Fake change description.",
			"branch":      fmt.Sprintf("change-%d", n),
		}
	case model.OutputFormatFindings, model.OutputFormatPRReview:
		out.Findings = []model.Finding{
			{Title: "Missing error check", Detail: "The return value is ignored."},
			{Title: "Unclear naming", Detail: "The variable name hides intent."},
		}
	case model.OutputFormatTaskSplitting:
		out.Subtasks = []model.ProposedSubtask{
			{Title: "Subtask one", Description: "First half of the work."},
			{Title: "Subtask two", Description: "Second half of the work."},
		}
	case model.OutputFormatResearch:
		out.Text = fmt.Sprintf("fake research output for run %d", n)
		out.Questions = []string{"Is the scope limited to the API layer?"}
	case model.OutputFormatPlan:
		out.Text = fmt.Sprintf("fake plan output for run %d", n)
		out.SuggestedStages = []string{"Documentation", "PR Preparation"}
	default:
		out.Text = fmt.Sprintf("fake text output for run %d", n)
	}

	return out
}
