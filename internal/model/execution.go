package model

import (
	"fmt"
	"time"
)

// ExecutionStatus represents the state of one stage execution attempt.
type ExecutionStatus string

const (
	// ExecutionStatusPending indicates the attempt was created but not dispatched.
	ExecutionStatusPending ExecutionStatus = "pending"
	// ExecutionStatusRunning indicates the agent is executing the stage.
	ExecutionStatusRunning ExecutionStatus = "running"
	// ExecutionStatusAwaitingUser indicates the gate rule needs a human decision.
	ExecutionStatusAwaitingUser ExecutionStatus = "awaiting_user"
	// ExecutionStatusApproved indicates the gate was satisfied.
	ExecutionStatusApproved ExecutionStatus = "approved"
	// ExecutionStatusFailed indicates an agent error or a rejected gate.
	ExecutionStatusFailed ExecutionStatus = "failed"
)

// Valid returns true if the execution status is a known value.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionStatusPending, ExecutionStatusRunning,
		ExecutionStatusAwaitingUser, ExecutionStatusApproved,
		ExecutionStatusFailed:
		return true
	}
	return false
}

// Terminal returns true when no further transition can happen on the attempt.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusApproved || s == ExecutionStatusFailed
}

// Telemetry carries the agent execution metrics of one attempt.
type Telemetry struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	DurationMS   int64
	Turns        int
}

// ChecklistItem is one entry of a checklist output.
type ChecklistItem struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// Finding is one entry of a findings output (e.g. a code review issue).
type Finding struct {
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// ProposedSubtask is one entry of a task-splitting output.
type ProposedSubtask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ParsedOutput is the structured result of a stage execution. It is a tagged
// union keyed by Format: only the payload of the matching variant is set.
type ParsedOutput struct {
	Format OutputFormat `json:"format"`

	Text            string            `json:"text,omitempty"`
	Options         []string          `json:"options,omitempty"`
	ChecklistItems  []ChecklistItem   `json:"checklist_items,omitempty"`
	Fields          map[string]string `json:"fields,omitempty"`
	Findings        []Finding         `json:"findings,omitempty"`
	Subtasks        []ProposedSubtask `json:"subtasks,omitempty"`
	Questions       []string          `json:"questions,omitempty"`
	SuggestedStages []string          `json:"suggested_stages,omitempty"`
}

// Validate checks the payload matches the declared format.
func (p *ParsedOutput) Validate() error {
	if !p.Format.Valid() {
		return fmt.Errorf("unknown output format %q: %w", p.Format, ErrNotValid)
	}

	switch p.Format {
	case OutputFormatOptions:
		if len(p.Options) == 0 {
			return fmt.Errorf("options output requires at least one option: %w", ErrNotValid)
		}
	case OutputFormatChecklist:
		if len(p.ChecklistItems) == 0 {
			return fmt.Errorf("checklist output requires at least one item: %w", ErrNotValid)
		}
	case OutputFormatStructured, OutputFormatPRPreparation:
		if len(p.Fields) == 0 {
			return fmt.Errorf("structured output requires fields: %w", ErrNotValid)
		}
	case OutputFormatTaskSplitting:
		if len(p.Subtasks) == 0 {
			return fmt.Errorf("task splitting output requires at least one subtask: %w", ErrNotValid)
		}
	}

	return nil
}

// SelectableItems returns the number of items a selection gate can pick from.
func (p *ParsedOutput) SelectableItems() int {
	switch p.Format {
	case OutputFormatOptions:
		return len(p.Options)
	case OutputFormatFindings, OutputFormatPRReview:
		return len(p.Findings)
	case OutputFormatTaskSplitting:
		return len(p.Subtasks)
	}
	return 0
}

// StageExecution is one execution attempt of a (task, stage) pair. Attempts
// are 1-indexed and monotonically increasing; rows are never deleted so the
// full audit trail survives.
type StageExecution struct {
	ID      string
	TaskID  string
	StageID string
	Attempt int

	Status ExecutionStatus

	InputPrompt  string // The fully rendered prompt actually sent to the agent.
	RawOutput    string
	ParsedOutput *ParsedOutput

	UserInput    string
	UserDecision string
	ErrorMessage string

	Telemetry Telemetry

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Validate validates the stage execution.
func (e *StageExecution) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}
	if e.TaskID == "" {
		return fmt.Errorf("task id is required: %w", ErrNotValid)
	}
	if e.StageID == "" {
		return fmt.Errorf("stage id is required: %w", ErrNotValid)
	}
	if e.Attempt < 1 {
		return fmt.Errorf("attempt must be >= 1: %w", ErrNotValid)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("unknown status %q: %w", e.Status, ErrNotValid)
	}
	return nil
}

// PRReviewFix tracks the fix state of one PR review comment.
type PRReviewFix struct {
	ID          string
	TaskID      string
	ExecutionID string
	CommentID   string
	Description string
	Selected    bool
	Fixed       bool
	CreatedAt   time.Time
}
