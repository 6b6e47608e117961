package lib

import (
	"time"

	"github.com/stagegate/stagegate/internal/model"
)

// TaskStatus represents the lifecycle state of a task.
//
// The typical lifecycle is:
//
//	pending -> in_progress -> completed
//
// A task can also end failed, or split when a task-splitting stage replaced
// it with subtasks.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started its pipeline yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is moving through its stages.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task finished its terminal stage.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task ended with an unrecoverable error.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSplit indicates the task was replaced by subtasks.
	TaskStatusSplit TaskStatus = "split"
)

// ExecutionStatus represents the lifecycle state of one stage attempt.
type ExecutionStatus string

const (
	// ExecutionStatusPending indicates the attempt has not run yet.
	ExecutionStatusPending ExecutionStatus = "pending"
	// ExecutionStatusRunning indicates the agent is working on the attempt.
	ExecutionStatusRunning ExecutionStatus = "running"
	// ExecutionStatusAwaitingUser indicates the output waits for a human decision.
	ExecutionStatusAwaitingUser ExecutionStatus = "awaiting_user"
	// ExecutionStatusApproved indicates the output was accepted.
	ExecutionStatusApproved ExecutionStatus = "approved"
	// ExecutionStatusFailed indicates the attempt was rejected or errored.
	ExecutionStatusFailed ExecutionStatus = "failed"
)

// Project represents a project returned by the SDK.
type Project struct {
	// ID is the unique identifier (ULID) assigned at creation.
	ID string
	// Name is the human-friendly name. Unique across projects.
	Name string
	// Path is the working directory of the project repository.
	Path string
	// Archived indicates the project is hidden from normal listings.
	Archived bool
	// CreatedAt is when the project was created.
	CreatedAt time.Time
}

// Task represents a unit of work moving through the stage pipeline.
//
// This is a read-only snapshot of the task state at the time of the API call.
type Task struct {
	// ID is the unique identifier (ULID) assigned at creation.
	ID string
	// ParentTaskID is set when a task-splitting stage created this task.
	ParentTaskID string
	// Title is the short description of the work.
	Title string
	// Description is the long-form description of the work.
	Description string
	// Context is the accumulated output context of approved stages.
	Context string
	// Status is the current lifecycle state.
	Status TaskStatus
	// CurrentStageID references the active stage template, empty before the
	// task starts and after it ends.
	CurrentStageID string
	// CreatedAt is when the task was created.
	CreatedAt time.Time
	// UpdatedAt is when the task last changed.
	UpdatedAt time.Time
}

// StageTemplate describes one stage of a project's pipeline.
type StageTemplate struct {
	// ID is the unique identifier (ULID).
	ID string
	// Name is the stage name. Unique within a project.
	Name string
	// Description explains what the stage does.
	Description string
	// SortOrder defines the pipeline order (gaps legal).
	SortOrder int
	// OutputFormat is the structured output contract of the stage.
	OutputFormat string
	// Optional stages join a task pipeline only via stage selection.
	Optional bool
	// CommitsChanges marks stages whose approval commits the worktree.
	CommitsChanges bool
	// CreatesPR marks stages whose approval opens a pull request.
	CreatesPR bool
	// TriggersStageSelection marks stages whose approval rebuilds the
	// task's stage list from the suggested or selected stages.
	TriggersStageSelection bool
	// RequiresUserInput marks stages that always wait for the user.
	RequiresUserInput bool
	// IsTerminal marks the stage that completes the task.
	IsTerminal bool
}

// Telemetry contains the agent usage metrics of one stage attempt.
type Telemetry struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	DurationMS   int64
	Turns        int
}

// ChecklistItem is one entry of a checklist output.
type ChecklistItem struct {
	Text    string
	Checked bool
}

// Finding is one entry of a findings output (e.g. a code review issue).
type Finding struct {
	Title    string
	Detail   string
	Selected bool
}

// ProposedSubtask is one entry of a task-splitting output.
type ProposedSubtask struct {
	Title       string
	Description string
}

// ParsedOutput is the structured payload of a stage attempt, shaped by its
// output format. Only the fields matching the format are set.
type ParsedOutput struct {
	Format          string
	Text            string
	Options         []string
	ChecklistItems  []ChecklistItem
	Fields          map[string]string
	Findings        []Finding
	Subtasks        []ProposedSubtask
	Questions       []string
	SuggestedStages []string
}

// StageExecution represents one attempt of a stage on a task.
//
// This is a read-only snapshot of the execution state at the time of the
// API call.
type StageExecution struct {
	// ID is the unique identifier (ULID).
	ID string
	// TaskID is the task this attempt belongs to.
	TaskID string
	// StageID is the stage template this attempt executes.
	StageID string
	// Attempt is the 1-based attempt counter for the (task, stage) pair.
	Attempt int
	// Status is the current lifecycle state.
	Status ExecutionStatus
	// RawOutput is the raw agent output of the attempt.
	RawOutput string
	// Parsed is the structured output. Nil until the agent ran.
	Parsed *ParsedOutput
	// ErrorMessage holds the rejection reason or run error, if any.
	ErrorMessage string
	// Telemetry contains the agent usage metrics.
	Telemetry Telemetry
	// CreatedAt is when the attempt was created.
	CreatedAt time.Time
	// FinishedAt is when the attempt reached a terminal status. Nil before.
	FinishedAt *time.Time
}

// Decision is the human action resolving an awaiting stage execution.
//
// Which fields matter depends on the stage's output format: selections for
// options/findings/task-splitting stages, checks for checklists, stage names
// for stage-selection stages. Notes always flow into the next stage prompt.
type Decision struct {
	// SelectedIndices are the 0-based indices of the selected items.
	SelectedIndices []int
	// CheckedIndices are the 0-based indices of the checked checklist items.
	CheckedIndices []int
	// SelectedStages overrides the agent's suggested stages by name.
	SelectedStages []string
	// Notes is free-form guidance passed to the next stage.
	Notes string
}

// Issue represents an issue available for import from the tracker.
type Issue struct {
	Key         string
	Title       string
	Description string
	URL         string
}

// --- Internal conversion helpers ---

func fromInternalProject(p model.Project) Project {
	return Project{
		ID:        p.ID,
		Name:      p.Name,
		Path:      p.Path,
		Archived:  p.Archived,
		CreatedAt: p.CreatedAt,
	}
}

func fromInternalProjectList(ps []model.Project) []Project {
	result := make([]Project, len(ps))
	for i, p := range ps {
		result[i] = fromInternalProject(p)
	}
	return result
}

func fromInternalTask(t model.Task) Task {
	return Task{
		ID:             t.ID,
		ParentTaskID:   t.ParentTaskID,
		Title:          t.Title,
		Description:    t.Description,
		Context:        t.Context,
		Status:         TaskStatus(t.Status),
		CurrentStageID: t.CurrentStageID,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func fromInternalTaskList(ts []model.Task) []Task {
	result := make([]Task, len(ts))
	for i, t := range ts {
		result[i] = fromInternalTask(t)
	}
	return result
}

func fromInternalTemplate(t model.StageTemplate) StageTemplate {
	return StageTemplate{
		ID:                     t.ID,
		Name:                   t.Name,
		Description:            t.Description,
		SortOrder:              t.SortOrder,
		OutputFormat:           string(t.OutputFormat),
		Optional:               t.Optional,
		CommitsChanges:         t.CommitsChanges,
		CreatesPR:              t.CreatesPR,
		TriggersStageSelection: t.TriggersStageSelection,
		RequiresUserInput:      t.RequiresUserInput,
		IsTerminal:             t.IsTerminal,
	}
}

func fromInternalTemplateList(ts []model.StageTemplate) []StageTemplate {
	result := make([]StageTemplate, len(ts))
	for i, t := range ts {
		result[i] = fromInternalTemplate(t)
	}
	return result
}

func fromInternalParsedOutput(p *model.ParsedOutput) *ParsedOutput {
	if p == nil {
		return nil
	}

	out := &ParsedOutput{
		Format:          string(p.Format),
		Text:            p.Text,
		Options:         p.Options,
		Fields:          p.Fields,
		Questions:       p.Questions,
		SuggestedStages: p.SuggestedStages,
	}

	for _, item := range p.ChecklistItems {
		out.ChecklistItems = append(out.ChecklistItems, ChecklistItem{Text: item.Text, Checked: item.Checked})
	}
	for _, f := range p.Findings {
		out.Findings = append(out.Findings, Finding{Title: f.Title, Detail: f.Detail})
	}
	for _, s := range p.Subtasks {
		out.Subtasks = append(out.Subtasks, ProposedSubtask{Title: s.Title, Description: s.Description})
	}

	return out
}

func fromInternalExecution(e model.StageExecution) StageExecution {
	return StageExecution{
		ID:           e.ID,
		TaskID:       e.TaskID,
		StageID:      e.StageID,
		Attempt:      e.Attempt,
		Status:       ExecutionStatus(e.Status),
		RawOutput:    e.RawOutput,
		Parsed:       fromInternalParsedOutput(e.ParsedOutput),
		ErrorMessage: e.ErrorMessage,
		Telemetry: Telemetry{
			InputTokens:  e.Telemetry.InputTokens,
			OutputTokens: e.Telemetry.OutputTokens,
			CostUSD:      e.Telemetry.CostUSD,
			DurationMS:   e.Telemetry.DurationMS,
			Turns:        e.Telemetry.Turns,
		},
		CreatedAt:  e.CreatedAt,
		FinishedAt: e.FinishedAt,
	}
}

func fromInternalExecutionList(es []model.StageExecution) []StageExecution {
	result := make([]StageExecution, len(es))
	for i, e := range es {
		result[i] = fromInternalExecution(e)
	}
	return result
}

func toInternalDecision(d Decision) model.UserDecision {
	return model.UserDecision{
		SelectedIndices: d.SelectedIndices,
		CheckedIndices:  d.CheckedIndices,
		SelectedStages:  d.SelectedStages,
		Notes:           d.Notes,
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case isInternalError(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case isInternalError(err, model.ErrAlreadyExists):
		return joinErrors(err, ErrAlreadyExists)
	case isInternalError(err, model.ErrGateNotSatisfied):
		return joinErrors(err, ErrGateNotSatisfied)
	case isInternalError(err, model.ErrStageActive):
		return joinErrors(err, ErrStageActive)
	case isInternalError(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	default:
		return err
	}
}

func isInternalError(err, target error) bool {
	for {
		if err == target {
			return true
		}
		unwrapped := unwrapSingle(err)
		if unwrapped == nil {
			return false
		}
		err = unwrapped
	}
}

func unwrapSingle(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
