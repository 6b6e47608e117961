package model

import (
	"fmt"
	"strings"
)

// InputSource declares where a stage takes its input from.
type InputSource string

const (
	// InputSourceUser means the stage input comes from the user.
	InputSourceUser InputSource = "user"
	// InputSourcePreviousStage means the stage input is the previous stage output.
	InputSourcePreviousStage InputSource = "previous_stage"
	// InputSourceBoth means the stage input combines user input and previous stage output.
	InputSourceBoth InputSource = "both"
)

// Valid returns true if the input source is a known value.
func (s InputSource) Valid() bool {
	switch s {
	case InputSourceUser, InputSourcePreviousStage, InputSourceBoth:
		return true
	}
	return false
}

// OutputFormat is the closed vocabulary of shapes a stage output may take.
type OutputFormat string

const (
	// OutputFormatText is free text with no structure.
	OutputFormatText OutputFormat = "text"
	// OutputFormatOptions is N choices of which exactly one is selected.
	OutputFormatOptions OutputFormat = "options"
	// OutputFormatChecklist is a list of items that must all be checked.
	OutputFormatChecklist OutputFormat = "checklist"
	// OutputFormatStructured is a set of named required fields.
	OutputFormatStructured OutputFormat = "structured"
	// OutputFormatPRPreparation is structured output describing a PR to open.
	OutputFormatPRPreparation OutputFormat = "pr_preparation"
	// OutputFormatResearch is free text plus optional clarifying questions.
	OutputFormatResearch OutputFormat = "research"
	// OutputFormatPlan is free text plus optional clarifying questions.
	OutputFormatPlan OutputFormat = "plan"
	// OutputFormatFindings is a list of items the user partially selects.
	OutputFormatFindings OutputFormat = "findings"
	// OutputFormatTaskSplitting is a list of proposed subtasks, partially selected.
	OutputFormatTaskSplitting OutputFormat = "task_splitting"
	// OutputFormatPRReview is a list of review comments with per-comment fix tracking.
	OutputFormatPRReview OutputFormat = "pr_review"
	// OutputFormatMerge is a merge confirmation with no structured payload.
	OutputFormatMerge OutputFormat = "merge"
	// OutputFormatInteractiveTerminal is a live human-agent session with no structured output.
	OutputFormatInteractiveTerminal OutputFormat = "interactive_terminal"
)

// Valid returns true if the output format is a known value.
func (f OutputFormat) Valid() bool {
	switch f {
	case OutputFormatText, OutputFormatOptions, OutputFormatChecklist,
		OutputFormatStructured, OutputFormatPRPreparation, OutputFormatResearch,
		OutputFormatPlan, OutputFormatFindings, OutputFormatTaskSplitting,
		OutputFormatPRReview, OutputFormatMerge, OutputFormatInteractiveTerminal:
		return true
	}
	return false
}

// ResultMode governs how a stage output folds into the accumulated task context.
type ResultMode string

const (
	// ResultModeReplace discards the accumulated context and substitutes the stage output.
	ResultModeReplace ResultMode = "replace"
	// ResultModeAppend concatenates a summary of the stage result onto the context.
	ResultModeAppend ResultMode = "append"
)

// Valid returns true if the result mode is a known value.
func (m ResultMode) Valid() bool {
	return m == ResultModeReplace || m == ResultModeAppend
}

// StageTemplate defines one configurable step of a project pipeline.
type StageTemplate struct {
	ID          string
	SortOrder   int // Defines the total pipeline order within a project (gaps legal).
	Name        string
	Description string

	InputSource  InputSource
	OutputFormat OutputFormat
	OutputSchema string // Optional structural schema for structured outputs (required field names, one per line).

	PromptTemplate string
	AllowedTools   []string

	CommitsChanges         bool
	CommitPrefix           string
	CreatesPR              bool
	IsTerminal             bool
	TriggersStageSelection bool
	RequiresUserInput      bool
	Optional               bool // Optional templates join a task pipeline only via stage selection.

	ResultMode ResultMode
}

// Validate validates the stage template.
func (t *StageTemplate) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}
	if t.Name == "" {
		return fmt.Errorf("name is required: %w", ErrNotValid)
	}
	if !t.InputSource.Valid() {
		return fmt.Errorf("unknown input source %q: %w", t.InputSource, ErrNotValid)
	}
	if !t.OutputFormat.Valid() {
		return fmt.Errorf("unknown output format %q: %w", t.OutputFormat, ErrNotValid)
	}
	if !t.ResultMode.Valid() {
		return fmt.Errorf("unknown result mode %q: %w", t.ResultMode, ErrNotValid)
	}
	if t.CommitsChanges && t.CommitPrefix == "" {
		return fmt.Errorf("commit prefix is required when the stage commits changes: %w", ErrNotValid)
	}
	return nil
}

// RequiredFields returns the required field names declared on the output
// schema, one per line, empty lines ignored.
func (t *StageTemplate) RequiredFields() []string {
	var fields []string
	for _, line := range strings.Split(t.OutputSchema, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			fields = append(fields, line)
		}
	}
	return fields
}
