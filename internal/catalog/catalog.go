// Package catalog defines the canonical default pipeline seeded into new
// projects. Migrations that introduced a stage or rewrote a prompt on
// existing stores reference the same definitions, so seed and upgrade paths
// can never drift apart.
package catalog

import (
	"github.com/stagegate/stagegate/internal/model"
)

// Canonical stage names. Migrations match templates by these names, so they
// double as upgrade markers on stores that predate the migration ledger.
const (
	StageResearch       = "Research"
	StagePlanning       = "Planning"
	StageImplementation = "Implementation"
	StageCodeReview     = "Code Review"
	StageDocumentation  = "Documentation"
	StageTaskSplitting  = "Task Splitting"
	StagePRPreparation  = "PR Preparation"
	StagePRReview       = "PR Review"
	StageMerge          = "Merge"
)

// FindingsMarker is a literal that only appears in the findings-format code
// review prompt. Baseline detection uses it to recognize stores already
// upgraded to structured findings.
const FindingsMarker = "List each finding as a separate item"

const researchPrompt = `You are researching a task before any code is written.

Task: {{task_title}}
{{task_description}}

{{#if user_input}}Additional context from the user:
{{user_input}}
{{/if}}
Explore the codebase and summarize everything relevant to this task: the
affected modules, existing patterns to follow and any risks. If something is
ambiguous, finish with a short list of clarifying questions.`

const planningPrompt = `Create an implementation plan for the task below.

Task: {{task_title}}
{{task_description}}

Prior research:
{{previous_output}}

{{#if user_decision}}The user answered the clarifying questions:
{{user_decision}}
{{/if}}
Available pipeline stages for this task:
{{available_stages}}

Write a step-by-step plan and suggest which of the optional stages this task
needs.`

const implementationPrompt = `Implement the planned changes.

Task: {{task_title}}

Plan:
{{previous_output}}

{{#if prior_attempt_output}}A previous attempt was rejected. Take this feedback
into account:
{{prior_attempt_output}}
{{/if}}
Make the code changes. Keep the diff focused on the plan.`

const codeReviewPrompt = `Review the changes produced by the previous stage.

Task: {{task_title}}

{{previous_output}}

{{#if prior_attempt_output}}A previous review was rejected. The user kept these
findings from it, include them and look deeper:
{{prior_attempt_output}}
{{/if}}
Look for bugs, missing error handling and deviations from the plan.
` + FindingsMarker + `, with a short title and enough detail to act on it.
Do not fix anything yet.`

const documentationPrompt = `Update the project documentation for the changes
made in this task.

Task: {{task_title}}

{{stage_summaries}}

Update README, changelogs and code comments where the behavior changed. Only
document what actually changed.`

const taskSplittingPrompt = `This task is too large to implement in one pass.

Task: {{task_title}}
{{task_description}}

{{#if previous_output}}Context:
{{previous_output}}
{{/if}}
Propose a decomposition into independent subtasks. Each subtask needs a title
and a one-paragraph description, and must be implementable on its own.`

const prPreparationPrompt = `Prepare a pull request for this task.

Task: {{task_title}}

{{stage_summaries}}

Produce the PR title, a description summarizing the changes and their
motivation, and the branch to open the PR from.`

const prReviewPrompt = `Address the review comments on the open pull request.

Task: {{task_title}}

{{#if prior_attempt_output}}Comments selected for fixing:
{{prior_attempt_output}}
{{/if}}
List every unresolved review comment as a separate item so the user can choose
which ones to fix.`

const mergePrompt = `All gates passed for this task.

Task: {{task_title}}

{{stage_summaries}}

Merge the pull request and report the result.`

// DefaultTemplates returns the default pipeline for brand-new projects in
// ascending sort order. IDs are assigned by the caller at seed time.
func DefaultTemplates() []model.StageTemplate {
	return []model.StageTemplate{
		{
			SortOrder:      0,
			Name:           StageResearch,
			Description:    "Explore the codebase and gather context for the task.",
			InputSource:    model.InputSourceUser,
			OutputFormat:   model.OutputFormatResearch,
			PromptTemplate: researchPrompt,
			AllowedTools:   []string{"read", "grep", "glob"},
			ResultMode:     model.ResultModeReplace,
		},
		{
			SortOrder:              1,
			Name:                   StagePlanning,
			Description:            "Turn research into a step-by-step plan and pick the stages this task needs.",
			InputSource:            model.InputSourceBoth,
			OutputFormat:           model.OutputFormatPlan,
			PromptTemplate:         planningPrompt,
			AllowedTools:           []string{"read", "grep", "glob"},
			TriggersStageSelection: true,
			RequiresUserInput:      true,
			ResultMode:             model.ResultModeReplace,
		},
		{
			SortOrder:      2,
			Name:           StageImplementation,
			Description:    "Apply the planned code changes.",
			InputSource:    model.InputSourcePreviousStage,
			OutputFormat:   model.OutputFormatText,
			PromptTemplate: implementationPrompt,
			CommitsChanges: true,
			CommitPrefix:   "feat: ",
			ResultMode:     model.ResultModeReplace,
		},
		{
			SortOrder:      3,
			Name:           StageCodeReview,
			Description:    "Review the implementation; the user picks which findings get fixed.",
			InputSource:    model.InputSourcePreviousStage,
			OutputFormat:   model.OutputFormatFindings,
			PromptTemplate: codeReviewPrompt,
			AllowedTools:   []string{"read", "grep", "glob"},
			ResultMode:     model.ResultModeAppend,
		},
		{
			SortOrder:      4,
			Name:           StageDocumentation,
			Description:    "Update documentation for the changes made in this task.",
			InputSource:    model.InputSourcePreviousStage,
			OutputFormat:   model.OutputFormatText,
			PromptTemplate: documentationPrompt,
			CommitsChanges: true,
			CommitPrefix:   "docs: ",
			Optional:       true,
			ResultMode:     model.ResultModeAppend,
		},
		{
			SortOrder:      5,
			Name:           StageTaskSplitting,
			Description:    "Decompose an oversized task into independent subtasks.",
			InputSource:    model.InputSourceBoth,
			OutputFormat:   model.OutputFormatTaskSplitting,
			PromptTemplate: taskSplittingPrompt,
			Optional:       true,
			ResultMode:     model.ResultModeReplace,
		},
		{
			SortOrder:      6,
			Name:           StagePRPreparation,
			Description:    "Produce the PR title, description and branch, then open the PR.",
			InputSource:    model.InputSourcePreviousStage,
			OutputFormat:   model.OutputFormatPRPreparation,
			OutputSchema:   "title\ndescription\nbranch",
			PromptTemplate: prPreparationPrompt,
			CreatesPR:      true,
			Optional:       true,
			ResultMode:     model.ResultModeReplace,
		},
		{
			SortOrder:      7,
			Name:           StagePRReview,
			Description:    "Track and fix review comments on the open PR.",
			InputSource:    model.InputSourcePreviousStage,
			OutputFormat:   model.OutputFormatPRReview,
			PromptTemplate: prReviewPrompt,
			Optional:       true,
			ResultMode:     model.ResultModeAppend,
		},
		{
			SortOrder:      8,
			Name:           StageMerge,
			Description:    "Merge the approved changes and finish the task.",
			InputSource:    model.InputSourcePreviousStage,
			OutputFormat:   model.OutputFormatMerge,
			PromptTemplate: mergePrompt,
			IsTerminal:     true,
			ResultMode:     model.ResultModeReplace,
		},
	}
}

// Template returns the default template with the given canonical name.
func Template(name string) (*model.StageTemplate, bool) {
	for _, t := range DefaultTemplates() {
		if t.Name == name {
			return &t, true
		}
	}
	return nil, false
}
