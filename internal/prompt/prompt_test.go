package prompt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stagegate/stagegate/internal/prompt"
)

func TestRender(t *testing.T) {
	tests := map[string]struct {
		template string
		ctx      prompt.Context
		exp      string
	}{
		"Plain text renders unchanged": {
			template: "Implement the task.",
			exp:      "Implement the task.",
		},

		"Fields interpolate their context value": {
			template: "Task: {{task_title}}\n\n{{task_description}}",
			ctx:      prompt.Context{TaskTitle: "Add login", TaskDescription: "Add a login form."},
			exp:      "Task: Add login\n\nAdd a login form.",
		},

		"Missing soft fields interpolate as empty": {
			template: "Summary:{{stage_summaries}}.",
			exp:      "Summary:.",
		},

		"Legacy previous output field defaults to its placeholder": {
			template: "Prev: {{previous_output}}",
			ctx:      prompt.Context{TaskDescription: "t"},
			exp:      "Prev: (no previous output)",
		},

		"Legacy user input field defaults to its placeholder": {
			template: "Input: {{user_input}}",
			exp:      "Input: (no user input)",
		},

		"Unknown fields are stripped": {
			template: "Before {{this_field_is_long_gone}} after",
			exp:      "Before  after",
		},

		"Conditional on an unknown field drops the body": {
			template: "{{#if x}}A{{/if}}",
			exp:      "",
		},

		"Conditional on a present field includes its branch": {
			template: "{{#if user_input}}A{{else}}B{{/if}}",
			ctx:      prompt.Context{UserInput: "v"},
			exp:      "A",
		},

		"Conditional on an absent field includes the else branch": {
			template: "{{#if user_input}}A{{else}}B{{/if}}",
			exp:      "B",
		},

		"Conditionals see the raw value, not the legacy placeholder": {
			template: "{{#if previous_output}}X{{/if}}",
			ctx:      prompt.Context{TaskDescription: "t"},
			exp:      "",
		},

		"Interpolation resolves inside conditional bodies": {
			template: "{{#if user_input}}User said: {{user_input}}{{/if}}",
			ctx:      prompt.Context{UserInput: "do it"},
			exp:      "User said: do it",
		},

		"Nested conditionals resolve": {
			template: "{{#if task_title}}{{task_title}}{{#if user_input}} ({{user_input}}){{/if}}{{else}}untitled{{/if}}",
			ctx:      prompt.Context{TaskTitle: "T", UserInput: "hint"},
			exp:      "T (hint)",
		},

		"Nested conditional else branch resolves": {
			template: "{{#if task_title}}yes{{else}}{{#if user_input}}input only{{else}}nothing{{/if}}{{/if}}",
			exp:      "nothing",
		},

		"Prior attempt output is available on retries": {
			template: "{{#if prior_attempt_output}}Previous attempt:\n{{prior_attempt_output}}{{/if}}",
			ctx:      prompt.Context{PriorAttemptOutput: "finding 1\nfinding 3"},
			exp:      "Previous attempt:\nfinding 1\nfinding 3",
		},

		"Output is trimmed": {
			template: "\n\n  body  \n\n",
			exp:      "body",
		},

		"Unbalanced block is left untouched": {
			template: "{{#if user_input}}A",
			ctx:      prompt.Context{UserInput: "v"},
			exp:      "{{#if user_input}}A",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := prompt.Render(test.template, test.ctx)
			assert.Equal(t, test.exp, got)
		})
	}
}

func TestRenderIdempotent(t *testing.T) {
	// Rendering output that contains no remaining tokens is a no-op.
	templates := []string{
		"Task: {{task_title}}\n{{#if user_input}}Input: {{user_input}}{{/if}}",
		"{{previous_output}}",
		"Plain text without markup.",
	}
	ctx := prompt.Context{TaskTitle: "T", UserInput: "u"}

	for _, tpl := range templates {
		out := prompt.Render(tpl, ctx)
		if strings.Contains(out, "{{") {
			continue
		}
		assert.Equal(t, out, prompt.Render(out, ctx))
	}
}

func TestRenderNeverLeaksTokens(t *testing.T) {
	// With every optional field absent, no raw field token survives.
	template := "{{task_title}} {{task_description}} {{previous_output}} " +
		"{{user_input}} {{user_decision}} {{prior_attempt_output}} " +
		"{{stage_summaries}} {{available_stages}} {{project_name}} " +
		"{{output_instructions}} {{removed_field}}"

	out := prompt.Render(template, prompt.Context{})

	assert.NotContains(t, out, "{{")
	assert.NotContains(t, out, "}}")
}
