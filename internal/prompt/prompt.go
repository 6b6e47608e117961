// Package prompt renders stored stage prompt templates into the final text
// sent to the agent. Rendering is a pure function: no I/O, no side effects,
// fully deterministic for a given template and context.
//
// Template syntax:
//   - `{{field}}` interpolates a context field.
//   - `{{#if field}}...{{/if}}` and `{{#if field}}...{{else}}...{{/if}}`
//     include or exclude their body based on the field's truthiness
//     (non-empty string means true). Blocks nest.
//
// Missing fields interpolate as empty string, except a small fixed set of
// legacy fields that substitute a documented placeholder so prompts stored by
// old application versions keep their original wording. Conditionals always
// see the raw value, never the placeholder. Tokens referencing fields that no
// longer exist are stripped to empty instead of leaking into the prompt.
package prompt

import (
	"regexp"
	"strings"
)

// Context is the named bag of optional fields available to prompt templates.
type Context struct {
	ProjectName        string
	TaskTitle          string
	TaskDescription    string
	PreviousOutput     string
	UserInput          string
	UserDecision       string
	PriorAttemptOutput string
	StageSummaries     string
	AvailableStages    string
	OutputInstructions string
}

func (c Context) fields() map[string]string {
	return map[string]string{
		"project_name":         c.ProjectName,
		"task_title":           c.TaskTitle,
		"task_description":     c.TaskDescription,
		"previous_output":      c.PreviousOutput,
		"user_input":           c.UserInput,
		"user_decision":        c.UserDecision,
		"prior_attempt_output": c.PriorAttemptOutput,
		"stage_summaries":      c.StageSummaries,
		"available_stages":     c.AvailableStages,
		"output_instructions":  c.OutputInstructions,
	}
}

// Legacy fields substitute these placeholders when empty. Old stored templates
// interpolate them unconditionally and expect visible text either way.
var legacyDefaults = map[string]string{
	"previous_output": "(no previous output)",
	"user_input":      "(no user input)",
}

var fieldRegexp = regexp.MustCompile(`\{\{([a-z][a-z0-9_]*)\}\}`)

// Render renders the template against the context and returns the final
// prompt, trimmed of leading and trailing whitespace.
func Render(template string, ctx Context) string {
	fields := ctx.fields()
	s := renderConditionals(template, fields)
	s = interpolate(s, fields)
	return strings.TrimSpace(s)
}

func interpolate(s string, fields map[string]string) string {
	return fieldRegexp.ReplaceAllStringFunc(s, func(token string) string {
		name := token[2 : len(token)-2]
		if v := fields[name]; v != "" {
			return v
		}
		if def, ok := legacyDefaults[name]; ok {
			return def
		}
		// Unknown or empty fields (including fields removed in newer
		// versions) are stripped rather than left visible.
		return ""
	})
}

const (
	ifOpen  = "{{#if "
	ifClose = "{{/if}}"
	ifElse  = "{{else}}"
)

func renderConditionals(s string, fields map[string]string) string {
	for {
		start := strings.Index(s, ifOpen)
		if start < 0 {
			return s
		}

		nameEnd := strings.Index(s[start:], "}}")
		if nameEnd < 0 {
			// Malformed opening marker, leave the rest untouched.
			return s
		}
		nameEnd += start
		name := strings.TrimSpace(s[start+len(ifOpen) : nameEnd])
		bodyStart := nameEnd + 2

		body, elseBody, end, ok := splitBlock(s[bodyStart:])
		if !ok {
			// Unbalanced block, leave untouched.
			return s
		}

		var chosen string
		if fields[name] != "" {
			chosen = renderConditionals(body, fields)
		} else {
			chosen = renderConditionals(elseBody, fields)
		}

		s = s[:start] + chosen + s[bodyStart+end:]
	}
}

// splitBlock scans s for the `{{/if}}` closing the block that starts at the
// beginning of s, accounting for nested blocks, and splits the content at a
// depth-zero `{{else}}`. It returns the if-body, the else-body and the offset
// right after the closing marker.
func splitBlock(s string) (body, elseBody string, end int, ok bool) {
	depth := 0
	elseIdx := -1

	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], ifOpen):
			depth++
			i += len(ifOpen)
		case strings.HasPrefix(s[i:], ifClose):
			if depth == 0 {
				if elseIdx >= 0 {
					return s[:elseIdx], s[elseIdx+len(ifElse) : i], i + len(ifClose), true
				}
				return s[:i], "", i + len(ifClose), true
			}
			depth--
			i += len(ifClose)
		case strings.HasPrefix(s[i:], ifElse):
			if depth == 0 && elseIdx < 0 {
				elseIdx = i
			}
			i += len(ifElse)
		default:
			i++
		}
	}

	return "", "", 0, false
}
