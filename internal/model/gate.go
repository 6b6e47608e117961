package model

import (
	"fmt"
)

// GateKind is the family of a gate rule.
type GateKind string

const (
	// GateKindApproval requires an explicit user approval.
	GateKindApproval GateKind = "approval"
	// GateKindSelection requires between Min and Max selected items.
	GateKindSelection GateKind = "selection"
	// GateKindAllChecked requires every checklist item to be checked.
	GateKindAllChecked GateKind = "all_checked"
	// GateKindFields requires every named field to be present and non-empty.
	GateKindFields GateKind = "fields"
)

// GateRule is the policy deciding when a stage output is accepted and the
// task may advance.
type GateRule struct {
	Kind GateKind

	// Selection bounds. Max == 0 means unbounded.
	MinSelected int
	MaxSelected int

	// Required field names for GateKindFields.
	Fields []string
}

// UserDecision is the human action captured while an execution awaits the user.
type UserDecision struct {
	Approved        bool
	SelectedIndices []int
	CheckedIndices  []int
	SelectedStages  []string // Overrides the agent's suggested stages on stage-selection stages.
	Notes           string
}

// GateRuleFor returns the gate rule family a given output format implies.
// Templates with an output schema refine the fields variant through
// StageTemplate.GateRule.
func GateRuleFor(f OutputFormat) GateRule {
	switch f {
	case OutputFormatOptions:
		return GateRule{Kind: GateKindSelection, MinSelected: 1, MaxSelected: 1}
	case OutputFormatChecklist:
		return GateRule{Kind: GateKindAllChecked}
	case OutputFormatStructured:
		return GateRule{Kind: GateKindFields}
	case OutputFormatPRPreparation:
		return GateRule{Kind: GateKindFields, Fields: []string{"title", "description", "branch"}}
	case OutputFormatFindings, OutputFormatPRReview:
		return GateRule{Kind: GateKindSelection, MinSelected: 0}
	case OutputFormatTaskSplitting:
		return GateRule{Kind: GateKindSelection, MinSelected: 1}
	default:
		// text, research, plan, merge, interactive_terminal.
		return GateRule{Kind: GateKindApproval}
	}
}

// GateRule returns the effective gate rule of the template: the rule family
// implied by its output format, refined with the template's own schema.
func (t *StageTemplate) GateRule() GateRule {
	rule := GateRuleFor(t.OutputFormat)
	if rule.Kind == GateKindFields && len(rule.Fields) == 0 {
		rule.Fields = t.RequiredFields()
	}
	return rule
}

// Evaluate checks the user decision against the gate rule for the given
// parsed output. It returns an error wrapping ErrGateNotSatisfied when the
// decision violates the rule; such errors are validation failures and must
// surface synchronously, never be retried.
func (g GateRule) Evaluate(out *ParsedOutput, d UserDecision) error {
	switch g.Kind {
	case GateKindApproval:
		if !d.Approved {
			return fmt.Errorf("approval is required: %w", ErrGateNotSatisfied)
		}

	case GateKindSelection:
		n := len(d.SelectedIndices)
		if n < g.MinSelected {
			return fmt.Errorf("at least %d items must be selected, got %d: %w", g.MinSelected, n, ErrGateNotSatisfied)
		}
		if g.MaxSelected > 0 && n > g.MaxSelected {
			return fmt.Errorf("at most %d items may be selected, got %d: %w", g.MaxSelected, n, ErrGateNotSatisfied)
		}
		selectable := 0
		if out != nil {
			selectable = out.SelectableItems()
		}
		seen := map[int]bool{}
		for _, i := range d.SelectedIndices {
			if i < 0 || i >= selectable {
				return fmt.Errorf("selected index %d out of range: %w", i, ErrGateNotSatisfied)
			}
			if seen[i] {
				return fmt.Errorf("selected index %d repeated: %w", i, ErrGateNotSatisfied)
			}
			seen[i] = true
		}

	case GateKindAllChecked:
		if out == nil || len(out.ChecklistItems) == 0 {
			return fmt.Errorf("checklist output is missing: %w", ErrGateNotSatisfied)
		}
		checked := map[int]bool{}
		for _, i := range d.CheckedIndices {
			if i >= 0 && i < len(out.ChecklistItems) {
				checked[i] = true
			}
		}
		for i, item := range out.ChecklistItems {
			if !item.Checked && !checked[i] {
				return fmt.Errorf("checklist item %q is not checked: %w", item.Text, ErrGateNotSatisfied)
			}
		}

	case GateKindFields:
		if out == nil {
			return fmt.Errorf("structured output is missing: %w", ErrGateNotSatisfied)
		}
		for _, f := range g.Fields {
			if out.Fields[f] == "" {
				return fmt.Errorf("required field %q is missing: %w", f, ErrGateNotSatisfied)
			}
		}

	default:
		return fmt.Errorf("unknown gate kind %q: %w", g.Kind, ErrNotValid)
	}

	return nil
}
