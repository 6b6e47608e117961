package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stagegate/stagegate/internal/model"
)

func TestGateRuleEvaluate(t *testing.T) {
	optionsOut := &model.ParsedOutput{
		Format:  model.OutputFormatOptions,
		Options: []string{"option A", "option B", "option C"},
	}

	tests := map[string]struct {
		rule     model.GateRule
		out      *model.ParsedOutput
		decision model.UserDecision
		expErr   error
	}{
		"Approval gate with an approved decision should pass": {
			rule:     model.GateRule{Kind: model.GateKindApproval},
			decision: model.UserDecision{Approved: true},
		},

		"Approval gate without approval should fail": {
			rule:   model.GateRule{Kind: model.GateKindApproval},
			expErr: model.ErrGateNotSatisfied,
		},

		"Selection gate min 1 max 1 with exactly one item should pass": {
			rule:     model.GateRule{Kind: model.GateKindSelection, MinSelected: 1, MaxSelected: 1},
			out:      optionsOut,
			decision: model.UserDecision{SelectedIndices: []int{1}},
		},

		"Selection gate min 1 max 1 with zero items should fail": {
			rule:   model.GateRule{Kind: model.GateKindSelection, MinSelected: 1, MaxSelected: 1},
			out:    optionsOut,
			expErr: model.ErrGateNotSatisfied,
		},

		"Selection gate min 1 max 1 with two items should fail": {
			rule:     model.GateRule{Kind: model.GateKindSelection, MinSelected: 1, MaxSelected: 1},
			out:      optionsOut,
			decision: model.UserDecision{SelectedIndices: []int{0, 2}},
			expErr:   model.ErrGateNotSatisfied,
		},

		"Selection gate with an out of range index should fail": {
			rule:     model.GateRule{Kind: model.GateKindSelection, MinSelected: 1, MaxSelected: 1},
			out:      optionsOut,
			decision: model.UserDecision{SelectedIndices: []int{3}},
			expErr:   model.ErrGateNotSatisfied,
		},

		"Selection gate with a repeated index should fail": {
			rule:     model.GateRule{Kind: model.GateKindSelection, MinSelected: 2},
			out:      optionsOut,
			decision: model.UserDecision{SelectedIndices: []int{1, 1}},
			expErr:   model.ErrGateNotSatisfied,
		},

		"Unbounded selection gate with partial selection should pass": {
			rule: model.GateRule{Kind: model.GateKindSelection},
			out: &model.ParsedOutput{
				Format: model.OutputFormatFindings,
				Findings: []model.Finding{
					{Title: "finding 1"}, {Title: "finding 2"}, {Title: "finding 3"},
				},
			},
			decision: model.UserDecision{SelectedIndices: []int{0, 2}},
		},

		"All checked gate with every item checked should pass": {
			rule: model.GateRule{Kind: model.GateKindAllChecked},
			out: &model.ParsedOutput{
				Format: model.OutputFormatChecklist,
				ChecklistItems: []model.ChecklistItem{
					{Text: "item 1"},
					{Text: "item 2", Checked: true},
				},
			},
			decision: model.UserDecision{CheckedIndices: []int{0}},
		},

		"All checked gate with an unchecked item should fail": {
			rule: model.GateRule{Kind: model.GateKindAllChecked},
			out: &model.ParsedOutput{
				Format: model.OutputFormatChecklist,
				ChecklistItems: []model.ChecklistItem{
					{Text: "item 1", Checked: true},
					{Text: "item 2"},
				},
			},
			expErr: model.ErrGateNotSatisfied,
		},

		"Fields gate with every required field should pass": {
			rule: model.GateRule{Kind: model.GateKindFields, Fields: []string{"title", "branch"}},
			out: &model.ParsedOutput{
				Format: model.OutputFormatStructured,
				Fields: map[string]string{"title": "a title", "branch": "feat/x"},
			},
			decision: model.UserDecision{Approved: true},
		},

		"Fields gate with a missing field should fail": {
			rule: model.GateRule{Kind: model.GateKindFields, Fields: []string{"title", "branch"}},
			out: &model.ParsedOutput{
				Format: model.OutputFormatStructured,
				Fields: map[string]string{"title": "a title"},
			},
			expErr: model.ErrGateNotSatisfied,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.rule.Evaluate(test.out, test.decision)

			if test.expErr != nil {
				assert.True(t, errors.Is(err, test.expErr))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGateRuleFor(t *testing.T) {
	tests := map[string]struct {
		format  model.OutputFormat
		expRule model.GateRule
	}{
		"Options imply an exactly-one selection": {
			format:  model.OutputFormatOptions,
			expRule: model.GateRule{Kind: model.GateKindSelection, MinSelected: 1, MaxSelected: 1},
		},
		"Checklists imply all items checked": {
			format:  model.OutputFormatChecklist,
			expRule: model.GateRule{Kind: model.GateKindAllChecked},
		},
		"PR preparation implies fixed required fields": {
			format:  model.OutputFormatPRPreparation,
			expRule: model.GateRule{Kind: model.GateKindFields, Fields: []string{"title", "description", "branch"}},
		},
		"Findings imply a partial selection": {
			format:  model.OutputFormatFindings,
			expRule: model.GateRule{Kind: model.GateKindSelection},
		},
		"Task splitting implies at least one selected subtask": {
			format:  model.OutputFormatTaskSplitting,
			expRule: model.GateRule{Kind: model.GateKindSelection, MinSelected: 1},
		},
		"Free text implies plain approval": {
			format:  model.OutputFormatText,
			expRule: model.GateRule{Kind: model.GateKindApproval},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expRule, model.GateRuleFor(test.format))
		})
	}
}
