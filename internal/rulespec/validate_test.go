package rulespec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/switchyard/internal/domain"
)

func validRule() domain.WorkflowRule {
	return domain.WorkflowRule{
		ID:           "wf-1",
		Name:         "Rule",
		TriggerEvent: domain.EventAccountRegistration,
		ActionType:   domain.ActionSendNotification,
		ActionConfig: `{"template":"welcome","to":"contact"}`,
		Enabled:      true,
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.Empty(t, Validate(validRule()))

	r := validRule()
	r.ConditionRaw = `{"field":"title","operator":"lte","value":3}`
	assert.Empty(t, Validate(r))
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.WorkflowRule)
		codes  []string
	}{
		{"missing name", func(r *domain.WorkflowRule) { r.Name = "" }, []string{ErrRequiredField}},
		{"unknown action", func(r *domain.WorkflowRule) { r.ActionType = "PAGE_ONCALL" }, []string{ErrUnknownAction}},
		{"bad config", func(r *domain.WorkflowRule) { r.ActionConfig = `{"to":"contact"}` }, []string{ErrInvalidConfig}},
		{"bad condition json", func(r *domain.WorkflowRule) { r.ConditionRaw = `{` }, []string{ErrInvalidCond}},
		{"unknown operator", func(r *domain.WorkflowRule) {
			r.ConditionRaw = `{"field":"title","operator":"startsWith","value":"x"}`
		}, []string{ErrUnknownOperator}},
		{"negative position and bad config", func(r *domain.WorkflowRule) {
			r.Position = -1
			r.ActionConfig = `{}`
		}, []string{ErrNegativePos, ErrInvalidConfig}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(&r)
			errs := Validate(r)
			var codes []string
			for _, e := range errs {
				codes = append(codes, e.Code)
				assert.Equal(t, "wf-1", e.Rule)
			}
			assert.Equal(t, tt.codes, codes)
		})
	}
}

func TestValidateAll_Duplicates(t *testing.T) {
	errs := ValidateAll([]domain.WorkflowRule{validRule(), validRule()})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateRule, errs[0].Code)
	assert.Contains(t, errs[0].Error(), "[E206] wf-1: id")
}
