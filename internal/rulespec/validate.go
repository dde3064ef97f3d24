package rulespec

import (
	"errors"
	"fmt"

	"github.com/roach88/switchyard/internal/domain"
)

// Validation error codes.
const (
	ErrRequiredField   = "E201" // id, name, trigger or action missing
	ErrUnknownAction   = "E202" // action type is not one of the known kinds
	ErrInvalidConfig   = "E203" // action config does not parse for its type
	ErrInvalidCond     = "E204" // condition JSON does not parse
	ErrUnknownOperator = "E205" // condition operator is never true
	ErrDuplicateRule   = "E206" // same rule ID defined twice
	ErrNegativePos     = "E207" // position below zero
)

// ValidationError is one problem found in a rule definition.
type ValidationError struct {
	Rule    string `json:"rule"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Rule, e.Field, e.Message)
}

// Validate checks a rule the way the engine will read it: the condition and
// action config must parse, and the operator must be one that can match.
// The engine tolerates all of these at run time by recording FAILED or
// SKIPPED rows; Validate reports them before the rule is stored.
// All problems are returned.
func Validate(r domain.WorkflowRule) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Rule: r.ID, Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if err := r.Validate(); err != nil {
		var fe *domain.FieldError
		code := ErrRequiredField
		if errors.As(err, &fe) && fe.Field == "action_type" && r.ActionType != "" {
			code = ErrUnknownAction
		}
		field := "rule"
		if fe != nil {
			field = fe.Field
		}
		add(field, code, "%s", err.Error())
		return errs
	}

	if r.Position < 0 {
		add("position", ErrNegativePos, "position must not be negative, got %d", r.Position)
	}

	if r.HasCondition() {
		cond, err := r.Condition()
		if err != nil {
			add("condition_json", ErrInvalidCond, "%v", err)
		} else if !cond.Operator.Valid() {
			add("condition_json", ErrUnknownOperator, "unknown operator %q", cond.Operator)
		}
	}

	if _, err := r.Action(); err != nil {
		add("action_config", ErrInvalidConfig, "%v", err)
	}
	return errs
}

// ValidateAll validates every rule and reports duplicate IDs.
func ValidateAll(rules []domain.WorkflowRule) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.ID != "" && seen[r.ID] {
			errs = append(errs, ValidationError{
				Rule: r.ID, Field: "id", Code: ErrDuplicateRule,
				Message: "rule defined more than once",
			})
			continue
		}
		seen[r.ID] = true
		errs = append(errs, Validate(r)...)
	}
	return errs
}
