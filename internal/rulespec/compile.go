package rulespec

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/switchyard/internal/domain"
)

// CompileError is a rule definition error with its source position.
type CompileError struct {
	Rule    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	prefix := e.Field
	if e.Rule != "" {
		prefix = fmt.Sprintf("rule %q: %s", e.Rule, e.Field)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Compile turns one CUE rule struct into a WorkflowRule. The rule ID is the
// struct's label:
//
//	rule: "wf-intake-email": {
//		name:    "Welcome email"
//		trigger: "AccountRegistration"
//		action: {
//			type: "SEND_EMAIL"
//			config: {template: "intake-welcome", to: "contact"}
//		}
//	}
//
// Enabled defaults to true and position to 0. Timestamps and CreatedBy are
// left for the caller.
func Compile(v cue.Value) (domain.WorkflowRule, error) {
	if err := v.Err(); err != nil {
		return domain.WorkflowRule{}, formatCUEError(err)
	}

	var r domain.WorkflowRule
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		r.ID = strings.Trim(labels[len(labels)-1].String(), `"`)
	}
	c := compiler{rule: r.ID}

	var err error
	if r.Name, err = c.requiredString(v, "name"); err != nil {
		return r, err
	}
	if r.Description, err = c.optionalString(v, "description"); err != nil {
		return r, err
	}
	trigger, err := c.requiredString(v, "trigger")
	if err != nil {
		return r, err
	}
	r.TriggerEvent = domain.EventType(trigger)

	if r.ConditionRaw, err = c.condition(v); err != nil {
		return r, err
	}

	actionVal := v.LookupPath(cue.ParsePath("action"))
	if !actionVal.Exists() {
		return r, c.errorf(v, "action", "action is required")
	}
	actionType, err := c.requiredString(actionVal, "type")
	if err != nil {
		return r, err
	}
	r.ActionType = domain.ActionType(actionType)
	if r.ActionConfig, err = c.json(actionVal, "config", "action.config"); err != nil {
		return r, err
	}
	if r.ActionConfig == "" {
		return r, c.errorf(actionVal, "action.config", "action.config is required")
	}

	r.Enabled = true
	if enabledVal := v.LookupPath(cue.ParsePath("enabled")); enabledVal.Exists() {
		b, err := enabledVal.Bool()
		if err != nil {
			return r, c.cueError("enabled", err)
		}
		r.Enabled = b
	}
	if posVal := v.LookupPath(cue.ParsePath("position")); posVal.Exists() {
		n, err := posVal.Int64()
		if err != nil {
			return r, c.cueError("position", err)
		}
		r.Position = int(n)
	}
	return r, nil
}

type compiler struct {
	rule string
}

func (c compiler) errorf(v cue.Value, field, format string, args ...any) *CompileError {
	return &CompileError{Rule: c.rule, Field: field, Message: fmt.Sprintf(format, args...), Pos: v.Pos()}
}

func (c compiler) cueError(field string, err error) error {
	if ce, ok := formatCUEError(err).(*CompileError); ok {
		ce.Rule = c.rule
		ce.Field = field
		return ce
	}
	return &CompileError{Rule: c.rule, Field: field, Message: err.Error()}
}

func (c compiler) requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", c.errorf(v, field, "%s is required", field)
	}
	s, err := fv.String()
	if err != nil {
		return "", c.cueError(field, err)
	}
	if strings.TrimSpace(s) == "" {
		return "", c.errorf(fv, field, "%s must not be empty", field)
	}
	return s, nil
}

func (c compiler) optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", c.cueError(field, err)
	}
	return s, nil
}

// json renders an optional struct field as compact JSON, or "" when absent.
func (c compiler) json(v cue.Value, field, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	if fv.IncompleteKind() != cue.StructKind {
		return "", c.errorf(fv, name, "%s must be a struct", name)
	}
	b, err := fv.MarshalJSON()
	if err != nil {
		return "", c.cueError(name, err)
	}
	return string(b), nil
}

func (c compiler) condition(v cue.Value) (string, error) {
	raw, err := c.json(v, "condition", "condition")
	if err != nil || raw == "" {
		return raw, err
	}
	if _, err := domain.ParseCondition(raw); err != nil {
		return "", c.errorf(v.LookupPath(cue.ParsePath("condition")), "condition", "%v", err)
	}
	return raw, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
