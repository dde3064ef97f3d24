package engine

import (
	"errors"
	"fmt"
)

// RuleError represents a failure while running one rule.
//
// RuleErrors never leave the engine: the orchestrator converts each one
// into a FAILED ledger row whose error column is Error().
type RuleError struct {
	// Code identifies the error category.
	Code ErrorCode

	// RuleID identifies the rule that failed.
	RuleID string

	// Message is the human-readable description stored in the ledger.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes rule errors.
type ErrorCode string

const (
	// ErrCodeInvalidCondition indicates condition_json could not be parsed.
	ErrCodeInvalidCondition ErrorCode = "INVALID_CONDITION"

	// ErrCodeInvalidConfig indicates action_config does not fit the action type.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// ErrCodeActionFailed indicates the action's side effect returned an error.
	ErrCodeActionFailed ErrorCode = "ACTION_FAILED"

	// ErrCodePanic indicates the action panicked.
	ErrCodePanic ErrorCode = "PANIC"
)

// Error implements the error interface.
func (e *RuleError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *RuleError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether the rule failed before any side effect ran.
func (e *RuleError) IsValidation() bool {
	return e.Code == ErrCodeInvalidCondition || e.Code == ErrCodeInvalidConfig
}

// IsValidationError returns true if err is a validation RuleError.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	var re *RuleError
	return errors.As(err, &re) && re.IsValidation()
}

func newRuleError(code ErrorCode, ruleID string, err error) *RuleError {
	return &RuleError{Code: code, RuleID: ruleID, Message: err.Error(), Err: err}
}

func newPanicError(ruleID string, recovered any) *RuleError {
	return &RuleError{
		Code:    ErrCodePanic,
		RuleID:  ruleID,
		Message: fmt.Sprintf("action panicked: %v", recovered),
	}
}
