package domain

import "time"

// ExecutionStatus is the outcome of one rule attempt.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "SUCCESS"
	StatusSkipped ExecutionStatus = "SKIPPED"
	StatusFailed  ExecutionStatus = "FAILED"
)

// Valid reports whether s is a known status.
func (s ExecutionStatus) Valid() bool {
	return s == StatusSuccess || s == StatusSkipped || s == StatusFailed
}

// RuleExecution is one append-only ledger row. Error is set only for FAILED.
type RuleExecution struct {
	ID         string          `json:"id"`
	RuleID     string          `json:"rule_id"`
	EventID    string          `json:"feed_event_id"`
	Status     ExecutionStatus `json:"status"`
	Error      string          `json:"error,omitempty"`
	ExecutedAt time.Time       `json:"executed_at"`
}
