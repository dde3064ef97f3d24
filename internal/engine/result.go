package engine

import "github.com/roach88/switchyard/internal/domain"

// Outcome classifies a dispatch result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeValidationError
	OutcomeRuntimeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeValidationError:
		return "validation_error"
	case OutcomeRuntimeError:
		return "runtime_error"
	}
	return "unknown"
}

// Result is what the dispatcher returns instead of an error. The
// orchestrator turns every Result into exactly one ledger row.
type Result struct {
	Outcome Outcome

	// Err is set for the two error outcomes.
	Err *RuleError

	// Detail describes a successful result for logs, e.g. "no recipient".
	Detail string
}

func success(detail string) Result {
	return Result{Outcome: OutcomeSuccess, Detail: detail}
}

func failed(err *RuleError) Result {
	if err.IsValidation() {
		return Result{Outcome: OutcomeValidationError, Err: err}
	}
	return Result{Outcome: OutcomeRuntimeError, Err: err}
}

// Status maps the result to its ledger status.
func (r Result) Status() domain.ExecutionStatus {
	if r.Outcome == OutcomeSuccess {
		return domain.StatusSuccess
	}
	return domain.StatusFailed
}

// ErrorText is the ledger error column: empty on success.
func (r Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
