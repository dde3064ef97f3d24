package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/notify"
	"github.com/roach88/switchyard/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// AssertionContext provides what assertions inspect after a run.
type AssertionContext struct {
	Store         *store.Store
	Notifications []notify.Message
	Ctx           context.Context
}

// EvaluateAssertions runs every assertion and returns one message per
// failure. All assertions are evaluated; none stops the others.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertExecution:
			err = assertExecution(actx, a)
		case AssertExecutionCount:
			err = assertExecutionCount(actx, a)
		case AssertContact:
			err = assertContact(actx, a)
		case AssertEventCount:
			err = assertEventCount(actx, a)
		case AssertNotification:
			err = assertNotification(actx.Notifications, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return failures
}

// assertExecution checks the ledger row for a rule, optionally narrowed to
// one event. With several matching rows the latest is compared.
func assertExecution(actx *AssertionContext, a Assertion) error {
	rows, err := actx.Store.ListExecutions(actx.Ctx, store.ExecutionFilter{RuleID: a.Rule, EventID: a.Event, Limit: 1})
	if err != nil {
		return err
	}
	target := describeRow(a.Rule, a.Event)
	if len(rows) == 0 {
		return &AssertionError{
			Type:     AssertExecution,
			Expected: fmt.Sprintf("%s with status %s", target, a.Status),
			Actual:   "no ledger row",
		}
	}
	row := rows[0]
	if string(row.Status) != a.Status {
		return &AssertionError{
			Type:     AssertExecution,
			Expected: fmt.Sprintf("%s with status %s", target, a.Status),
			Actual:   fmt.Sprintf("status %s (error %q)", row.Status, row.Error),
		}
	}
	if a.Error != "" && !strings.Contains(row.Error, a.Error) {
		return &AssertionError{
			Type:     AssertExecution,
			Expected: fmt.Sprintf("%s error containing %q", target, a.Error),
			Actual:   fmt.Sprintf("error %q", row.Error),
		}
	}
	return nil
}

func assertExecutionCount(actx *AssertionContext, a Assertion) error {
	n, err := actx.Store.CountExecutions(actx.Ctx, store.ExecutionFilter{
		RuleID:  a.Rule,
		EventID: a.Event,
		Status:  domain.ExecutionStatus(a.Status),
	})
	if err != nil {
		return err
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertExecutionCount,
			Expected: fmt.Sprintf("%d ledger rows", *a.Count),
			Actual:   fmt.Sprintf("%d ledger rows", n),
		}
	}
	return nil
}

func assertContact(actx *AssertionContext, a Assertion) error {
	c, err := actx.Store.GetContactByUser(actx.Ctx, a.User)
	if errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Type:     AssertContact,
			Expected: fmt.Sprintf("contact for user %s", a.User),
			Actual:   "contact not found",
		}
	}
	if err != nil {
		return err
	}

	actual := map[string]string{"status": c.Status, "assigned_to": c.AssignedTo}
	for _, field := range []string{"status", "assigned_to"} {
		want, ok := a.Expect[field]
		if !ok {
			continue
		}
		if actual[field] != want {
			return &AssertionError{
				Type:     AssertContact,
				Expected: fmt.Sprintf("user %s %s = %q", a.User, field, want),
				Actual:   fmt.Sprintf("%q", actual[field]),
			}
		}
	}
	return nil
}

func assertEventCount(actx *AssertionContext, a Assertion) error {
	n, err := actx.Store.CountEvents(actx.Ctx, store.EventFilter{
		SubjectID: a.SubjectID,
		Type:      domain.EventType(a.EventType),
	})
	if err != nil {
		return err
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d events", *a.Count),
			Actual:   fmt.Sprintf("%d events", n),
		}
	}
	return nil
}

func assertNotification(msgs []notify.Message, a Assertion) error {
	n := 0
	for _, m := range msgs {
		if a.To != "" && m.To != a.To {
			continue
		}
		if a.Subject != "" && m.Subject != a.Subject {
			continue
		}
		if a.Tag != "" && m.Tag != a.Tag {
			continue
		}
		n++
	}

	desc := describeNotification(a)
	switch {
	case a.Count == nil && n == 0:
		return &AssertionError{
			Type:     AssertNotification,
			Expected: "at least one notification " + desc,
			Actual:   fmt.Sprintf("none among %d sent", len(msgs)),
		}
	case a.Count != nil && n != *a.Count:
		return &AssertionError{
			Type:     AssertNotification,
			Expected: fmt.Sprintf("%d notifications %s", *a.Count, desc),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

func describeRow(rule, event string) string {
	if event == "" {
		return "rule " + rule
	}
	return fmt.Sprintf("rule %s on event %s", rule, event)
}

func describeNotification(a Assertion) string {
	var parts []string
	if a.To != "" {
		parts = append(parts, "to="+a.To)
	}
	if a.Subject != "" {
		parts = append(parts, fmt.Sprintf("subject=%q", a.Subject))
	}
	if a.Tag != "" {
		parts = append(parts, "tag="+a.Tag)
	}
	if len(parts) == 0 {
		return "(any)"
	}
	return "matching " + strings.Join(parts, " ")
}
