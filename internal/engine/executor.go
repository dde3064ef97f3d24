package engine

import (
	"context"
	"fmt"
	"html"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/notify"
)

// dispatch runs the rule's action against ev and reports the outcome.
//
// The action config is parsed here, at execution time, so a rule stored
// with a malformed config becomes a validation error for that rule alone.
// Panics inside an action are recovered into a runtime error.
//
// dispatch never panics and never returns a Go error.
func (e *Engine) dispatch(ctx context.Context, rule domain.WorkflowRule, ev domain.DomainEvent) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(newPanicError(rule.ID, r))
		}
	}()

	action, err := rule.Action()
	if err != nil {
		return failed(newRuleError(ErrCodeInvalidConfig, rule.ID, err))
	}

	// One case per action kind. ParseAction returns nothing else.
	switch a := action.(type) {
	case domain.UpdateSubjectStatus:
		return e.updateSubjectStatus(ctx, rule, ev, a)
	case domain.AssignOwner:
		return e.assignOwner(ctx, rule, ev, a)
	case domain.SendNotification:
		return e.sendNotification(ctx, rule, ev, a)
	case domain.CreateDerivedEvent:
		return e.createDerivedEvent(ctx, rule, ev, a)
	}

	return failed(&RuleError{
		Code:    ErrCodeInvalidConfig,
		RuleID:  rule.ID,
		Message: fmt.Sprintf("unsupported action %T", action),
	})
}

// updateSubjectStatus sets the status of the subject's contact. A subject
// with no contact updates zero rows and still succeeds.
func (e *Engine) updateSubjectStatus(ctx context.Context, rule domain.WorkflowRule, ev domain.DomainEvent, a domain.UpdateSubjectStatus) Result {
	n, err := e.store.UpdateContactStatus(ctx, ev.SubjectID, a.ToStatus, e.clock.Now())
	if err != nil {
		return failed(newRuleError(ErrCodeActionFailed, rule.ID, err))
	}
	return success(fmt.Sprintf("%d contact(s) set to %s", n, a.ToStatus))
}

// assignOwner sets the owner of the subject's contact. Zero rows succeeds.
func (e *Engine) assignOwner(ctx context.Context, rule domain.WorkflowRule, ev domain.DomainEvent, a domain.AssignOwner) Result {
	n, err := e.store.AssignContactOwner(ctx, ev.SubjectID, a.StaffID, e.clock.Now())
	if err != nil {
		return failed(newRuleError(ErrCodeActionFailed, rule.ID, err))
	}
	return success(fmt.Sprintf("%d contact(s) assigned to %s", n, a.StaffID))
}

// sendNotification resolves the recipient and hands the message to the
// notifier without waiting for delivery. No resolvable recipient is a no-op.
func (e *Engine) sendNotification(ctx context.Context, rule domain.WorkflowRule, ev domain.DomainEvent, a domain.SendNotification) Result {
	to, err := e.resolveRecipient(ctx, a.To, ev.SubjectID)
	if err != nil {
		return failed(newRuleError(ErrCodeActionFailed, rule.ID, err))
	}
	if to == "" {
		return success("no recipient")
	}

	e.notifier.Notify(e.composeMessage(a, to))
	return success("notification handed off")
}

// resolveRecipient maps the "to" field to an address:
//   - "contact": the subject's own email
//   - "assigned_staff": the email of whoever owns the subject's contact
//   - anything else: used as a literal address
//
// "" means no address could be found.
func (e *Engine) resolveRecipient(ctx context.Context, to, subjectID string) (string, error) {
	switch to {
	case domain.RecipientContact:
		return e.store.UserEmail(ctx, subjectID)
	case domain.RecipientAssignedStaff:
		owner, err := e.store.ContactOwner(ctx, subjectID)
		if err != nil || owner == "" {
			return "", err
		}
		return e.store.UserEmail(ctx, owner)
	default:
		return to, nil
	}
}

func (e *Engine) composeMessage(a domain.SendNotification, to string) notify.Message {
	subject := fmt.Sprintf("%s - %s", e.brand, a.Template)
	if a.SubjectOverride != nil {
		subject = *a.SubjectOverride
	}
	return notify.Message{
		To:      to,
		Subject: subject,
		TextBody: fmt.Sprintf("Automated notification: %s - see your %s dashboard for details: %s",
			a.Template, e.brand, e.dashboardURL),
		HTMLBody: fmt.Sprintf(`<p>Automated notification: <strong>%s</strong></p><p><a href="%s">View dashboard</a></p>`,
			html.EscapeString(a.Template), html.EscapeString(e.dashboardURL)),
		Tag: "workflow-" + a.Template,
	}
}

// createDerivedEvent appends a follow-up event for the same subject through
// the raw append path, which never re-enters the engine. delay_hours is
// accepted but the event is written immediately.
func (e *Engine) createDerivedEvent(ctx context.Context, rule domain.WorkflowRule, ev domain.DomainEvent, a domain.CreateDerivedEvent) Result {
	derived, err := e.raw.AppendRaw(ctx, domain.NewEvent{
		SubjectID:   ev.SubjectID,
		Type:        a.EventType,
		Title:       a.Title,
		Description: a.Description,
		ActionURL:   e.dashboardURL,
	})
	if err != nil {
		return failed(newRuleError(ErrCodeActionFailed, rule.ID, err))
	}
	return success("derived event " + derived.ID)
}
