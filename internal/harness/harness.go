package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/engine"
	"github.com/roach88/switchyard/internal/eventlog"
	"github.com/roach88/switchyard/internal/notify"
	"github.com/roach88/switchyard/internal/rulespec"
	"github.com/roach88/switchyard/internal/store"
	"github.com/roach88/switchyard/internal/testutil"
)

// Harness holds one scenario's wiring.
type Harness struct {
	store  *store.Store
	writer *eventlog.Writer
	clock  *testutil.StepClock
	notes  *notify.Recorder
	result *Result
}

// Run executes a scenario against a fresh in-memory database and the real
// engine, then evaluates its assertions.
//
// IDs and time are deterministic: events are evt-0001, evt-0002, ... in
// append order (derived events included), ledger rows exec-0001, ... and
// the clock starts at testutil.DefaultBase and advances one millisecond
// per reading. Running the same scenario twice yields the same trace.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.OpenUnmigrated(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	version := scenario.SchemaVersion
	if version == 0 {
		version = store.LatestSchemaVersion()
	}
	if err := st.MigrateTo(version); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	h := &Harness{
		store:  st,
		clock:  testutil.NewStepClock(testutil.DefaultBase, 0),
		notes:  &notify.Recorder{},
		result: NewResult(),
	}
	h.wire(scenario)

	ctx := context.Background()
	if err := h.seed(ctx, scenario); err != nil {
		return nil, err
	}
	for i, step := range scenario.Events {
		_, err := h.writer.Append(ctx, domain.NewEvent{
			SubjectID:   step.SubjectID,
			Type:        domain.EventType(step.Type),
			Title:       step.Title,
			Description: step.Description,
			ActionURL:   step.ActionURL,
		})
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}

	actx := &AssertionContext{Store: st, Notifications: h.notes.Messages(), Ctx: ctx}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// wire builds two event logs over one ID sequence and clock. Events
// appended through the public writer are traced as inputs; events the
// engine appends through the raw path are traced as derived.
func (h *Harness) wire(scenario *Scenario) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eventIDs := testutil.NewSequence("evt")

	public := eventlog.NewLog(tracingAppender{h.store, h.result, false}, eventIDs, h.clock, nil)
	raw := eventlog.NewLog(tracingAppender{h.store, h.result, true}, eventIDs, h.clock, nil)

	eng := engine.New(
		tracingStore{h.store, h.result},
		raw,
		tracingNotifier{h.notes, h.result},
		engine.WithLogger(logger),
		engine.WithClock(h.clock),
		engine.WithIDs(testutil.NewSequence("exec")),
		engine.WithBrand(scenario.Brand),
		engine.WithDashboardURL(scenario.DashboardURL),
	)
	h.writer = eventlog.NewWriter(public, eng, logger)
}

func (h *Harness) seed(ctx context.Context, scenario *Scenario) error {
	at := testutil.DefaultBase

	for _, u := range scenario.Users {
		if err := h.store.CreateUser(ctx, domain.User{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}, at); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	for _, c := range scenario.Contacts {
		id := c.ID
		if id == "" {
			id = "contact-" + c.UserID
		}
		err := h.store.CreateContact(ctx, domain.Contact{
			ID:         id,
			Email:      c.Email,
			FullName:   c.FullName,
			UserID:     c.UserID,
			Status:     c.Status,
			AssignedTo: c.AssignedTo,
			CreatedAt:  at,
			UpdatedAt:  at,
		})
		if err != nil {
			return fmt.Errorf("seed contact %s: %w", id, err)
		}
	}

	rules, err := scenarioRules(scenario)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}
	if !scenario.KeepSeedRules {
		if _, err := h.store.DB().ExecContext(ctx, `DELETE FROM workflow_rules`); err != nil {
			return fmt.Errorf("clear seed rules: %w", err)
		}
	}
	for _, r := range rules {
		r.CreatedAt, r.UpdatedAt = at, at
		if err := h.store.CreateRule(ctx, r); err != nil {
			return fmt.Errorf("seed rule: %w", err)
		}
	}
	return nil
}

// scenarioRules collects the rules from the CUE file, then the inline list.
func scenarioRules(scenario *Scenario) ([]domain.WorkflowRule, error) {
	var rules []domain.WorkflowRule
	if scenario.RulesFile != "" {
		path := scenario.RulesFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(scenario.dir, path)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("rules file: %w", err)
		}
		loaded, errs := rulespec.LoadSource(path, string(src), rulespec.FailFast)
		if len(errs) > 0 {
			return nil, fmt.Errorf("rules file: %w", errs[0])
		}
		rules = append(rules, loaded...)
	}
	for _, step := range scenario.Rules {
		r, err := step.rule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// tracingAppender records every stored event.
type tracingAppender struct {
	store   *store.Store
	result  *Result
	derived bool
}

func (a tracingAppender) AppendEvent(ctx context.Context, ev domain.DomainEvent) error {
	if err := a.store.AppendEvent(ctx, ev); err != nil {
		return err
	}
	a.result.add(TraceEvent{
		Kind:      KindEvent,
		ID:        ev.ID,
		Type:      string(ev.Type),
		SubjectID: ev.SubjectID,
		Title:     ev.Title,
		Derived:   a.derived,
	})
	return nil
}

// tracingStore records every ledger row the engine writes.
type tracingStore struct {
	*store.Store
	result *Result
}

func (s tracingStore) RecordExecution(ctx context.Context, e domain.RuleExecution) error {
	if err := s.Store.RecordExecution(ctx, e); err != nil {
		return err
	}
	s.result.add(TraceEvent{
		Kind:   KindExecution,
		ID:     e.ID,
		Rule:   e.RuleID,
		Event:  e.EventID,
		Status: string(e.Status),
		Error:  e.Error,
	})
	return nil
}

// tracingNotifier records every message handed to the notifier.
type tracingNotifier struct {
	rec    *notify.Recorder
	result *Result
}

func (n tracingNotifier) Notify(msg notify.Message) bool {
	n.result.add(TraceEvent{
		Kind:        KindNotification,
		To:          msg.To,
		MailSubject: msg.Subject,
		Tag:         msg.Tag,
	})
	return n.rec.Notify(msg)
}
