package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/eventlog"
	"github.com/roach88/switchyard/internal/metrics"
	"github.com/roach88/switchyard/internal/notify"
	"github.com/roach88/switchyard/internal/store"
	"github.com/roach88/switchyard/internal/testutil"
)

// fixture wires a real SQLite store, the event log and an engine with
// deterministic IDs and time. Seed rules are removed.
type fixture struct {
	store   *store.Store
	log     *eventlog.Log
	writer  *eventlog.Writer
	engine  *Engine
	notes   *notify.Recorder
	metrics *metrics.Metrics
	clock   *testutil.StepClock
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.DB().Exec(`DELETE FROM workflow_rules`)
	require.NoError(t, err)

	clock := testutil.NewStepClock(testutil.DefaultBase, 0)
	m := metrics.New(prometheus.NewRegistry())
	log := eventlog.NewLog(s, testutil.NewSequence("evt"), clock, m)
	notes := &notify.Recorder{}

	base := []Option{
		WithLogger(quietLogger()),
		WithClock(clock),
		WithIDs(testutil.NewSequence("exec")),
		WithMetrics(m),
	}
	eng := New(s, log, notes, append(base, opts...)...)

	return &fixture{
		store:   s,
		log:     log,
		writer:  eventlog.NewWriter(log, eng, quietLogger()),
		engine:  eng,
		notes:   notes,
		metrics: m,
		clock:   clock,
	}
}

// addRule stores an enabled rule. cond may be "".
func (f *fixture) addRule(t *testing.T, id string, trigger domain.EventType, cond string, action domain.ActionType, config string, position int) {
	t.Helper()
	require.NoError(t, f.store.CreateRule(context.Background(), domain.WorkflowRule{
		ID:           id,
		Name:         id,
		TriggerEvent: trigger,
		ConditionRaw: cond,
		ActionType:   action,
		ActionConfig: config,
		Enabled:      true,
		Position:     position,
		CreatedAt:    testutil.DefaultBase,
		UpdatedAt:    testutil.DefaultBase,
	}))
}

// addContact stores a user and a contact linked to it.
func (f *fixture) addContact(t *testing.T, userID, email, status, owner string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.CreateUser(ctx, domain.User{ID: userID, Email: email}, testutil.DefaultBase))
	require.NoError(t, f.store.CreateContact(ctx, domain.Contact{
		ID:         "c-" + userID,
		Email:      email,
		UserID:     userID,
		Status:     status,
		AssignedTo: owner,
		CreatedAt:  testutil.DefaultBase,
		UpdatedAt:  testutil.DefaultBase,
	}))
}

func (f *fixture) emit(t *testing.T, typ domain.EventType, title string) domain.DomainEvent {
	t.Helper()
	ev, err := f.writer.Append(context.Background(), domain.NewEvent{
		SubjectID: "user-1",
		Type:      typ,
		Title:     title,
	})
	require.NoError(t, err)
	return ev
}

// ledger returns the rows for one event in write order.
func (f *fixture) ledger(t *testing.T, eventID string) []domain.RuleExecution {
	t.Helper()
	rows, err := f.store.ListExecutions(context.Background(), store.ExecutionFilter{EventID: eventID, Oldest: true})
	require.NoError(t, err)
	return rows
}

func (f *fixture) ruleRows(t *testing.T, ruleID string) []domain.RuleExecution {
	t.Helper()
	rows, err := f.store.ListExecutions(context.Background(), store.ExecutionFilter{RuleID: ruleID, Oldest: true})
	require.NoError(t, err)
	return rows
}
