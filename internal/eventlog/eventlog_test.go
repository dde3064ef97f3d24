package eventlog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/testutil"
)

type memAppender struct {
	events []domain.DomainEvent
	err    error
}

func (m *memAppender) AppendEvent(_ context.Context, ev domain.DomainEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

type spyEvaluator struct {
	seen  []domain.DomainEvent
	panic bool
	ctxOK bool
}

func (s *spyEvaluator) Evaluate(ctx context.Context, ev domain.DomainEvent) {
	s.seen = append(s.seen, ev)
	s.ctxOK = ctx.Err() == nil
	if s.panic {
		panic("rule exploded")
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLog(store Appender) *Log {
	return NewLog(store, testutil.NewSequence("evt"), testutil.NewStepClock(testutil.DefaultBase, 0), nil)
}

var intake = domain.NewEvent{SubjectID: "user-1", Type: domain.EventTriageTicket, Title: "Intake received"}

func TestWriterAppend_PersistsThenEvaluates(t *testing.T) {
	store := &memAppender{}
	spy := &spyEvaluator{}
	w := NewWriter(newTestLog(store), spy, quietLogger())

	ev, err := w.Append(context.Background(), intake)
	require.NoError(t, err)

	assert.Equal(t, "evt-0001", ev.ID)
	assert.Equal(t, testutil.DefaultBase, ev.CreatedAt)
	require.Len(t, store.events, 1)
	require.Len(t, spy.seen, 1)
	assert.Equal(t, ev, spy.seen[0])
	assert.Equal(t, store.events[0], spy.seen[0])
}

func TestWriterAppend_EvaluatorPanicIsSwallowed(t *testing.T) {
	store := &memAppender{}
	w := NewWriter(newTestLog(store), &spyEvaluator{panic: true}, quietLogger())

	ev, err := w.Append(context.Background(), intake)
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Len(t, store.events, 1)
}

func TestWriterAppend_StoreFailureSkipsEvaluation(t *testing.T) {
	store := &memAppender{err: errors.New("disk full")}
	spy := &spyEvaluator{}
	w := NewWriter(newTestLog(store), spy, quietLogger())

	_, err := w.Append(context.Background(), intake)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, spy.seen)
}

func TestWriterAppend_InvalidEvent(t *testing.T) {
	store := &memAppender{}
	spy := &spyEvaluator{}
	w := NewWriter(newTestLog(store), spy, quietLogger())

	_, err := w.Append(context.Background(), domain.NewEvent{Type: domain.EventTriageTicket, Title: "x"})
	var fe *domain.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "subject_id", fe.Field)
	assert.Empty(t, store.events)
	assert.Empty(t, spy.seen)
}

func TestWriterAppend_EvaluationSurvivesCancelledCaller(t *testing.T) {
	store := &memAppender{}
	spy := &spyEvaluator{}
	w := NewWriter(newTestLog(store), spy, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Append(ctx, intake)
	require.NoError(t, err)
	require.Len(t, spy.seen, 1)
	assert.True(t, spy.ctxOK)
}

func TestWriterAppend_NilEvaluator(t *testing.T) {
	store := &memAppender{}
	w := NewWriter(newTestLog(store), nil, nil)

	_, err := w.Append(context.Background(), intake)
	require.NoError(t, err)
	assert.Len(t, store.events, 1)
}

func TestLogAppendRaw_DoesNotEvaluate(t *testing.T) {
	store := &memAppender{}
	spy := &spyEvaluator{}
	log := newTestLog(store)
	_ = NewWriter(log, spy, quietLogger())

	ev, err := log.AppendRaw(context.Background(), domain.NewEvent{
		SubjectID: "user-1", Type: domain.EventFollowUpAction, Title: "Follow-up due", ActionURL: "/dashboard",
	})
	require.NoError(t, err)

	assert.Equal(t, "/dashboard", ev.ActionURL)
	assert.Len(t, store.events, 1)
	assert.Empty(t, spy.seen)
}

func TestNewLog_Defaults(t *testing.T) {
	store := &memAppender{}
	log := NewLog(store, nil, nil, nil)

	ev, err := log.AppendRaw(context.Background(), intake)
	require.NoError(t, err)
	assert.Len(t, ev.ID, 36)
	assert.False(t, ev.CreatedAt.IsZero())
}
