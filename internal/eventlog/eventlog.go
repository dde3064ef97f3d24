// Package eventlog appends domain events.
//
// There are two entry points:
//
//   - Writer.Append is the public one. It persists the event and then runs
//     rule evaluation synchronously, swallowing anything evaluation does.
//   - Log.AppendRaw persists the event and does nothing else. Only the
//     engine's CreateDerivedEvent action uses it, which is what keeps a
//     rule from re-triggering the engine.
package eventlog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/ident"
	"github.com/roach88/switchyard/internal/metrics"
)

// Appender persists a materialized event.
// Implemented by *store.Store.
type Appender interface {
	AppendEvent(ctx context.Context, ev domain.DomainEvent) error
}

// Evaluator runs workflow rules for an event. It must not return errors.
// Implemented by *engine.Engine.
type Evaluator interface {
	Evaluate(ctx context.Context, ev domain.DomainEvent)
}

// Log assigns identity and time to events and persists them.
type Log struct {
	store   Appender
	ids     ident.Generator
	clock   ident.Clock
	metrics *metrics.Metrics
}

// NewLog creates a Log. Nil ids or clock fall back to UUIDv7 and the
// system clock.
func NewLog(store Appender, ids ident.Generator, clock ident.Clock, m *metrics.Metrics) *Log {
	if ids == nil {
		ids = ident.UUIDv7{}
	}
	if clock == nil {
		clock = ident.SystemClock{}
	}
	return &Log{store: store, ids: ids, clock: clock, metrics: m}
}

// AppendRaw validates, materializes and stores ev without triggering rule
// evaluation.
func (l *Log) AppendRaw(ctx context.Context, ev domain.NewEvent) (domain.DomainEvent, error) {
	stored, err := l.append(ctx, ev)
	if err != nil {
		return domain.DomainEvent{}, err
	}
	l.metrics.IncrementEventAppended(string(stored.Type), "raw")
	return stored, nil
}

func (l *Log) append(ctx context.Context, ev domain.NewEvent) (domain.DomainEvent, error) {
	if err := ev.Validate(); err != nil {
		return domain.DomainEvent{}, fmt.Errorf("append event: %w", err)
	}
	stored := ev.Materialize(l.ids.NewID(), l.clock.Now())
	if err := l.store.AppendEvent(ctx, stored); err != nil {
		return domain.DomainEvent{}, err
	}
	return stored, nil
}

// Writer is the entry point business code uses to record events.
type Writer struct {
	log       *Log
	evaluator Evaluator
	logger    *slog.Logger
}

// NewWriter creates a Writer. A nil evaluator disables rule evaluation.
func NewWriter(log *Log, evaluator Evaluator, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{log: log, evaluator: evaluator, logger: logger}
}

// Append stores ev and then evaluates workflow rules against it.
//
// The returned error reports only a failure to persist the event. Once
// the row exists Append succeeds, whatever evaluation does, including
// panicking. Evaluation runs detached from ctx cancellation so a caller
// that goes away cannot leave an event half-evaluated.
func (w *Writer) Append(ctx context.Context, ev domain.NewEvent) (domain.DomainEvent, error) {
	stored, err := w.log.append(ctx, ev)
	if err != nil {
		return domain.DomainEvent{}, err
	}
	w.log.metrics.IncrementEventAppended(string(stored.Type), "public")

	w.evaluate(context.WithoutCancel(ctx), stored)
	return stored, nil
}

func (w *Writer) evaluate(ctx context.Context, ev domain.DomainEvent) {
	if w.evaluator == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("workflow evaluation panicked",
				"event_id", ev.ID,
				"event_type", ev.Type,
				"panic", r,
			)
		}
	}()
	w.evaluator.Evaluate(ctx, ev)
}
