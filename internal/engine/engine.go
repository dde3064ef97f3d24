package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/switchyard/internal/domain"
	"github.com/roach88/switchyard/internal/ident"
	"github.com/roach88/switchyard/internal/metrics"
	"github.com/roach88/switchyard/internal/notify"
)

// Store is the storage the engine reads and writes: the rules table, the
// execution ledger and the contacts projection.
// Implemented by *store.Store.
type Store interface {
	ListCandidateRules(ctx context.Context, eventType domain.EventType) ([]domain.WorkflowRule, error)
	RecordExecution(ctx context.Context, e domain.RuleExecution) error

	UpdateContactStatus(ctx context.Context, userID, status string, at time.Time) (int64, error)
	AssignContactOwner(ctx context.Context, userID, staffID string, at time.Time) (int64, error)
	ContactOwner(ctx context.Context, userID string) (string, error)
	UserEmail(ctx context.Context, userID string) (string, error)
}

// RawAppender appends an event without triggering evaluation.
// Implemented by *eventlog.Log.
type RawAppender interface {
	AppendRaw(ctx context.Context, ev domain.NewEvent) (domain.DomainEvent, error)
}

// Notifier accepts a message for asynchronous delivery and returns at once.
// Implemented by *notify.Dispatcher.
type Notifier interface {
	Notify(msg notify.Message) bool
}

// Defaults for the notification text.
const (
	DefaultBrand        = "Studio Ordo"
	DefaultDashboardURL = "/dashboard"
)

// Engine evaluates workflow rules against domain events.
//
// For each event it loads the enabled rules whose trigger matches the
// event type, in position order, and writes exactly one ledger row per
// rule: SKIPPED when the condition does not match, otherwise SUCCESS or
// FAILED depending on the action. A failing rule never stops the rules
// after it, and nothing that happens during evaluation is returned to the
// caller.
//
// Thread-safety: Evaluate may be called concurrently for different events.
// The engine holds no mutable state; rules are re-read on every call.
type Engine struct {
	store    Store
	raw      RawAppender
	notifier Notifier

	logger       *slog.Logger
	metrics      *metrics.Metrics
	clock        ident.Clock
	ids          ident.Generator
	brand        string
	dashboardURL string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records rule outcomes and evaluation latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock sets the time source for ledger rows and contact updates.
func WithClock(c ident.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDs sets the ledger row ID generator.
func WithIDs(g ident.Generator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithBrand sets the product name used in notification subjects.
func WithBrand(brand string) Option {
	return func(e *Engine) {
		if brand != "" {
			e.brand = brand
		}
	}
}

// WithDashboardURL sets the link used in notifications and derived events.
func WithDashboardURL(url string) Option {
	return func(e *Engine) {
		if url != "" {
			e.dashboardURL = url
		}
	}
}

// New creates an Engine.
func New(s Store, raw RawAppender, n Notifier, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		raw:          raw,
		notifier:     n,
		logger:       slog.Default(),
		clock:        ident.SystemClock{},
		ids:          ident.UUIDv7{},
		brand:        DefaultBrand,
		dashboardURL: DefaultDashboardURL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every candidate rule for ev. It never returns an error.
//
// If the candidate rules cannot be read, typically because the database
// predates the rules table, the engine is treated as absent for this
// event: nothing is executed and no ledger row is written.
func (e *Engine) Evaluate(ctx context.Context, ev domain.DomainEvent) {
	start := time.Now()
	defer func() { e.metrics.ObserveEvaluateLatency(time.Since(start)) }()

	rules, err := e.store.ListCandidateRules(ctx, ev.Type)
	if err != nil {
		e.metrics.IncrementEngineAbsent()
		e.logger.Debug("workflow engine unavailable",
			"event_id", ev.ID,
			"event_type", ev.Type,
			"error", err,
		)
		return
	}

	for _, rule := range rules {
		e.evaluateRule(ctx, rule, ev)
	}
}

// evaluateRule decides the outcome of one candidate rule and records it.
func (e *Engine) evaluateRule(ctx context.Context, rule domain.WorkflowRule, ev domain.DomainEvent) {
	e.logger.Debug("evaluating rule",
		"rule_id", rule.ID,
		"event_id", ev.ID,
		"action", rule.ActionType,
	)

	if rule.HasCondition() {
		cond, err := rule.Condition()
		if err != nil {
			e.record(ctx, rule, ev, failed(newRuleError(ErrCodeInvalidCondition, rule.ID, err)))
			return
		}
		if !Matches(cond, ev) {
			e.recordSkipped(ctx, rule, ev)
			return
		}
	}

	e.record(ctx, rule, ev, e.dispatch(ctx, rule, ev))
}

func (e *Engine) recordSkipped(ctx context.Context, rule domain.WorkflowRule, ev domain.DomainEvent) {
	e.logger.Debug("rule skipped: condition not met", "rule_id", rule.ID, "event_id", ev.ID)
	e.write(ctx, domain.RuleExecution{
		RuleID:  rule.ID,
		EventID: ev.ID,
		Status:  domain.StatusSkipped,
	})
}

func (e *Engine) record(ctx context.Context, rule domain.WorkflowRule, ev domain.DomainEvent, res Result) {
	switch res.Outcome {
	case OutcomeSuccess:
		e.logger.Info("rule fired",
			"rule_id", rule.ID,
			"event_id", ev.ID,
			"action", rule.ActionType,
			"detail", res.Detail,
		)
	default:
		e.logger.Warn("rule failed",
			"rule_id", rule.ID,
			"event_id", ev.ID,
			"action", rule.ActionType,
			"outcome", res.Outcome.String(),
			"code", res.Err.Code,
			"error", res.ErrorText(),
		)
	}

	e.write(ctx, domain.RuleExecution{
		RuleID:  rule.ID,
		EventID: ev.ID,
		Status:  res.Status(),
		Error:   res.ErrorText(),
	})
}

// write appends the ledger row. A ledger failure is logged and dropped so
// the next rule still runs.
func (e *Engine) write(ctx context.Context, row domain.RuleExecution) {
	row.ID = e.ids.NewID()
	row.ExecutedAt = e.clock.Now()

	if err := e.store.RecordExecution(ctx, row); err != nil {
		e.logger.Error("record rule execution failed",
			"rule_id", row.RuleID,
			"event_id", row.EventID,
			"status", row.Status,
			"error", err,
		)
		return
	}
	e.metrics.IncrementRuleOutcome(string(row.Status))
}
