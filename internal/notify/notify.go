// Package notify hands outbound messages to a delivery port without
// blocking the caller.
//
// The engine calls Dispatcher.Notify, which only enqueues. A worker
// goroutine drains the queue into a Port (a log line, a Redis list, or an
// in-memory recorder in tests). Delivery failures are logged and counted;
// they never reach the caller.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/switchyard/internal/metrics"
)

// Message is one outbound notification.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	TextBody string `json:"text_body"`
	HTMLBody string `json:"html_body"`
	Tag      string `json:"tag"`
}

// Port delivers a message somewhere. Implementations may block.
type Port interface {
	Send(ctx context.Context, msg Message) error
}

// Defaults for NewDispatcher.
const (
	DefaultBuffer      = 256
	DefaultSendTimeout = 10 * time.Second
)

// Dispatcher queues messages for asynchronous delivery.
//
// Thread-safety model:
//   - Notify(): safe from any goroutine, never blocks
//   - Start(): call once
//   - Close(): stops intake, drains the queue, waits for the worker
type Dispatcher struct {
	port    Port
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	workers int

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	wg     sync.WaitGroup
	once   sync.Once
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records hand-off results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithBuffer sets the queue capacity. Messages beyond it are dropped.
func WithBuffer(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Message, n)
		}
	}
}

// WithSendTimeout bounds each Port.Send call.
func WithSendTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithWorkers sets the number of delivery goroutines. Default: 1.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// NewDispatcher creates a dispatcher delivering to port.
// Call Start before messages are expected to flow.
func NewDispatcher(port Port, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		port:    port,
		logger:  slog.Default(),
		timeout: DefaultSendTimeout,
		workers: 1,
		queue:   make(chan Message, DefaultBuffer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the delivery workers.
func (d *Dispatcher) Start() {
	d.once.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.run()
		}
	})
}

// Notify enqueues msg and returns immediately. It reports false when the
// message was dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Notify(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(msg, "closed")
		return false
	}

	select {
	case d.queue <- msg:
		d.metrics.IncrementNotification("queued")
		return true
	default:
		d.drop(msg, "queue full")
		return false
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
// Safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	// Drain inline if Start was never called.
	d.once.Do(func() {
		d.wg.Add(1)
		go d.run()
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.port.Send(ctx, msg); err != nil {
		d.metrics.IncrementNotification("failed")
		d.logger.Warn("notification delivery failed",
			"to", msg.To,
			"tag", msg.Tag,
			"error", err,
		)
		return
	}
	d.metrics.IncrementNotification("sent")
	d.logger.Debug("notification delivered", "to", msg.To, "tag", msg.Tag)
}

func (d *Dispatcher) drop(msg Message, reason string) {
	d.metrics.IncrementNotification("dropped")
	d.logger.Warn("notification dropped",
		"to", msg.To,
		"tag", msg.Tag,
		"reason", reason,
	)
}
