package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/switchyard/internal/metrics"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingPort blocks every Send until release is closed.
type blockingPort struct {
	release chan struct{}
	mu      sync.Mutex
	sent    []Message
}

func (p *blockingPort) Send(ctx context.Context, msg Message) error {
	<-p.release
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return nil
}

type failingPort struct{}

func (failingPort) Send(context.Context, Message) error { return errors.New("smtp down") }

func TestDispatcher_DeliversAfterClose(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(rec, WithLogger(quietLogger()))
	d.Start()

	assert.True(t, d.Notify(Message{To: "a@example.com", Tag: "workflow-welcome"}))
	assert.True(t, d.Notify(Message{To: "b@example.com", Tag: "workflow-welcome"}))
	d.Close()

	msgs := rec.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "a@example.com", msgs[0].To)
	assert.Equal(t, "b@example.com", msgs[1].To)
}

func TestDispatcher_NotifyDoesNotBlockOnSlowPort(t *testing.T) {
	port := &blockingPort{release: make(chan struct{})}
	d := NewDispatcher(port, WithLogger(quietLogger()), WithBuffer(1))
	d.Start()

	done := make(chan struct{})
	go func() {
		// The worker takes the first message and blocks in Send; the
		// second fills the buffer; the third must be dropped, not block.
		d.Notify(Message{To: "1"})
		time.Sleep(20 * time.Millisecond)
		d.Notify(Message{To: "2"})
		d.Notify(Message{To: "3"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a slow port")
	}

	close(port.release)
	d.Close()
	assert.LessOrEqual(t, len(port.sent), 2)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// Never started: nothing drains the buffer until Close.
	rec := &Recorder{}
	d := NewDispatcher(rec, WithLogger(quietLogger()), WithBuffer(1), WithMetrics(m))

	assert.True(t, d.Notify(Message{To: "1"}))
	assert.False(t, d.Notify(Message{To: "2"}))

	d.Close()
	assert.Len(t, rec.Messages(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("queued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("sent")))
}

func TestDispatcher_NotifyAfterCloseIsDropped(t *testing.T) {
	d := NewDispatcher(&Recorder{}, WithLogger(quietLogger()))
	d.Start()
	d.Close()

	assert.False(t, d.Notify(Message{To: "late"}))
	assert.NotPanics(t, d.Close)
}

func TestDispatcher_PortFailureIsCounted(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	d := NewDispatcher(failingPort{}, WithLogger(quietLogger()), WithMetrics(m), WithWorkers(2))
	d.Start()

	d.Notify(Message{To: "x"})
	d.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("failed")))
}

func TestDispatcher_ConcurrentNotify(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(rec, WithLogger(quietLogger()), WithBuffer(1000))
	d.Start()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Notify(Message{To: "x"})
		}()
	}
	wg.Wait()
	d.Close()

	assert.Len(t, rec.Messages(), 50)
}
