package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	otelx "github.com/md-rashed-zaman/ariaconcierge/libs/otel"
)

var ErrQueueFull = errors.New("notification queue full")

type DispatcherConfig struct {
	QueueSize      int
	PublishTimeout time.Duration
}

type job struct {
	ev    Event
	trace otelx.Detached
	done  chan error
}

// Dispatcher queues events and delivers them from a single worker goroutine.
type Dispatcher struct {
	sink    Sink
	logger  *slog.Logger
	queue   chan job
	timeout time.Duration
	now     func() time.Time
}

func NewDispatcher(sink Sink, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = NewLogSink(logger)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 3 * time.Second
	}
	return &Dispatcher{
		sink:    sink,
		logger:  logger,
		queue:   make(chan job, cfg.QueueSize),
		timeout: cfg.PublishTimeout,
		now:     time.Now,
	}
}

// Dispatch enqueues ev without blocking. The returned channel yields the delivery result
// once; callers on the booking path never read it.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) <-chan error {
	if ev.EmittedAt.IsZero() {
		ev.EmittedAt = d.now().UTC()
	}
	j := job{ev: ev, trace: otelx.Detach(ctx), done: make(chan error, 1)}
	select {
	case d.queue <- j:
	default:
		d.logger.Warn("notification dropped", "type", ev.Type, "tool", ev.Tool, "session_id", ev.SessionID, "err", ErrQueueFull)
		j.done <- ErrQueueFull
		close(j.done)
	}
	return j.done
}

// Run drains the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.queue:
			d.deliver(j)
		}
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx := j.trace.Attach(context.Background())
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.sink.Publish(ctx, j.ev)
	if err != nil {
		d.logger.Warn("notification failed", "type", j.ev.Type, "tool", j.ev.Tool, "session_id", j.ev.SessionID, "err", err)
	}
	j.done <- err
	close(j.done)
}

// BroadcastRepeated dispatches ev n times, interval apart, in the background. The returned
// channel closes after the last dispatch or when ctx is cancelled.
func (d *Dispatcher) BroadcastRepeated(ctx context.Context, ev Event, n int, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			if i > 0 {
				t := time.NewTimer(interval)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
			ev.EmittedAt = time.Time{}
			d.Dispatch(ctx, ev)
		}
	}()
	return done
}
