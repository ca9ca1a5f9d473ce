package audit

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Worker drains a Queue into the downstream publisher. Delivery failures are
// logged and the event is dropped; the operator error log remains the
// authoritative failure record.
type Worker struct {
	next         Publisher
	inbox        <-chan Event
	logger       *slog.Logger
	drainTimeout time.Duration
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

func WithLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = l }
}

// WithDrainTimeout bounds how long Run keeps delivering buffered events
// after its context is cancelled.
func WithDrainTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) { w.drainTimeout = d }
}

func newWorker(next Publisher, inbox <-chan Event, opts ...WorkerOption) *Worker {
	w := &Worker{
		next:         next,
		inbox:        inbox,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		drainTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run delivers events until ctx is cancelled, then flushes what is already
// buffered. It always returns nil so it can sit in an errgroup.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case event := <-w.inbox:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-w.inbox:
			w.deliver(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event Event) {
	if err := w.next.Emit(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "audit delivery failed",
			"request_id", event.RequestID,
			"action", event.Action,
			"error", err,
		)
	}
}
