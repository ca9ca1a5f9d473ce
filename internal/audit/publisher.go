package audit

import (
	"context"
	"errors"
)

// ErrBufferFull is returned by Queue.Emit when the worker is not keeping up.
var ErrBufferFull = errors.New("audit buffer full")

// Queue hands events to a Worker so request handling never waits on the
// broker. Events that do not fit in the buffer are rejected, not blocked on.
type Queue struct {
	inbox chan Event
}

// NewQueue returns a Queue holding up to size pending events, and the
// Worker that delivers them to next.
func NewQueue(size int, next Publisher, opts ...WorkerOption) (*Queue, *Worker) {
	inbox := make(chan Event, size)
	return &Queue{inbox: inbox}, newWorker(next, inbox, opts...)
}

func (q *Queue) Emit(ctx context.Context, event Event) error {
	select {
	case q.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}
