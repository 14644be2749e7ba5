package event

import (
	"sync"

	"github.com/vinayprograms/lacpd/errors"
)

// Common errors.
var (
	// ErrClosed is returned by Send and Wait after the queue is closed.
	ErrClosed = errors.New(errors.CodeQueueClosed, "event queue closed")

	// ErrNilEvent is returned by Send for a nil event.
	ErrNilEvent = errors.New(errors.CodeInvalidInput, "nil event")
)

// Queue is an unbounded, thread-safe FIFO for Events.
//
// Send never blocks beyond acquiring the internal lock. Wait blocks the
// caller while the queue is empty and wakes on the next Send. All queue
// bookkeeping happens under one mutex; the condition variable provides the
// count-and-wake behavior so an idle consumer burns no CPU.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    []*Event
	closed   bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Send inserts an event at the tail and wakes one blocked waiter, if any.
// It fails only with ErrClosed after Close.
func (q *Queue) Send(e *Event) error {
	if e == nil {
		return ErrNilEvent
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	q.items = append(q.items, e)
	q.notEmpty.Signal()
	return nil
}

// Wait removes and returns the head event, blocking while the queue is
// empty. It returns ErrClosed once the queue has been closed; pending
// events are abandoned at that point.
func (q *Queue) Wait() (*Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	if q.closed {
		return nil, ErrClosed
	}

	e := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Release the drained backing array.
		q.items = nil
	}
	return e, nil
}

// Len returns the number of events currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes all blocked waiters.
// Pending events are discarded. Close is idempotent.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	q.items = nil
	q.notEmpty.Broadcast()
	return nil
}
