// Package event provides the daemon's intra-process message transport.
//
// # Overview
//
// Producers (the periodic timer, the store watcher) hand Events to a single
// logical consumer through an unbounded thread-safe FIFO Queue. The queue
// carries no protocol knowledge; it moves opaque Events tagged with the
// sender endpoint and leaves interpretation to the consumer.
//
// # Ownership
//
// An Event is owned by exactly one party at any instant: the producer until
// Send returns, the queue until Wait returns, and the consumer afterwards.
// Events are never shared or mutated concurrently.
//
// # Usage
//
// Producer:
//
//	q.Send(event.New(event.EndpointTimer, nil))
//
// Consumer:
//
//	for {
//	    ev, err := q.Wait()
//	    if err != nil {
//	        return // queue closed, no more events will arrive
//	    }
//	    dispatch(ev)
//	}
//
// Wait blocks without busy-spinning while the queue is empty, and fails
// only once the queue has been closed.
package event
