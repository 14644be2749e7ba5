package lifecycle

import (
	"sync/atomic"
	"time"

	"github.com/vinayprograms/lacpd/errors"
	"github.com/vinayprograms/lacpd/event"
	"github.com/vinayprograms/lacpd/logging"
	"github.com/vinayprograms/lacpd/store"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New(errors.CodeAlreadyStarted, "worker already started")
)

// DefaultPollInterval bounds how long the worker blocks between
// shutdown-flag check-points when no store activity arrives.
const DefaultPollInterval = 500 * time.Millisecond

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	// Store is serviced once per iteration and watched for changes.
	Store store.Store

	// Queue receives one event per store change, addressed to the
	// store endpoint.
	Queue *event.Queue

	// Flag ends the loop when set.
	Flag *Flag

	// Logger for worker events.
	Logger *logging.Logger

	// PollInterval bounds the blocking wait per iteration.
	// Default: DefaultPollInterval.
	PollInterval time.Duration
}

// Validate checks the configuration.
func (c *WorkerConfig) Validate() error {
	if c.Store == nil || c.Queue == nil || c.Flag == nil {
		return errors.New(errors.CodeWorkerStart, "worker requires store, queue and flag")
	}
	return nil
}

// Worker runs the store-servicing loop on a background goroutine.
//
// Each iteration services pending store work, then blocks until a store
// change arrives, the shutdown flag transitions, or the poll interval
// elapses. Store failures are logged and retried next iteration, never
// escalated. On flag transition the goroutine tears down its store
// connection and exits; Join waits for that.
type Worker struct {
	store   store.Store
	queue   *event.Queue
	flag    *Flag
	logger  *logging.Logger
	poll    time.Duration
	changes <-chan store.Change

	started    atomic.Bool
	done       chan struct{}
	iterations atomic.Uint64
}

// NewWorker creates a worker.
// A configuration error here is fatal to the daemon: it has no degraded
// mode without its worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	return &Worker{
		store:   cfg.Store,
		queue:   cfg.Queue,
		flag:    cfg.Flag,
		logger:  logger,
		poll:    poll,
		changes: cfg.Store.Changes(),
		done:    make(chan struct{}),
	}, nil
}

// Start launches the worker goroutine. It never blocks the caller.
// Returns ErrAlreadyStarted on a second call.
func (w *Worker) Start() error {
	if w.started.Swap(true) {
		return ErrAlreadyStarted
	}
	go w.run()
	return nil
}

// run is the bounded poll/react loop.
func (w *Worker) run() {
	defer close(w.done)

	timer := time.NewTimer(w.poll)
	defer timer.Stop()

	for !w.flag.IsSet() {
		w.iterations.Add(1)

		if err := w.store.Run(); err != nil {
			w.logger.StoreError("run", err)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.poll)

		select {
		case c, ok := <-w.changes:
			if !ok {
				// Feed closed underneath us; rely on flag and deadline.
				w.changes = nil
				continue
			}
			w.handleChange(c)

		case <-w.flag.Done():

		case <-timer.C:
			// Check-point deadline; loop re-examines the flag.
		}
	}

	if err := w.store.Close(); err != nil {
		w.logger.StoreError("close", err)
	}
	w.logger.WorkerExit(w.iterations.Load())
}

// handleChange forwards one store change to the event queue.
func (w *Worker) handleChange(c store.Change) {
	// Same race resolution as the timer: once shutdown is observed, no
	// new work is enqueued for a vanishing consumer.
	if w.flag.IsSet() {
		return
	}
	if err := w.queue.Send(event.New(event.EndpointStore, c)); err != nil {
		w.logger.StoreError("enqueue", err)
	}
}

// Join blocks until the worker goroutine has exited. It is idempotent and
// returns immediately if the worker was never started or already exited.
func (w *Worker) Join() {
	if !w.started.Load() {
		return
	}
	<-w.done
}

// Iterations returns how many loop iterations have run.
func (w *Worker) Iterations() uint64 {
	return w.iterations.Load()
}
