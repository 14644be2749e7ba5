// Package daemon wires the event queue, timer, signal bridge, worker and
// control socket into the running lacpd process and owns its lifecycle:
// one-time init, the signal-wait main loop, and ordered teardown.
package daemon

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/lacpd/appctl"
	"github.com/vinayprograms/lacpd/config"
	"github.com/vinayprograms/lacpd/errors"
	"github.com/vinayprograms/lacpd/event"
	"github.com/vinayprograms/lacpd/lifecycle"
	"github.com/vinayprograms/lacpd/logging"
	"github.com/vinayprograms/lacpd/store"
	"github.com/vinayprograms/lacpd/timer"
)

// Handler processes events delivered to one sender endpoint.
type Handler func(*event.Event)

// Snapshot is the state reported by the appctl "dump" command.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	ShuttingDown     bool   `json:"shutting_down"`
	QueueLength      int    `json:"queue_length"`
	EventsProcessed  uint64 `json:"events_processed"`
	Ticks            uint64 `json:"ticks"`
	WorkerIterations uint64 `json:"worker_iterations"`
	Ports            int    `json:"ports"`
}

// Daemon is the assembled process.
type Daemon struct {
	cfg    config.Config
	logger *logging.Logger

	queue  *event.Queue
	flag   *lifecycle.Flag
	st     store.Store
	worker *lifecycle.Worker
	ticker *timer.Ticker
	bridge *lifecycle.SignalBridge
	ctl    *appctl.Server

	mu       sync.RWMutex
	handlers map[string]Handler

	started   time.Time
	processed atomic.Uint64
	pumpDone  chan struct{}
}

// New assembles a daemon from configuration. A failure here is fatal,
// including a worker that cannot be constructed; the daemon has no degraded
// mode without its worker.
func New(cfg config.Config, logger *logging.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		queue:    event.NewQueue(),
		flag:     lifecycle.NewFlag(),
		handlers: make(map[string]Handler),
		pumpDone: make(chan struct{}),
	}

	var err error
	if cfg.StorePath != "" {
		d.st, err = store.NewFileStore(cfg.StorePath, logger.WithComponent("store"))
		if err != nil {
			return nil, err
		}
	} else {
		d.st = store.NewMemoryStore()
	}

	d.ticker, err = timer.NewTicker(timer.Config{
		Interval: cfg.TickInterval.Duration,
		Endpoint: event.EndpointTimer,
		Queue:    d.queue,
		Flag:     d.flag,
		Logger:   logger.WithComponent("timer"),
	})
	if err != nil {
		return nil, err
	}

	d.worker, err = lifecycle.NewWorker(lifecycle.WorkerConfig{
		Store:        d.st,
		Queue:        d.queue,
		Flag:         d.flag,
		Logger:       logger.WithComponent("worker"),
		PollInterval: cfg.PollInterval.Duration,
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeWorkerStart, "create worker")
	}

	d.bridge, err = lifecycle.NewSignalBridge(lifecycle.SignalConfig{
		Flag:   d.flag,
		Alarm:  d.ticker.Fire,
		Logger: logger.WithComponent("signals"),
	})
	if err != nil {
		return nil, err
	}

	d.ctl = appctl.NewServer(cfg.ControlSocket, logger.WithComponent("appctl"))
	d.ctl.Register("exit", d.cmdExit)
	d.ctl.Register("dump", d.cmdDump)

	// Default consumers; the protocol engine replaces these through
	// RegisterHandler.
	d.handlers[event.EndpointTimer] = func(*event.Event) {}
	d.handlers[event.EndpointStore] = d.applyStoreEvent

	return d, nil
}

// RegisterHandler installs the consumer for one sender endpoint.
// Must be called before Run.
func (d *Daemon) RegisterHandler(sender string, h Handler) {
	d.mu.Lock()
	d.handlers[sender] = h
	d.mu.Unlock()
}

// Run starts the daemon and blocks until shutdown completes.
// It returns nil on a clean, fully-joined shutdown; a fatal startup error
// otherwise (listener bind, worker start).
func (d *Daemon) Run() error {
	d.started = time.Now()

	// Subscribe to signals before anything can fail or fire.
	d.bridge.Notify()
	defer d.bridge.Stop()

	if err := d.ctl.Start(); err != nil {
		return err
	}

	if err := d.worker.Start(); err != nil {
		d.ctl.Close()
		return errors.WrapWithCode(err, errors.CodeWorkerStart, "start worker")
	}

	if err := d.ticker.Start(); err != nil {
		d.flag.Set()
		d.worker.Join()
		d.ctl.Close()
		return err
	}

	go d.pump()

	d.logger.Info("daemon_started", map[string]interface{}{
		"tick_interval":  d.cfg.TickInterval.Duration.String(),
		"control_socket": d.cfg.ControlSocket,
	})

	// The signal-wait loop. The flag's Done channel also wakes it, so an
	// administrative exit does not wait for the next signal delivery.
	for !d.flag.IsSet() {
		select {
		case sig := <-d.bridge.Signals():
			d.bridge.Handle(sig)
		case <-d.flag.Done():
		}
	}

	d.teardown()
	return nil
}

// teardown performs the ordered shutdown sequence.
func (d *Daemon) teardown() {
	// Disarm the timer first: no new ticks for a vanishing consumer.
	if err := d.ticker.Stop(); err != nil {
		d.logger.Warn("timer_stop_error", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// The worker observes the flag, tears down its store connection and
	// exits; join it before releasing anything it may touch.
	d.worker.Join()

	// Closing the queue wakes the pump with ErrClosed; pending events are
	// abandoned, as shutdown promises no delivery guarantee.
	d.queue.Close()
	<-d.pumpDone

	if err := d.ctl.Close(); err != nil {
		d.logger.Warn("appctl_close_error", map[string]interface{}{
			"error": err.Error(),
		})
	}

	d.logger.Info("daemon_stopped", map[string]interface{}{
		"uptime": time.Since(d.started).Round(time.Millisecond).String(),
	})
}

// pump is the receive loop: it drains the queue and dispatches each event
// on its sender endpoint until the queue closes.
func (d *Daemon) pump() {
	defer close(d.pumpDone)

	for {
		ev, err := d.queue.Wait()
		if err != nil {
			// Queue closed: no more events will ever arrive.
			return
		}
		d.processed.Add(1)

		d.mu.RLock()
		h := d.handlers[ev.SenderID]
		d.mu.RUnlock()

		if h == nil {
			d.logger.Debug("event_unhandled", map[string]interface{}{
				"sender": ev.SenderID,
			})
			continue
		}
		h(ev)
	}
}

// applyStoreEvent is the default consumer for store changes.
func (d *Daemon) applyStoreEvent(ev *event.Event) {
	change, ok := ev.Payload.(store.Change)
	if !ok {
		return
	}
	d.logger.Debug("store_change", map[string]interface{}{
		"key":      change.Key,
		"op":       change.Operation.String(),
		"revision": change.Revision,
	})
}

// cmdExit handles the appctl "exit" command.
func (d *Daemon) cmdExit([]string) (any, error) {
	d.flag.Set()
	return nil, nil
}

// cmdDump handles the appctl "dump" command.
func (d *Daemon) cmdDump([]string) (any, error) {
	return d.snapshot(), nil
}

// snapshot collects the dump view of the daemon.
func (d *Daemon) snapshot() Snapshot {
	return Snapshot{
		Uptime:           time.Since(d.started).Round(time.Millisecond).String(),
		ShuttingDown:     d.flag.IsSet(),
		QueueLength:      d.queue.Len(),
		EventsProcessed:  d.processed.Load(),
		Ticks:            d.ticker.Ticks(),
		WorkerIterations: d.worker.Iterations(),
		Ports:            len(d.st.Snapshot()),
	}
}
