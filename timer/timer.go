// Package timer turns periodic timer expirations into tick events on the
// daemon's event queue, addressed to the protocol engine's timer endpoint.
package timer

import (
	"sync/atomic"
	"time"

	"github.com/vinayprograms/lacpd/errors"
	"github.com/vinayprograms/lacpd/event"
	"github.com/vinayprograms/lacpd/lifecycle"
	"github.com/vinayprograms/lacpd/logging"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New(errors.CodeAlreadyStarted, "timer already started")
	ErrNotStarted     = errors.New(errors.CodeInvalidInput, "timer not started")
	ErrInvalidConfig  = errors.New(errors.CodeInvalidInput, "invalid timer configuration")
)

// Config configures a Ticker.
type Config struct {
	// Interval between ticks.
	// Default: 1 second.
	Interval time.Duration

	// Endpoint stamped on generated tick events.
	// Default: event.EndpointTimer.
	Endpoint string

	// Queue receives the tick events.
	Queue *event.Queue

	// Flag suppresses ticks once shutdown has been requested.
	Flag *lifecycle.Flag

	// Logger for dropped ticks.
	Logger *logging.Logger
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Queue == nil || c.Flag == nil {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
		Endpoint: event.EndpointTimer,
	}
}

// Ticker owns the daemon's periodic timer. Each expiration allocates one
// tick event and enqueues it; everything protocol-aware happens in the
// consumer. Only one timer is active at a time.
type Ticker struct {
	interval time.Duration
	endpoint string
	queue    *event.Queue
	flag     *lifecycle.Flag
	logger   *logging.Logger

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	ticks   atomic.Uint64
}

// NewTicker creates a ticker.
func NewTicker(cfg Config) (*Ticker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultConfig().Endpoint
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Ticker{
		interval: interval,
		endpoint: endpoint,
		queue:    cfg.Queue,
		flag:     cfg.Flag,
		logger:   logger,
	}, nil
}

// Start arms the periodic timer.
// Returns ErrAlreadyStarted if it is already armed.
func (t *Ticker) Start() error {
	if t.running.Swap(true) {
		return ErrAlreadyStarted
	}

	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})

	go t.run()
	return nil
}

// run fires until stopped.
func (t *Ticker) run() {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.Fire()
		}
	}
}

// Fire generates one tick: allocate an event stamped with the timer
// endpoint, empty payload, and enqueue it. Minimal non-blocking work, so it
// is also safe on the signal-dispatch path (SIGALRM forces a tick).
//
// No tick is enqueued once shutdown has been requested; a tick that raced
// the flag is harmless to a consumer that also checks shutdown state. A
// failed enqueue drops the tick and logs it: the next interval fires again.
func (t *Ticker) Fire() {
	if t.flag.IsSet() {
		return
	}

	if err := t.queue.Send(event.New(t.endpoint, nil)); err != nil {
		t.logger.TickDropped(err)
		return
	}
	t.ticks.Add(1)
}

// Stop disarms the timer and waits for the tick goroutine to exit.
// Returns ErrNotStarted if the timer is not armed.
func (t *Ticker) Stop() error {
	if !t.running.Swap(false) {
		return ErrNotStarted
	}
	close(t.stopCh)
	<-t.doneCh
	return nil
}

// Ticks returns how many ticks have been enqueued.
func (t *Ticker) Ticks() uint64 {
	return t.ticks.Load()
}
