package lifecycle

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/vinayprograms/lacpd/errors"
	"github.com/vinayprograms/lacpd/logging"
)

// SignalConfig configures a SignalBridge.
type SignalConfig struct {
	// Flag is set when a terminate or interrupt signal arrives.
	Flag *Flag

	// Alarm is invoked for SIGALRM while the daemon is running.
	// Nil disables the alarm path.
	Alarm func()

	// Logger for signal events.
	Logger *logging.Logger
}

// Validate checks the configuration.
func (c *SignalConfig) Validate() error {
	if c.Flag == nil {
		return errors.New(errors.CodeInvalidInput, "signal bridge requires a shutdown flag")
	}
	return nil
}

// SignalBridge maps delivered OS signals onto daemon behavior.
//
// SIGTERM and SIGINT set the shutdown flag; no other signal causes that
// transition. SIGALRM forwards to the alarm callback unless shutdown has
// already been requested. Anything else is logged and ignored. All of the
// mappings are idempotent, so repeated deliveries after the transition are
// harmless no-ops.
type SignalBridge struct {
	flag   *Flag
	alarm  func()
	logger *logging.Logger
	sigCh  chan os.Signal
}

// NewSignalBridge creates a bridge. Notify must be called before signals
// are expected.
func NewSignalBridge(cfg SignalConfig) (*SignalBridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &SignalBridge{
		flag:   cfg.Flag,
		alarm:  cfg.Alarm,
		logger: logger,
		sigCh:  make(chan os.Signal, 4),
	}, nil
}

// Notify subscribes the bridge to the signals the daemon handles.
func (b *SignalBridge) Notify() {
	signal.Notify(b.sigCh,
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGALRM,
		syscall.SIGHUP,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
	)
}

// Signals returns the delivery channel the owning loop blocks on.
func (b *SignalBridge) Signals() <-chan os.Signal {
	return b.sigCh
}

// Handle dispatches one delivered signal.
func (b *SignalBridge) Handle(sig os.Signal) {
	switch sig {
	case syscall.SIGALRM:
		// Ignored once shutdown has been requested: no new ticks for a
		// vanishing consumer.
		if !b.flag.IsSet() && b.alarm != nil {
			b.alarm()
		}

	case syscall.SIGTERM, syscall.SIGINT:
		b.logger.SignalCaught(sig.String())
		b.flag.Set()

	default:
		b.logger.SignalIgnored(sig.String())
	}
}

// Stop unsubscribes the bridge from signal delivery.
func (b *SignalBridge) Stop() {
	signal.Stop(b.sigCh)
}
