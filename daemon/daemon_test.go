package daemon

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/vinayprograms/lacpd/appctl"
	"github.com/vinayprograms/lacpd/config"
	"github.com/vinayprograms/lacpd/event"
	"github.com/vinayprograms/lacpd/logging"
)

// testConfig returns a config pointed at per-test paths with a fast tick.
func testConfig(t *testing.T) config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.ControlSocket = filepath.Join(t.TempDir(), "ctl")
	cfg.TickInterval = config.Duration{Duration: 10 * time.Millisecond}
	cfg.PollInterval = config.Duration{Duration: 10 * time.Millisecond}
	return cfg
}

// startDaemon runs the daemon and waits until the control socket answers.
func startDaemon(t *testing.T, cfg config.Config) (*Daemon, chan error) {
	t.Helper()

	d, err := New(cfg, logging.Nop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run() }()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("unix", cfg.ControlSocket)
		if err == nil {
			conn.Close()
			return d, errCh
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("control socket never came up")
	return nil, nil
}

func TestDaemon_ExitCommandShutsDown(t *testing.T) {
	cfg := testConfig(t)
	_, errCh := startDaemon(t, cfg)

	c, err := appctl.Dial(cfg.ControlSocket)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer c.Close()

	if _, err := c.Call("exit"); err != nil {
		t.Fatalf("exit command error: %v", err)
	}

	// The administrative exit must wake the main loop without a signal.
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not shut down after exit command")
	}
}

func TestDaemon_DumpSnapshot(t *testing.T) {
	cfg := testConfig(t)
	_, errCh := startDaemon(t, cfg)

	c, err := appctl.Dial(cfg.ControlSocket)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer c.Close()

	// Let a few ticks flow first.
	time.Sleep(100 * time.Millisecond)

	result, err := c.Call("dump")
	if err != nil {
		t.Fatalf("dump command error: %v", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(result, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.ShuttingDown {
		t.Error("snapshot reports shutting down while running")
	}
	if snap.Ticks == 0 {
		t.Error("no ticks recorded")
	}
	if snap.EventsProcessed == 0 {
		t.Error("no events processed")
	}
	if snap.WorkerIterations == 0 {
		t.Error("no worker iterations recorded")
	}
	if snap.Uptime == "" {
		t.Error("empty uptime")
	}

	if _, err := c.Call("exit"); err != nil {
		t.Fatalf("exit command error: %v", err)
	}
	<-errCh
}

func TestDaemon_SignalShutsDown(t *testing.T) {
	cfg := testConfig(t)
	_, errCh := startDaemon(t, cfg)

	// The bridge is subscribed before the socket comes up, so this is
	// delivered to the daemon's channel, not the default handler.
	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill error: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not shut down on SIGTERM")
	}
}

func TestDaemon_TimerEventsReachHandler(t *testing.T) {
	cfg := testConfig(t)

	d, err := New(cfg, logging.Nop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	ticks := make(chan *event.Event, 16)
	d.RegisterHandler(event.EndpointTimer, func(ev *event.Event) {
		select {
		case ticks <- ev:
		default:
		}
	})

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run() }()

	select {
	case ev := <-ticks:
		if ev.SenderID != event.EndpointTimer {
			t.Errorf("sender = %q, want %q", ev.SenderID, event.EndpointTimer)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no tick reached the handler")
	}

	c, err := appctl.Dial(cfg.ControlSocket)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer c.Close()
	if _, err := c.Call("exit"); err != nil {
		t.Fatalf("exit command error: %v", err)
	}
	<-errCh
}

func TestDaemon_FileStoreChangesFlow(t *testing.T) {
	cfg := testConfig(t)
	storePath := filepath.Join(t.TempDir(), "ports.toml")
	if err := os.WriteFile(storePath, []byte("[ports.eth0]\nlacp = \"active\"\n"), 0o644); err != nil {
		t.Fatalf("write store file: %v", err)
	}
	cfg.StorePath = storePath

	d, err := New(cfg, logging.Nop())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	changes := make(chan *event.Event, 16)
	d.RegisterHandler(event.EndpointStore, func(ev *event.Event) {
		select {
		case changes <- ev:
		default:
		}
	})

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run() }()

	// The initial load surfaces as a store event through the worker.
	select {
	case ev := <-changes:
		if ev.SenderID != event.EndpointStore {
			t.Errorf("sender = %q, want %q", ev.SenderID, event.EndpointStore)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no store event reached the handler")
	}

	deadline := time.Now().Add(3 * time.Second)
	var c *appctl.Client
	for time.Now().Before(deadline) {
		c, err = appctl.Dial(cfg.ControlSocket)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if c == nil {
		t.Fatal("control socket never came up")
	}
	defer c.Close()
	if _, err := c.Call("exit"); err != nil {
		t.Fatalf("exit command error: %v", err)
	}
	<-errCh
}

func TestDaemon_RunCleanExitStatus(t *testing.T) {
	cfg := testConfig(t)
	d, errCh := startDaemon(t, cfg)

	c, err := appctl.Dial(cfg.ControlSocket)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer c.Close()
	if _, err := c.Call("exit"); err != nil {
		t.Fatalf("exit command error: %v", err)
	}

	if err := <-errCh; err != nil {
		t.Errorf("clean shutdown returned %v", err)
	}

	// Everything is joined: the snapshot is still readable and final.
	snap := d.snapshot()
	if !snap.ShuttingDown {
		t.Error("snapshot does not report shutdown after exit")
	}
}
