package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/vinayprograms/lacpd/event"
	"github.com/vinayprograms/lacpd/logging"
	"github.com/vinayprograms/lacpd/store"
)

func newTestWorker(t *testing.T, poll time.Duration) (*Worker, *store.MemoryStore, *event.Queue, *Flag) {
	t.Helper()

	st := store.NewMemoryStore()
	q := event.NewQueue()
	flag := NewFlag()

	w, err := NewWorker(WorkerConfig{
		Store:        st,
		Queue:        q,
		Flag:         flag,
		Logger:       logging.Nop(),
		PollInterval: poll,
	})
	if err != nil {
		t.Fatalf("NewWorker error: %v", err)
	}
	return w, st, q, flag
}

func TestNewWorker_Validate(t *testing.T) {
	_, err := NewWorker(WorkerConfig{})
	if err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestWorker_ShutdownJoins(t *testing.T) {
	// Scenario: start the worker, immediately request shutdown, join.
	// Join must return within the loop's check-point interval.
	w, _, q, flag := newTestWorker(t, 20*time.Millisecond)
	defer q.Close()

	if err := w.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	flag.Set()

	done := make(chan struct{})
	go func() {
		w.Join()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Join did not return after shutdown")
	}
}

func TestWorker_JoinIdempotent(t *testing.T) {
	w, _, q, flag := newTestWorker(t, 10*time.Millisecond)
	defer q.Close()

	if err := w.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	flag.Set()

	w.Join()
	// Second Join after exit must not block or panic.
	w.Join()
}

func TestWorker_JoinBeforeStart(t *testing.T) {
	w, _, q, _ := newTestWorker(t, 10*time.Millisecond)
	defer q.Close()

	done := make(chan struct{})
	go func() {
		w.Join()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Join blocked for a never-started worker")
	}
}

func TestWorker_DoubleStart(t *testing.T) {
	w, _, q, flag := newTestWorker(t, 10*time.Millisecond)
	defer q.Close()

	if err := w.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := w.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}

	flag.Set()
	w.Join()
}

func TestWorker_StoreChangeBecomesEvent(t *testing.T) {
	w, st, q, flag := newTestWorker(t, 10*time.Millisecond)
	defer q.Close()

	if err := w.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	if err := st.Put("eth0", store.Port{Name: "eth0", LACPMode: "active"}); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got := make(chan *event.Event, 1)
	go func() {
		ev, err := q.Wait()
		if err == nil {
			got <- ev
		}
	}()

	select {
	case ev := <-got:
		if ev.SenderID != event.EndpointStore {
			t.Errorf("sender = %q, want %q", ev.SenderID, event.EndpointStore)
		}
		change, ok := ev.Payload.(store.Change)
		if !ok {
			t.Fatalf("payload type = %T, want store.Change", ev.Payload)
		}
		if change.Key != "eth0" {
			t.Errorf("change key = %q, want eth0", change.Key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("store change never surfaced as an event")
	}

	flag.Set()
	w.Join()
}

func TestWorker_ClosesStoreOnExit(t *testing.T) {
	w, st, q, flag := newTestWorker(t, 10*time.Millisecond)
	defer q.Close()

	if err := w.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	flag.Set()
	w.Join()

	if err := st.Run(); !errors.Is(err, store.ErrClosed) {
		t.Errorf("store not closed after worker exit: %v", err)
	}
}

func TestWorker_IterationsAdvance(t *testing.T) {
	w, _, q, flag := newTestWorker(t, 5*time.Millisecond)
	defer q.Close()

	if err := w.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.Iterations() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if w.Iterations() < 2 {
		t.Errorf("iterations = %d, want >= 2", w.Iterations())
	}

	flag.Set()
	w.Join()
}
