package lifecycle

import (
	"sync"
	"testing"
	"time"
)

func TestFlag_SetOnce(t *testing.T) {
	f := NewFlag()

	if f.IsSet() {
		t.Error("new flag reports set")
	}

	f.Set()
	if !f.IsSet() {
		t.Error("flag not set after Set")
	}

	// Second Set must be a no-op, not a panic on double close.
	f.Set()
	if !f.IsSet() {
		t.Error("flag unset after second Set")
	}
}

func TestFlag_DoneClosedOnSet(t *testing.T) {
	f := NewFlag()

	select {
	case <-f.Done():
		t.Fatal("Done closed before Set")
	default:
	}

	f.Set()

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Set")
	}
}

func TestFlag_Monotonic(t *testing.T) {
	f := NewFlag()

	// Once any goroutine observes the flag set, it never reads unset again.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			observed := false
			for j := 0; j < 10000; j++ {
				set := f.IsSet()
				if observed && !set {
					t.Error("flag reverted after being observed set")
					return
				}
				observed = observed || set
			}
		}()
	}

	f.Set()
	wg.Wait()

	if !f.IsSet() {
		t.Error("flag unset after concurrent readers finished")
	}
}
