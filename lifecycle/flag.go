package lifecycle

import (
	"sync"
	"sync/atomic"
)

// Flag is the process-wide shutdown indicator.
//
// It is set at most once and never reverts. Readers may observe the
// transition late but never incorrectly unset. Done exposes the transition
// as a channel so blocked loops can select on it alongside their own work.
type Flag struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

// NewFlag creates an unset flag.
func NewFlag() *Flag {
	return &Flag{done: make(chan struct{})}
}

// Set marks the flag. Only the first call has any effect.
func (f *Flag) Set() {
	f.once.Do(func() {
		f.set.Store(true)
		close(f.done)
	})
}

// IsSet reports whether shutdown has been requested.
func (f *Flag) IsSet() bool {
	return f.set.Load()
}

// Done returns a channel closed on the first Set.
func (f *Flag) Done() <-chan struct{} {
	return f.done
}
